package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/class"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil)

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(ctx context.Context, cls class.Class, exec ...core.DBExecutor) (class.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	cls.ID = uuid.New().String()
	for i := range cls.Schedule {
		cls.Schedule[i].ID = uuid.New().String()
		cls.Schedule[i].ClassID = cls.ID
	}
	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) QueryClasses(ctx context.Context, filter *class.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	classes := make([]class.Class, 0)
	for _, cls := range repo.db.classes {
		if filter != nil && !filter.IsEmpty() {
			if filter.Search != "" && !containsFold(cls.CourseName, filter.Search) {
				continue
			}
			if filter.AcademicLevel != "" && cls.AcademicLevel != filter.AcademicLevel {
				continue
			}
			if filter.TeacherID != "" && cls.TeacherID != filter.TeacherID {
				continue
			}
		}
		classes = append(classes, *cls)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i].CourseName < classes[j].CourseName })
	return classes, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (class.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		return *cls, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) UpdateClass(ctx context.Context, cls class.Class, exec ...core.DBExecutor) (class.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.classes[cls.ID]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	cls.Schedule = orig.Schedule
	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) ReplaceSchedule(ctx context.Context, classID string, entries []class.ScheduleEntry, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	cls, ok := repo.db.classes[classID]
	if !ok {
		return class.ErrNotFound
	}
	for i := range entries {
		entries[i].ID = uuid.New().String()
		entries[i].ClassID = classID
	}
	cls.Schedule = entries
	return nil
}

func (repo *classRepository) RosterIDs(ctx context.Context, classID string, exec ...core.DBExecutor) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.rosterIDs(classID), nil
}

// rosterIDs expects the caller to hold the lock.
func (repo *classRepository) rosterIDs(classID string) []string {
	ids := make([]string, 0)
	for _, enr := range repo.db.enrollments {
		if enr.ClassID == classID {
			ids = append(ids, enr.StudentID)
		}
	}
	sort.Strings(ids)
	return ids
}

func (repo *classRepository) DeleteClassesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.classes[id]; ok {
			delete(repo.db.classes, id)
			n++
		}
	}
	return n, nil
}
