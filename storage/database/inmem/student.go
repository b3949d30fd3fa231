package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	std.ID = uuid.New().String()
	repo.db.students[std.ID] = &std
	return std, nil
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]student.Student, 0)
	for _, std := range repo.db.students {
		if filter != nil && !filter.IsEmpty() {
			if filter.Search != "" && !containsFold(std.Name, filter.Search) {
				continue
			}
			if filter.EducationLevel != "" && std.EducationLevel != filter.EducationLevel {
				continue
			}
			if filter.ParentID != "" && std.ParentID != filter.ParentID {
				continue
			}
			if filter.ClassID != "" {
				if _, ok := repo.db.enrollments[enrollmentKey(std.ID, filter.ClassID)]; !ok {
					continue
				}
			}
		}
		students = append(students, *std)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if std, ok := repo.db.students[id]; ok {
		return *std, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[std.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	repo.db.students[std.ID] = &std
	return std, nil
}

func (repo *studentRepository) DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.students[id]; ok {
			delete(repo.db.students, id)
			n++
		}
	}
	return n, nil
}

func (repo *studentRepository) CreateEnrollment(ctx context.Context, studentID, classID string, exec ...core.DBExecutor) (bool, error) {
	// the single write lock makes the capacity check and the insert atomic
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.enrollments[enrollmentKey(studentID, classID)]; ok {
		return false, nil
	}
	cls, ok := repo.db.classes[classID]
	if !ok {
		return false, class.ErrNotFound
	}

	var enrolled int
	for _, enr := range repo.db.enrollments {
		if enr.ClassID == classID {
			enrolled++
		}
	}
	if enrolled >= cls.MaxStudents {
		return false, student.ErrClassFull
	}

	repo.db.enrollments[enrollmentKey(studentID, classID)] = &student.Enrollment{
		StudentID: studentID,
		ClassID:   classID,
		CreatedAt: time.Now().UTC(),
	}
	return true, nil
}

func (repo *studentRepository) DeleteEnrollment(ctx context.Context, studentID, classID string, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.enrollments, enrollmentKey(studentID, classID))
	return nil
}

func (repo *studentRepository) RegisteredClassIDs(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ids := make([]string, 0)
	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID {
			ids = append(ids, enr.ClassID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *studentRepository) QueryEnrollments(ctx context.Context, exec ...core.DBExecutor) ([]student.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := make([]student.Enrollment, 0, len(repo.db.enrollments))
	for _, enr := range repo.db.enrollments {
		enrollments = append(enrollments, *enr)
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].CreatedAt.Before(enrollments[j].CreatedAt) })
	return enrollments, nil
}
