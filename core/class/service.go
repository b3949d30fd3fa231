package class

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound = errors.New("class not found")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		// QueryClasses applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Class.CourseName.
		QueryClasses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Class, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		UpdateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		// ReplaceSchedule swaps the whole timetable of a class; entry Position
		// follows slice order.
		ReplaceSchedule(ctx context.Context, classID string, entries []ScheduleEntry, exec ...core.DBExecutor) error
		// RosterIDs returns the IDs of students enrolled in the class.
		RosterIDs(ctx context.Context, classID string, exec ...core.DBExecutor) ([]string, error)
		DeleteClassesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Create(ctx context.Context, nc NewClass) (Class, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error)
		GetByID(ctx context.Context, id string) (Class, error)
		Update(ctx context.Context, id string, uc UpdateClass) (Class, error)
		Roster(ctx context.Context, classID string) ([]string, error)
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (svc *service) Create(ctx context.Context, nc NewClass) (Class, error) {
	now := time.Now().UTC()
	cls := Class{
		CourseName:    nc.CourseName,
		AcademicLevel: nc.AcademicLevel,
		Fee:           nc.Fee,
		MaxStudents:   nc.MaxStudents,
		TeacherID:     nc.TeacherID,
		Schedule:      newEntries(nc.Schedule),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateClass(ctx, cls)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateClass) (Class, error) {
	cls, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return Class{}, errors.Wrap(err, "finding class by ID")
	}
	if uc.CourseName != "" {
		cls.CourseName = uc.CourseName
	}
	if uc.AcademicLevel != "" {
		cls.AcademicLevel = uc.AcademicLevel
	}
	if uc.Fee != nil {
		cls.Fee = *uc.Fee
	}
	if uc.MaxStudents != nil {
		cls.MaxStudents = *uc.MaxStudents
	}
	if uc.TeacherID != "" {
		cls.TeacherID = uc.TeacherID
	}
	cls.UpdatedAt = time.Now().UTC()

	if cls, err = svc.repo.UpdateClass(ctx, cls); err != nil {
		return Class{}, errors.Wrap(err, "updating class")
	}
	if uc.Schedule != nil {
		entries := newEntries(uc.Schedule)
		if err = svc.repo.ReplaceSchedule(ctx, cls.ID, entries); err != nil {
			return Class{}, errors.Wrap(err, "replacing schedule")
		}
		cls.Schedule = entries
	}
	return cls, nil
}

func (svc *service) Roster(ctx context.Context, classID string) ([]string, error) {
	return svc.repo.RosterIDs(ctx, classID)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteClassesByID(ctx, ids)
	return err
}

func newEntries(in []NewScheduleEntry) []ScheduleEntry {
	entries := make([]ScheduleEntry, 0, len(in))
	for i, e := range in {
		entries = append(entries, ScheduleEntry{
			Weekday:   e.Weekday,
			StartTime: e.StartTime,
			EndTime:   e.EndTime,
			Position:  i,
		})
	}
	return entries
}
