package student

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound  = errors.New("student not found")
	ErrClassFull = errors.New("class is already at full capacity")
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		// QueryStudents applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Student.Name.
		QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		UpdateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		// CreateEnrollment atomically inserts the (student, class) edge. It
		// returns (false, nil) when the edge already exists and ErrClassFull
		// when the class roster is at capacity; the capacity check and the
		// insert happen under the same lock so concurrent enrollments cannot
		// overshoot the limit.
		CreateEnrollment(ctx context.Context, studentID, classID string, exec ...core.DBExecutor) (bool, error)
		DeleteEnrollment(ctx context.Context, studentID, classID string, exec ...core.DBExecutor) error
		// RegisteredClassIDs returns the IDs of classes the student is enrolled in.
		RegisteredClassIDs(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]string, error)
		// QueryEnrollments returns every enrollment edge, ordered by creation time.
		QueryEnrollments(ctx context.Context, exec ...core.DBExecutor) ([]Enrollment, error)
	}

	Service interface {
		Create(ctx context.Context, ns NewStudent) (Student, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		Update(ctx context.Context, id string, us UpdateStudent) (Student, error)
		Delete(ctx context.Context, ids ...string) error

		// Enroll adds the student to the class roster and the class to the
		// student's course list. Enrolling twice is a no-op; enrolling into a
		// full class returns ErrClassFull.
		Enroll(ctx context.Context, studentID, classID string) error
		Unenroll(ctx context.Context, studentID, classID string) error
		RegisteredClasses(ctx context.Context, studentID string) ([]string, error)
		Enrollments(ctx context.Context) ([]Enrollment, error)
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

func (svc *service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := time.Now().UTC()
	std := Student{
		Name:           ns.Name,
		EducationLevel: ns.EducationLevel,
		ParentID:       ns.ParentID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.CreateStudent(ctx, std)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	std, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, errors.Wrap(err, "finding student by ID")
	}
	if us.Name != "" {
		std.Name = us.Name
	}
	if us.EducationLevel != "" {
		std.EducationLevel = us.EducationLevel
	}
	if us.ParentID != "" {
		std.ParentID = us.ParentID
	}
	std.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, std)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteStudentsByID(ctx, ids)
	return err
}

func (svc *service) Enroll(ctx context.Context, studentID, classID string) error {
	if _, err := svc.repo.GetStudent(ctx, studentID); err != nil {
		return errors.Wrap(err, "finding student by ID")
	}
	created, err := svc.repo.CreateEnrollment(ctx, studentID, classID)
	if err != nil {
		return errors.Wrap(err, "creating enrollment")
	}
	if !created {
		svc.logger.Debug("student " + studentID + " already enrolled in class " + classID)
	}
	return nil
}

func (svc *service) Unenroll(ctx context.Context, studentID, classID string) error {
	return svc.repo.DeleteEnrollment(ctx, studentID, classID)
}

func (svc *service) RegisteredClasses(ctx context.Context, studentID string) ([]string, error) {
	return svc.repo.RegisteredClassIDs(ctx, studentID)
}

func (svc *service) Enrollments(ctx context.Context) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx)
}
