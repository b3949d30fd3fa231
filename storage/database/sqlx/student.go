package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/student"
)

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

type studentRow struct {
	ID             string      `db:"id"`
	Name           string      `db:"name"`
	EducationLevel string      `db:"education_level"`
	ParentID       null.String `db:"parent_id"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func (r studentRow) toStudent() student.Student {
	return student.Student{
		ID:             r.ID,
		Name:           r.Name,
		EducationLevel: r.EducationLevel,
		ParentID:       r.ParentID.String,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

const studentColumns = "id, name, education_level, parent_id, created_at, updated_at"

func (repo *studentRepository) CreateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	std.ID = uuid.New().String()
	q := `
INSERT INTO students (id, name, education_level, parent_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := ext(repo.db, exec...).ExecContext(
		ctx, q,
		std.ID, std.Name, std.EducationLevel, nullStr(std.ParentID), std.CreatedAt, std.UpdatedAt,
	)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

func (repo *studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Student, error) {
	q := "SELECT " + studentColumns + " FROM students"
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return bindVar(len(args))
	}

	if filter != nil && !filter.IsEmpty() {
		if filter.Search != "" {
			clauses = append(clauses, "name ILIKE "+arg("%"+filter.Search+"%"))
		}
		if filter.EducationLevel != "" {
			clauses = append(clauses, "education_level = "+arg(filter.EducationLevel))
		}
		if filter.ParentID != "" {
			clauses = append(clauses, "parent_id = "+arg(filter.ParentID))
		}
		if filter.ClassID != "" {
			clauses = append(clauses, "id IN (SELECT student_id FROM enrollments WHERE class_id = "+arg(filter.ClassID)+")")
		}
	}
	if len(clauses) > 0 {
		q += " WHERE " + joinAnd(clauses)
	}
	q += orderBy(ordering, "name ASC")

	var rows []studentRow
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.toStudent())
	}
	return students, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	var row studentRow
	q := "SELECT " + studentColumns + " FROM students WHERE id = $1"
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, q, id); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound)
	}
	return row.toStudent(), nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	q := `
UPDATE students
SET name = $2, education_level = $3, parent_id = $4, updated_at = $5
WHERE id = $1`
	res, err := ext(repo.db, exec...).ExecContext(ctx, q, std.ID, std.Name, std.EducationLevel, nullStr(std.ParentID), std.UpdatedAt)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return std, nil
}

func (repo *studentRepository) DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := ext(repo.db, exec...).ExecContext(ctx, "DELETE FROM students WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (repo *studentRepository) CreateEnrollment(ctx context.Context, studentID, classID string, exec ...core.DBExecutor) (bool, error) {
	var created bool
	err := core.AtomicTx(ctx, repo.db, func(tx core.DBTransactor) error {
		// lock the class row so the capacity check and the insert are one unit;
		// concurrent enrollments serialize here and cannot overshoot
		var maxStudents int
		err := tx.QueryRowContext(ctx, "SELECT max_students FROM classes WHERE id = $1 FOR UPDATE", classID).Scan(&maxStudents)
		if err != nil {
			return trapNoRowsErr(errors.Wrap(err, "locking class"), class.ErrNotFound)
		}

		var enrolled int
		if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM enrollments WHERE class_id = $1", classID).Scan(&enrolled); err != nil {
			return errors.Wrap(err, "counting roster")
		}

		q := `
INSERT INTO enrollments (student_id, class_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (student_id, class_id) DO NOTHING`
		res, err := tx.ExecContext(ctx, q, studentID, classID, time.Now().UTC())
		if err != nil {
			return errors.Wrap(err, "inserting enrollment")
		}
		n, _ := res.RowsAffected()
		created = n > 0

		// re-enrolling an existing member of a full class stays a no-op
		if created && enrolled >= maxStudents {
			return student.ErrClassFull
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (repo *studentRepository) DeleteEnrollment(ctx context.Context, studentID, classID string, exec ...core.DBExecutor) error {
	_, err := ext(repo.db, exec...).ExecContext(ctx, "DELETE FROM enrollments WHERE student_id = $1 AND class_id = $2", studentID, classID)
	return errors.Wrap(err, "deleting enrollment")
}

func (repo *studentRepository) RegisteredClassIDs(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]string, error) {
	var ids pq.StringArray
	q := "SELECT COALESCE(array_agg(class_id ORDER BY created_at), '{}') FROM enrollments WHERE student_id = $1"
	if err := ext(repo.db, exec...).QueryRowxContext(ctx, q, studentID).Scan(&ids); err != nil {
		return nil, errors.Wrap(err, "querying registered classes")
	}
	return ids, nil
}

func (repo *studentRepository) QueryEnrollments(ctx context.Context, exec ...core.DBExecutor) ([]student.Enrollment, error) {
	var rows []struct {
		StudentID string    `db:"student_id"`
		ClassID   string    `db:"class_id"`
		CreatedAt time.Time `db:"created_at"`
	}
	q := "SELECT student_id, class_id, created_at FROM enrollments ORDER BY created_at ASC"
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]student.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, student.Enrollment{StudentID: row.StudentID, ClassID: row.ClassID, CreatedAt: row.CreatedAt})
	}
	return enrollments, nil
}
