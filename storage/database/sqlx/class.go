package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/class"
)

type classRepository struct {
	db *sqlx.DB
}

var _ class.Repository = (*classRepository)(nil)

func NewClassRepository(db *sqlx.DB) class.Repository {
	return &classRepository{db: db}
}

type classRow struct {
	ID            string          `db:"id"`
	CourseName    string          `db:"course_name"`
	AcademicLevel string          `db:"academic_level"`
	Fee           decimal.Decimal `db:"fee"`
	MaxStudents   int             `db:"max_students"`
	TeacherID     null.String     `db:"teacher_id"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (r classRow) toClass() class.Class {
	return class.Class{
		ID:            r.ID,
		CourseName:    r.CourseName,
		AcademicLevel: r.AcademicLevel,
		Fee:           r.Fee,
		MaxStudents:   r.MaxStudents,
		TeacherID:     r.TeacherID.String,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type scheduleRow struct {
	ID        string `db:"id"`
	ClassID   string `db:"class_id"`
	Weekday   int    `db:"weekday"`
	StartTime string `db:"start_time"`
	EndTime   string `db:"end_time"`
	Position  int    `db:"position"`
}

func (r scheduleRow) toEntry() class.ScheduleEntry {
	return class.ScheduleEntry{
		ID:        r.ID,
		ClassID:   r.ClassID,
		Weekday:   time.Weekday(r.Weekday),
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Position:  r.Position,
	}
}

const classColumns = "id, course_name, academic_level, fee, max_students, teacher_id, created_at, updated_at"

func nullStr(s string) null.String {
	if s == "" {
		return null.String{}
	}
	return null.StringFrom(s)
}

func (repo *classRepository) CreateClass(ctx context.Context, cls class.Class, exec ...core.DBExecutor) (class.Class, error) {
	cls.ID = uuid.New().String()

	err := core.AtomicTx(ctx, repo.db, func(tx core.DBTransactor) error {
		q := `
INSERT INTO classes (id, course_name, academic_level, fee, max_students, teacher_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		if _, err := tx.ExecContext(
			ctx, q,
			cls.ID, cls.CourseName, cls.AcademicLevel, cls.Fee, cls.MaxStudents,
			nullStr(cls.TeacherID), cls.CreatedAt, cls.UpdatedAt,
		); err != nil {
			return errors.Wrap(err, "inserting class")
		}
		return repo.insertSchedule(ctx, tx, cls.ID, cls.Schedule)
	})
	if err != nil {
		return class.Class{}, err
	}

	for i := range cls.Schedule {
		cls.Schedule[i].ClassID = cls.ID
	}
	return cls, nil
}

func (repo *classRepository) insertSchedule(ctx context.Context, exec core.DBExecutor, classID string, entries []class.ScheduleEntry) error {
	q := `
INSERT INTO class_schedule (id, class_id, weekday, start_time, end_time, position)
VALUES ($1, $2, $3, $4, $5, $6)`
	for i := range entries {
		entries[i].ID = uuid.New().String()
		e := entries[i]
		if _, err := exec.ExecContext(ctx, q, e.ID, classID, int(e.Weekday), e.StartTime, e.EndTime, e.Position); err != nil {
			return errors.Wrap(err, "inserting schedule entry")
		}
	}
	return nil
}

func (repo *classRepository) QueryClasses(ctx context.Context, filter *class.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]class.Class, error) {
	q := "SELECT " + classColumns + " FROM classes"
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
			clauses = append(clauses, "course_name ILIKE "+arg("%"+filter.Search+"%"))
		}
		if filter.AcademicLevel != "" {
			clauses = append(clauses, "academic_level = "+arg(filter.AcademicLevel))
		}
		if filter.TeacherID != "" {
			clauses = append(clauses, "teacher_id = "+arg(filter.TeacherID))
		}
	}
	if len(clauses) > 0 {
		q += " WHERE " + joinAnd(clauses)
	}
	q += orderBy(ordering, "course_name ASC")

	var rows []classRow
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}

	classes := make([]class.Class, 0, len(rows))
	for _, row := range rows {
		cls := row.toClass()
		schedule, err := repo.querySchedule(ctx, cls.ID, exec...)
		if err != nil {
			return nil, err
		}
		cls.Schedule = schedule
		classes = append(classes, cls)
	}
	return classes, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (class.Class, error) {
	var row classRow
	q := "SELECT " + classColumns + " FROM classes WHERE id = $1"
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, q, id); err != nil {
		return class.Class{}, trapNoRowsErr(err, class.ErrNotFound)
	}
	cls := row.toClass()
	schedule, err := repo.querySchedule(ctx, id, exec...)
	if err != nil {
		return class.Class{}, err
	}
	cls.Schedule = schedule
	return cls, nil
}

func (repo *classRepository) querySchedule(ctx context.Context, classID string, exec ...core.DBExecutor) ([]class.ScheduleEntry, error) {
	var rows []scheduleRow
	q := "SELECT id, class_id, weekday, start_time, end_time, position FROM class_schedule WHERE class_id = $1 ORDER BY position ASC"
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, q, classID); err != nil {
		return nil, errors.Wrap(err, "querying schedule")
	}
	entries := make([]class.ScheduleEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toEntry())
	}
	return entries, nil
}

func (repo *classRepository) UpdateClass(ctx context.Context, cls class.Class, exec ...core.DBExecutor) (class.Class, error) {
	q := `
UPDATE classes
SET course_name = $2, academic_level = $3, fee = $4, max_students = $5, teacher_id = $6, updated_at = $7
WHERE id = $1`
	res, err := ext(repo.db, exec...).ExecContext(
		ctx, q,
		cls.ID, cls.CourseName, cls.AcademicLevel, cls.Fee, cls.MaxStudents, nullStr(cls.TeacherID), cls.UpdatedAt,
	)
	if err != nil {
		return class.Class{}, errors.Wrap(err, "updating class")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return class.Class{}, class.ErrNotFound
	}
	return cls, nil
}

func (repo *classRepository) ReplaceSchedule(ctx context.Context, classID string, entries []class.ScheduleEntry, exec ...core.DBExecutor) error {
	return core.AtomicTx(ctx, repo.db, func(tx core.DBTransactor) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM class_schedule WHERE class_id = $1", classID); err != nil {
			return errors.Wrap(err, "clearing schedule")
		}
		return repo.insertSchedule(ctx, tx, classID, entries)
	})
}

func (repo *classRepository) RosterIDs(ctx context.Context, classID string, exec ...core.DBExecutor) ([]string, error) {
	var ids pq.StringArray
	q := "SELECT COALESCE(array_agg(student_id ORDER BY created_at), '{}') FROM enrollments WHERE class_id = $1"
	if err := ext(repo.db, exec...).QueryRowxContext(ctx, q, classID).Scan(&ids); err != nil {
		return nil, errors.Wrap(err, "querying roster")
	}
	return ids, nil
}

func (repo *classRepository) DeleteClassesByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := ext(repo.db, exec...).ExecContext(ctx, "DELETE FROM classes WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting classes")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
