package class

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core"
)

// ScheduleEntry is one recurring slot in a class timetable.
type ScheduleEntry struct {
	ID        string       `json:"id"`
	ClassID   string       `json:"class_id"`
	Weekday   time.Weekday `json:"weekday"`
	StartTime string       `json:"start_time"` // HH:MM
	EndTime   string       `json:"end_time"`   // HH:MM
	Position  int          `json:"position"`   // ordering within the timetable
}

type Class struct {
	ID            string          `json:"id"`
	CourseName    string          `json:"course_name"`
	AcademicLevel string          `json:"academic_level"`
	Fee           decimal.Decimal `json:"fee"` // monthly amount
	MaxStudents   int             `json:"max_students"`
	TeacherID     string          `json:"teacher_id"`
	Schedule      []ScheduleEntry `json:"schedule"`
	CreatedAt     time.Time       `json:"created_at"` // UTC
	UpdatedAt     time.Time       `json:"updated_at"` // UTC
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	CourseName    string             `json:"course_name" validate:"required"`
	AcademicLevel string             `json:"academic_level" validate:"required"`
	Fee           decimal.Decimal    `json:"fee" validate:"required"`
	MaxStudents   int                `json:"max_students" validate:"required,min=1"`
	TeacherID     string             `json:"teacher_id" validate:"omitempty,uuid4"`
	Schedule      []NewScheduleEntry `json:"schedule" validate:"omitempty,dive"`
}

type NewScheduleEntry struct {
	Weekday   time.Weekday `json:"weekday" validate:"min=0,max=6"`
	StartTime string       `json:"start_time" validate:"required,timestr"`
	EndTime   string       `json:"end_time" validate:"required,timestr,gtfield=StartTime"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.CourseName = core.CleanString(nc.CourseName)
	nc.AcademicLevel = core.CleanString(nc.AcademicLevel)
	if err := validate.Struct(nc); err != nil {
		return err
	}
	if nc.Fee.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{Field: "fee", Error: "fee cannot be negative"})
	}
	return nil
}

// UpdateClass defines what information may be provided to modify an existing Class.
type UpdateClass struct {
	CourseName    string             `json:"course_name"`
	AcademicLevel string             `json:"academic_level"`
	Fee           *decimal.Decimal   `json:"fee"`
	MaxStudents   *int               `json:"max_students" validate:"omitempty,min=1"`
	TeacherID     string             `json:"teacher_id" validate:"omitempty,uuid4"`
	Schedule      []NewScheduleEntry `json:"schedule" validate:"omitempty,dive"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	uc.CourseName = core.CleanString(uc.CourseName)
	uc.AcademicLevel = core.CleanString(uc.AcademicLevel)
	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.Fee != nil && uc.Fee.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{Field: "fee", Error: "fee cannot be negative"})
	}
	return nil
}

type QueryFilter struct {
	Search        string `query:"search"` // matches CourseName
	AcademicLevel string `query:"academic_level"`
	TeacherID     string `query:"teacher_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.AcademicLevel == "" && qf.TeacherID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.AcademicLevel = core.CleanString(qf.AcademicLevel)
}
