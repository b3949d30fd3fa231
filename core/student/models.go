package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Student struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	EducationLevel string    `json:"education_level"`
	ParentID       string    `json:"parent_id"` // references a parent User
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// Enrollment is the edge between a Student and a Class. The student's course
// list and the class roster are both views of these edges, so they cannot
// drift apart.
type Enrollment struct {
	StudentID string    `json:"student_id"`
	ClassID   string    `json:"class_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// NewStudent contains information needed to admit a new Student.
type NewStudent struct {
	Name           string `json:"name" validate:"required"`
	EducationLevel string `json:"education_level" validate:"required"`
	ParentID       string `json:"parent_id" validate:"required,uuid4"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.EducationLevel = core.CleanString(ns.EducationLevel)
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
type UpdateStudent struct {
	Name           string `json:"name"`
	EducationLevel string `json:"education_level"`
	ParentID       string `json:"parent_id" validate:"omitempty,uuid4"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.Name = core.CleanString(us.Name)
	us.EducationLevel = core.CleanString(us.EducationLevel)
	return validate.Struct(us)
}

type QueryFilter struct {
	Search         string `query:"search"` // matches Name
	EducationLevel string `query:"education_level"`
	ParentID       string `query:"parent_id"`
	ClassID        string `query:"class_id"` // students enrolled in this class
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.EducationLevel == "" && qf.ParentID == "" && qf.ClassID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.EducationLevel = core.CleanString(qf.EducationLevel)
}
