package student_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/student"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

func setup(t *testing.T) (student.Service, class.Service) {
	t.Helper()

	db := inmemdb.NewDB()
	logger := core.NopLogger{}
	return student.NewService(inmemdb.NewStudentRepository(db), logger),
		class.NewService(inmemdb.NewClassRepository(db), logger)
}

func createStudent(t *testing.T, svc student.Service, name string) student.Student {
	t.Helper()
	std, err := svc.Create(context.Background(), student.NewStudent{
		Name:           name,
		EducationLevel: "Form 4",
		ParentID:       "64ad1a4b-8b53-4bc3-9b4c-12a19e693b37",
	})
	if err != nil {
		t.Fatalf("creating student %s: %v", name, err)
	}
	return std
}

func createClass(t *testing.T, svc class.Service, course string, maxStudents int) class.Class {
	t.Helper()
	cls, err := svc.Create(context.Background(), class.NewClass{
		CourseName:    course,
		AcademicLevel: "Form 4",
		Fee:           decimal.NewFromInt(150),
		MaxStudents:   maxStudents,
	})
	if err != nil {
		t.Fatalf("creating class %s: %v", course, err)
	}
	return cls
}

func TestService_Enroll(t *testing.T) {
	stdSvc, clsSvc := setup(t)
	ctx := context.Background()

	std := createStudent(t, stdSvc, "Amin")
	cls := createClass(t, clsSvc, "Mathematics", 2)

	if err := stdSvc.Enroll(ctx, std.ID, cls.ID); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	// enrolling twice is a no-op
	if err := stdSvc.Enroll(ctx, std.ID, cls.ID); err != nil {
		t.Fatalf("Enroll() second call error = %v", err)
	}
	ids, err := stdSvc.RegisteredClasses(ctx, std.ID)
	if err != nil {
		t.Fatalf("RegisteredClasses() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != cls.ID {
		t.Errorf("RegisteredClasses() = %v, want [%s]", ids, cls.ID)
	}

	// the roster mirrors the enrollment
	roster, err := clsSvc.Roster(ctx, cls.ID)
	if err != nil {
		t.Fatalf("Roster() error = %v", err)
	}
	if len(roster) != 1 || roster[0] != std.ID {
		t.Errorf("Roster() = %v, want [%s]", roster, std.ID)
	}

	// unknown student
	if err := stdSvc.Enroll(ctx, "ca761232-ed42-11ce-bacd-00aa0057b223", cls.ID); errors.Cause(err) != student.ErrNotFound {
		t.Errorf("Enroll() error = %v, want %v", err, student.ErrNotFound)
	}

	// unknown class
	if err := stdSvc.Enroll(ctx, std.ID, "ca761232-ed42-11ce-bacd-00aa0057b223"); errors.Cause(err) != class.ErrNotFound {
		t.Errorf("Enroll() error = %v, want %v", err, class.ErrNotFound)
	}
}

func TestService_Enroll_classFull(t *testing.T) {
	stdSvc, clsSvc := setup(t)
	ctx := context.Background()

	cls := createClass(t, clsSvc, "Mathematics", 2)
	std1 := createStudent(t, stdSvc, "Amin")
	std2 := createStudent(t, stdSvc, "Binti")
	std3 := createStudent(t, stdSvc, "Chen")

	if err := stdSvc.Enroll(ctx, std1.ID, cls.ID); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}
	if err := stdSvc.Enroll(ctx, std2.ID, cls.ID); err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	if err := stdSvc.Enroll(ctx, std3.ID, cls.ID); errors.Cause(err) != student.ErrClassFull {
		t.Errorf("Enroll() error = %v, want %v", err, student.ErrClassFull)
	}

	// a member of the full class can still re-enroll as a no-op
	if err := stdSvc.Enroll(ctx, std1.ID, cls.ID); err != nil {
		t.Errorf("Enroll() re-enroll error = %v", err)
	}

	// unenrolling frees a seat
	if err := stdSvc.Unenroll(ctx, std2.ID, cls.ID); err != nil {
		t.Fatalf("Unenroll() error = %v", err)
	}
	if err := stdSvc.Enroll(ctx, std3.ID, cls.ID); err != nil {
		t.Errorf("Enroll() after a seat freed error = %v", err)
	}
}
