package billing_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/billing"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/student"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

type testEnv struct {
	conf     *core.Config
	db       *inmemdb.DB
	billSvc  billing.Service
	stdSvc   student.Service
	clsSvc   class.Service
	usrSvc   user.Service
	notifSvc notification.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := &core.Config{
		TestMode:        true,
		Env:             "TEST",
		AppName:         "Darasa",
		SecretKey:       "secret",
		FrontendBaseURL: "http://localhost:3000",
		WorkDir:         core.Getwd(),
		DefaultFromName: "Darasa",
		DefaultFromAddr: "noreply@localhost",
		Billing: core.BillingConfig{
			Timezone:       "Asia/Kuala_Lumpur",
			GenerationDay:  25,
			GenerationHour: 1,
			PublishHour:    2,
			SweepHour:      3,
		},
		Registration: core.RegistrationConfig{CredentialLength: 12},
	}
	logger := core.NopLogger{}
	user.InitTokenGenerator(conf)
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ClearSentMessages()

	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(inmemdb.NewUserRepository(db), mailSvc, conf, logger)
	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db), mailSvc, logger)
	stdSvc := student.NewService(inmemdb.NewStudentRepository(db), logger)
	clsSvc := class.NewService(inmemdb.NewClassRepository(db), logger)
	billSvc := billing.NewService(inmemdb.NewFeeRepository(db), stdSvc, clsSvc, usrSvc, notifSvc, conf, logger)

	return &testEnv{
		conf:     conf,
		db:       db,
		billSvc:  billSvc,
		stdSvc:   stdSvc,
		clsSvc:   clsSvc,
		usrSvc:   usrSvc,
		notifSvc: notifSvc,
	}
}

func (env *testEnv) createUser(t *testing.T, name, email string, roles []string) user.User {
	t.Helper()
	usr, err := env.usrSvc.Create(context.Background(), user.NewUser{
		Name:     name,
		Email:    email,
		Password: "S3cret#pwd!",
		Roles:    roles,
	})
	if err != nil {
		t.Fatalf("creating user %s: %v", email, err)
	}
	return usr
}

func (env *testEnv) createStudent(t *testing.T, name, parentID string) student.Student {
	t.Helper()
	std, err := env.stdSvc.Create(context.Background(), student.NewStudent{
		Name:           name,
		EducationLevel: "Form 4",
		ParentID:       parentID,
	})
	if err != nil {
		t.Fatalf("creating student %s: %v", name, err)
	}
	return std
}

func (env *testEnv) createClass(t *testing.T, course string, fee int64, maxStudents int) class.Class {
	t.Helper()
	cls, err := env.clsSvc.Create(context.Background(), class.NewClass{
		CourseName:    course,
		AcademicLevel: "Form 4",
		Fee:           decimal.NewFromInt(fee),
		MaxStudents:   maxStudents,
	})
	if err != nil {
		t.Fatalf("creating class %s: %v", course, err)
	}
	return cls
}

func (env *testEnv) enroll(t *testing.T, std student.Student, cls class.Class) {
	t.Helper()
	if err := env.stdSvc.Enroll(context.Background(), std.ID, cls.ID); err != nil {
		t.Fatalf("enrolling %s in %s: %v", std.Name, cls.CourseName, err)
	}
}

func TestPeriods(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kuala_Lumpur")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		now         time.Time
		wantCurrent time.Time
		wantNext    time.Time
	}{
		{
			name:        "mid month",
			now:         time.Date(2026, time.January, 25, 10, 30, 0, 0, loc),
			wantCurrent: time.Date(2026, time.January, 1, 0, 0, 0, 0, loc),
			wantNext:    time.Date(2026, time.February, 1, 0, 0, 0, 0, loc),
		},
		{
			name:        "year rollover",
			now:         time.Date(2026, time.December, 31, 23, 59, 0, 0, loc),
			wantCurrent: time.Date(2026, time.December, 1, 0, 0, 0, 0, loc),
			wantNext:    time.Date(2027, time.January, 1, 0, 0, 0, 0, loc),
		},
		{
			name:        "first of month",
			now:         time.Date(2026, time.March, 1, 0, 0, 0, 0, loc),
			wantCurrent: time.Date(2026, time.March, 1, 0, 0, 0, 0, loc),
			wantNext:    time.Date(2026, time.April, 1, 0, 0, 0, 0, loc),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := billing.CurrentPeriod(tt.now, loc); !got.Equal(tt.wantCurrent) {
				t.Errorf("CurrentPeriod() = %v, want %v", got, tt.wantCurrent)
			}
			if got := billing.NextPeriod(tt.now, loc); !got.Equal(tt.wantNext) {
				t.Errorf("NextPeriod() = %v, want %v", got, tt.wantNext)
			}
		})
	}
}

func TestService_GenerateMonthly(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	admin := env.createUser(t, "Admin", "admin@test.cd", []string{user.RoleAdmin})
	parent := env.createUser(t, "Jane Parent", "jane@test.cd", []string{user.RoleParent})
	std1 := env.createStudent(t, "Amin", parent.ID)
	std2 := env.createStudent(t, "Binti", parent.ID)
	cls := env.createClass(t, "Mathematics", 150, 30)
	env.enroll(t, std1, cls)
	env.enroll(t, std2, cls)

	now := time.Date(2026, time.January, 25, 1, 0, 0, 0, env.conf.BillingLocation())

	res, err := env.billSvc.GenerateMonthly(ctx, now)
	if err != nil {
		t.Fatalf("GenerateMonthly() error = %v", err)
	}
	if res.Created != 2 || res.Skipped != 0 || res.Failed != 0 {
		t.Errorf("GenerateMonthly() = %+v, want 2 created", res)
	}
	wantPeriod := time.Date(2026, time.February, 1, 0, 0, 0, 0, env.conf.BillingLocation())
	if !res.Period.Equal(wantPeriod) {
		t.Errorf("period = %v, want %v", res.Period, wantPeriod)
	}

	fees, err := env.billSvc.Query(ctx, &billing.QueryFilter{StudentID: std1.ID}, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(fees) != 1 {
		t.Fatalf("fees = %d, want 1", len(fees))
	}
	fee := fees[0]
	if fee.Published {
		t.Error("generated fee must start unpublished")
	}
	if len(fee.Lines) != 1 {
		t.Fatalf("lines = %d, want 1", len(fee.Lines))
	}
	line := fee.Lines[0]
	if line.Description != "Fee for Mathematics" {
		t.Errorf("line description = %q", line.Description)
	}
	if !line.UnitAmount.Equal(decimal.NewFromInt(150)) || line.Quantity != 1 {
		t.Errorf("line = %s x %d, want 150 x 1", line.UnitAmount, line.Quantity)
	}
	if !fee.Total().Equal(decimal.NewFromInt(150)) {
		t.Errorf("total = %s, want 150", fee.Total())
	}

	// a second run creates no duplicates
	res, err = env.billSvc.GenerateMonthly(ctx, now)
	if err != nil {
		t.Fatalf("GenerateMonthly() error = %v", err)
	}
	if res.Created != 0 || res.Skipped != 2 {
		t.Errorf("second run = %+v, want 2 skipped", res)
	}
	fees, _ = env.billSvc.Query(ctx, nil, nil)
	if len(fees) != 2 {
		t.Errorf("fees after second run = %d, want 2", len(fees))
	}

	// admins got a summary
	notifs, err := env.notifSvc.ByUser(ctx, admin.ID)
	if err != nil {
		t.Fatalf("ByUser() error = %v", err)
	}
	if len(notifs) == 0 {
		t.Fatal("expected a generation summary notification for the admin")
	}
	if notifs[0].Title != "Monthly fees generated" {
		t.Errorf("notification title = %q", notifs[0].Title)
	}
}

func TestService_GenerateMonthly_missingClass(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	parent := env.createUser(t, "Jane Parent", "jane@test.cd", []string{user.RoleParent})
	std := env.createStudent(t, "Amin", parent.ID)
	cls := env.createClass(t, "Mathematics", 150, 30)
	env.enroll(t, std, cls)

	// the class vanishes, leaving the enrollment dangling
	if err := env.clsSvc.Delete(ctx, cls.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	now := time.Date(2026, time.January, 25, 1, 0, 0, 0, env.conf.BillingLocation())
	res, err := env.billSvc.GenerateMonthly(ctx, now)
	if err != nil {
		t.Fatalf("GenerateMonthly() error = %v", err)
	}
	if res.Created != 0 || res.Failed != 1 {
		t.Errorf("GenerateMonthly() = %+v, want 1 failed", res)
	}

	// no dangling fee was written
	fees, _ := env.billSvc.Query(ctx, nil, nil)
	if len(fees) != 0 {
		t.Errorf("fees = %d, want 0", len(fees))
	}
}

func TestService_PublishDue(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	admin := env.createUser(t, "Admin", "admin@test.cd", []string{user.RoleAdmin})
	parent := env.createUser(t, "Jane Parent", "jane@test.cd", []string{user.RoleParent})
	std := env.createStudent(t, "Amin", parent.ID)
	cls := env.createClass(t, "Mathematics", 150, 30)
	env.enroll(t, std, cls)

	loc := env.conf.BillingLocation()
	genTime := time.Date(2026, time.January, 25, 1, 0, 0, 0, loc)
	if _, err := env.billSvc.GenerateMonthly(ctx, genTime); err != nil {
		t.Fatalf("GenerateMonthly() error = %v", err)
	}

	// publishing in January does nothing: the fee is due February
	res, err := env.billSvc.PublishDue(ctx, genTime)
	if err != nil {
		t.Fatalf("PublishDue() error = %v", err)
	}
	if res.Published != 0 {
		t.Errorf("january run published %d fee(s), want 0", res.Published)
	}

	pubTime := time.Date(2026, time.February, 1, 2, 0, 0, 0, loc)
	res, err = env.billSvc.PublishDue(ctx, pubTime)
	if err != nil {
		t.Fatalf("PublishDue() error = %v", err)
	}
	if res.Published != 1 || res.NotifyFailures != 0 {
		t.Errorf("PublishDue() = %+v, want 1 published", res)
	}

	fees, _ := env.billSvc.Query(ctx, &billing.QueryFilter{StudentID: std.ID}, nil)
	if len(fees) != 1 || !fees[0].Published {
		t.Fatal("expected the fee to be published")
	}

	// the parent was notified with the amount
	notifs, err := env.notifSvc.ByUser(ctx, parent.ID)
	if err != nil {
		t.Fatalf("ByUser() error = %v", err)
	}
	if len(notifs) != 1 {
		t.Fatalf("parent notifications = %d, want 1", len(notifs))
	}
	if notifs[0].Title != "New fee published" {
		t.Errorf("notification title = %q", notifs[0].Title)
	}
	if !strings.Contains(notifs[0].Message, "150.00") {
		t.Errorf("notification message %q does not carry the amount", notifs[0].Message)
	}

	// admins got a summary
	adminNotifs, _ := env.notifSvc.ByUser(ctx, admin.ID)
	var published bool
	for _, n := range adminNotifs {
		if n.Title == "Fees published" {
			published = true
		}
	}
	if !published {
		t.Error("expected a publish summary notification for the admin")
	}

	// a second run publishes nothing and stays quiet
	res, err = env.billSvc.PublishDue(ctx, pubTime)
	if err != nil {
		t.Fatalf("PublishDue() error = %v", err)
	}
	if res.Published != 0 {
		t.Errorf("second run published %d fee(s), want 0", res.Published)
	}
	notifs, _ = env.notifSvc.ByUser(ctx, parent.ID)
	if len(notifs) != 1 {
		t.Errorf("parent notifications after second run = %d, want 1", len(notifs))
	}
}

func TestService_RecordPayment(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	parent := env.createUser(t, "Jane Parent", "jane@test.cd", []string{user.RoleParent})
	std := env.createStudent(t, "Amin", parent.ID)
	cls := env.createClass(t, "Mathematics", 150, 30)
	env.enroll(t, std, cls)

	loc := env.conf.BillingLocation()
	if _, err := env.billSvc.GenerateMonthly(ctx, time.Date(2026, time.January, 25, 1, 0, 0, 0, loc)); err != nil {
		t.Fatalf("GenerateMonthly() error = %v", err)
	}
	fees, _ := env.billSvc.Query(ctx, &billing.QueryFilter{StudentID: std.ID}, nil)
	if len(fees) != 1 {
		t.Fatalf("fees = %d, want 1", len(fees))
	}
	feeID := fees[0].ID

	// negative amounts are rejected
	if _, err := env.billSvc.RecordPayment(ctx, feeID, decimal.NewFromInt(-10), time.Now()); err == nil {
		t.Error("RecordPayment() expected an error for a negative amount")
	}

	// partial payment leaves the fee unpaid
	fee, err := env.billSvc.RecordPayment(ctx, feeID, decimal.NewFromInt(100), time.Now())
	if err != nil {
		t.Fatalf("RecordPayment() error = %v", err)
	}
	if fee.PaymentStatus {
		t.Error("fee must stay unpaid after a partial payment")
	}
	if !fee.Balance().Equal(decimal.NewFromInt(50)) {
		t.Errorf("balance = %s, want 50", fee.Balance())
	}

	// the remainder settles it
	fee, err = env.billSvc.RecordPayment(ctx, feeID, decimal.NewFromInt(50), time.Now())
	if err != nil {
		t.Fatalf("RecordPayment() error = %v", err)
	}
	if !fee.PaymentStatus {
		t.Error("fee must be paid once the balance reaches zero")
	}
	if !fee.PaymentDate.Valid {
		t.Error("payment date must be set")
	}
}
