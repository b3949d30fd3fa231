package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	. "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core/billing"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/student"
	"github.com/trezcool/darasa/core/user"
)

type billingEnv struct {
	app *testApp

	admin, parent1, parent2 user.User
	std1, std2              student.Student
	cls                     class.Class
	fee1, fee2              billing.Fee
}

// setupBilling creates two enrolled students of two different parents and runs
// the monthly generation batch; the resulting fees are not yet published.
func setupBilling(t *testing.T) *billingEnv {
	t.Helper()

	app := setup(t)
	ctx := context.Background()

	env := &billingEnv{app: app}
	env.admin = app.createUser(t, "Boss", "bigboss", "boss@test.cd", "", []string{user.RoleAdmin}, true)
	env.parent1 = app.createUser(t, "Jane Parent", "janep1", "jane@test.cd", "", []string{user.RoleParent}, true)
	env.parent2 = app.createUser(t, "Joe Parent", "joep01", "joe@test.cd", "", []string{user.RoleParent}, true)

	var err error
	if env.cls, err = app.clsSvc.Create(ctx, class.NewClass{
		CourseName:    "Mathematics",
		AcademicLevel: "Form 4",
		Fee:           decimal.NewFromInt(150),
		MaxStudents:   30,
	}); err != nil {
		t.Fatalf("creating class: %v", err)
	}
	if env.std1, err = app.stdSvc.Create(ctx, student.NewStudent{
		Name: "Amin", EducationLevel: "Form 4", ParentID: env.parent1.ID,
	}); err != nil {
		t.Fatalf("creating student: %v", err)
	}
	if env.std2, err = app.stdSvc.Create(ctx, student.NewStudent{
		Name: "Binti", EducationLevel: "Form 4", ParentID: env.parent2.ID,
	}); err != nil {
		t.Fatalf("creating student: %v", err)
	}
	for _, std := range []student.Student{env.std1, env.std2} {
		if err = app.stdSvc.Enroll(ctx, std.ID, env.cls.ID); err != nil {
			t.Fatalf("enrolling %s: %v", std.Name, err)
		}
	}

	genTime := time.Date(2026, time.January, 25, 10, 0, 0, 0, app.conf.BillingLocation())
	res, err := app.billSvc.GenerateMonthly(ctx, genTime)
	if err != nil {
		t.Fatalf("generating fees: %v", err)
	}
	if res.Created != 2 {
		t.Fatalf("fees created = %d, want 2", res.Created)
	}
	env.fee1 = env.feeOf(t, env.std1.ID)
	env.fee2 = env.feeOf(t, env.std2.ID)
	return env
}

func (env *billingEnv) feeOf(t *testing.T, studentID string) billing.Fee {
	t.Helper()
	fees, err := env.app.billSvc.Query(context.Background(), &billing.QueryFilter{StudentID: studentID}, nil)
	if err != nil {
		t.Fatalf("querying fees: %v", err)
	}
	if len(fees) != 1 {
		t.Fatalf("fees for %s = %d, want 1", studentID, len(fees))
	}
	return fees[0]
}

func (env *billingEnv) publish(t *testing.T) {
	t.Helper()
	pubTime := time.Date(2026, time.February, 1, 2, 0, 0, 0, env.app.conf.BillingLocation())
	if _, err := env.app.billSvc.PublishDue(context.Background(), pubTime); err != nil {
		t.Fatalf("publishing fees: %v", err)
	}
}

func Test_billingApi_parentScoping(t *testing.T) {
	env := setupBilling(t)
	app := env.app
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})
	notFound := marchallObj(t, httpErr{Error: "not found"})

	preTests := []httpTest{
		{name: "Auth required", path: "/v1/fees", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Parent must name a child", path: "/v1/fees", token: app.getToken(t, env.parent1),
			wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Someone else's child refused", path: "/v1/fees?student_id=" + env.std2.ID,
			token: app.getToken(t, env.parent1), wantCode: http.StatusForbidden, wantData: forbidden,
		},
		{
			name: "Unpublished fees invisible", path: "/v1/fees?student_id=" + env.std1.ID,
			token: app.getToken(t, env.parent1), wantCode: http.StatusOK, wantData: marchallList(t, []interface{}{}...),
		},
		{
			name: "Unpublished fee detail hidden", path: "/v1/fees/" + env.fee1.ID,
			token: app.getToken(t, env.parent1), wantCode: http.StatusNotFound, wantData: notFound,
		},
	}
	for _, tt := range preTests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Admin sees unpublished fee", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/fees/"+env.fee1.ID, app.getToken(t, env.admin))
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var res FeeResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if !res.Total.Equal(decimal.NewFromInt(150)) {
			t.Errorf("total = %s, want 150", res.Total)
		}
	})

	env.publish(t)

	t.Run("Published fees of own child", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/fees?student_id="+env.std1.ID, app.getToken(t, env.parent1))
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var fees []billing.Fee
		if err := json.Unmarshal(rec.Body.Bytes(), &fees); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if len(fees) != 1 || fees[0].ID != env.fee1.ID {
			t.Fatalf("fees = %+v, want just %s", fees, env.fee1.ID)
		}
		if !fees[0].Published {
			t.Error("expected a published fee")
		}
	})

	postTests := []httpTest{
		{
			name: "Someone else's fee detail hidden", path: "/v1/fees/" + env.fee2.ID,
			token: app.getToken(t, env.parent1), wantCode: http.StatusNotFound, wantData: notFound,
		},
	}
	for _, tt := range postTests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("Own fee detail", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/fees/"+env.fee2.ID, app.getToken(t, env.parent2))
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
	})
}

func Test_billingApi_recordPayment(t *testing.T) {
	env := setupBilling(t)
	app := env.app
	env.publish(t)
	path := "/v1/fees/" + env.fee1.ID + "/payments"

	t.Run("Admin required", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		}
		body := marchallObj(t, PaymentRequest{Amount: decimal.NewFromInt(100)})
		req, rec := newAuthRequest(http.MethodPost, path, app.getToken(t, env.parent1), body)
		app.server.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Partial payment", func(t *testing.T) {
		body := marchallObj(t, PaymentRequest{Amount: decimal.NewFromInt(100)})
		req, rec := newAuthRequest(http.MethodPost, path, app.getToken(t, env.admin), body)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var res FeeResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if !res.Balance.Equal(decimal.NewFromInt(50)) {
			t.Errorf("balance = %s, want 50", res.Balance)
		}
		if res.PaymentStatus {
			t.Error("fee must not be settled yet")
		}
	})

	t.Run("Settling payment", func(t *testing.T) {
		body := marchallObj(t, PaymentRequest{Amount: decimal.NewFromInt(50)})
		req, rec := newAuthRequest(http.MethodPost, path, app.getToken(t, env.admin), body)
		app.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var res FeeResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if !res.Balance.Equal(decimal.Zero) {
			t.Errorf("balance = %s, want 0", res.Balance)
		}
		if !res.PaymentStatus {
			t.Error("expected the fee to be settled")
		}
	})
}
