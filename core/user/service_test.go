package user_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

func newTestConfig() *core.Config {
	return &core.Config{
		TestMode:        true,
		Env:             "TEST",
		AppName:         "Darasa",
		SecretKey:       "secret",
		FrontendBaseURL: "http://localhost:3000",
		WorkDir:         core.Getwd(),
		DefaultFromName: "Darasa",
		DefaultFromAddr: "noreply@localhost",

		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		EmailVerificationTimeout:  7 * 24 * time.Hour,

		Registration: core.RegistrationConfig{CredentialLength: 12},
	}
}

func setup(t *testing.T) (user.Service, *core.Config) {
	t.Helper()

	conf := newTestConfig()
	logger := core.NopLogger{}
	user.InitTokenGenerator(conf)
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ClearSentMessages()

	db := inmemdb.NewDB()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	return user.NewServiceMock(inmemdb.NewUserRepository(db), mailSvc, conf, logger), conf
}

func TestService_Register(t *testing.T) {
	svc, conf := setup(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, user.Registration{Name: "Jane Parent", Email: "jane@test.cd"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if len(res.Credential) != conf.Registration.CredentialLength {
		t.Errorf("credential length = %d, want %d", len(res.Credential), conf.Registration.CredentialLength)
	}
	if !res.User.Active() {
		t.Error("expected registered user to be active")
	}
	if !res.User.IsParent() {
		t.Errorf("expected default parent role, got %v", res.User.Roles)
	}
	if res.User.EmailVerified {
		t.Error("email must not be verified yet")
	}
	if err = res.User.CheckPassword(res.Credential); err != nil {
		t.Error("credential does not match the stored password")
	}
	if !strings.HasPrefix(res.VerificationLink, conf.FrontendBaseURL+"/verify-email?") {
		t.Errorf("unexpected verification link %q", res.VerificationLink)
	}

	// welcome mail carries the credential and the link
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("sent messages = %d, want 1", len(emailsvc.SentMessages))
	}
	msg := emailsvc.SentMessages[0]
	if msg.To[0].Address != "jane@test.cd" {
		t.Errorf("mail recipient = %s", msg.To[0].Address)
	}
	if !strings.Contains(msg.TextContent, res.Credential) {
		t.Error("welcome mail does not contain the credential")
	}
	if !strings.Contains(msg.TextContent, res.VerificationLink) {
		t.Error("welcome mail does not contain the verification link")
	}

	// each registration draws a fresh credential
	res2, err := svc.Register(ctx, user.Registration{Name: "Joe Parent", Email: "joe@test.cd"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if res2.Credential == res.Credential {
		t.Error("credential reused across registrations")
	}
}

func TestService_ConfirmEmail(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, user.Registration{Name: "Jane Parent", Email: "jane@test.cd"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	link, err := url.Parse(res.VerificationLink)
	if err != nil {
		t.Fatalf("parsing verification link: %v", err)
	}
	uid := link.Query().Get("uid")
	token := link.Query().Get("token")

	tests := []struct {
		name    string
		data    user.VerifyEmail
		wantErr bool
	}{
		{name: "invalid uid", data: user.VerifyEmail{UID: "%%%", Token: token}, wantErr: true},
		{name: "invalid token", data: user.VerifyEmail{UID: uid, Token: "nope-nope"}, wantErr: true},
		{name: "ok", data: user.VerifyEmail{UID: uid, Token: token}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ConfirmEmail(ctx, tt.data)
			if tt.wantErr {
				if err == nil {
					t.Error("ConfirmEmail() expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ConfirmEmail() error = %v", err)
			}
			usr, err := svc.GetByID(ctx, res.User.ID)
			if err != nil {
				t.Fatalf("GetByID() error = %v", err)
			}
			if !usr.EmailVerified {
				t.Error("expected email to be verified")
			}
		})
	}
}

func TestService_ToggleStatus(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, user.Registration{Name: "Jane Parent", Email: "jane@test.cd"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	active, err := svc.ToggleStatus(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("ToggleStatus() error = %v", err)
	}
	if active {
		t.Error("expected user to be deactivated")
	}

	active, err = svc.ToggleStatus(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("ToggleStatus() error = %v", err)
	}
	if !active {
		t.Error("expected user to be reactivated")
	}
}

func TestService_RequestPasswordReset(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, user.Registration{Name: "Jane Parent", Email: "jane@test.cd"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	emailsvc.ClearSentMessages()

	if err := svc.RequestPasswordReset(ctx, "jane@test.cd"); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("sent messages = %d, want 1", len(emailsvc.SentMessages))
	}
	if !strings.Contains(emailsvc.SentMessages[0].TextContent, "/password-reset-confirm?") {
		t.Error("reset mail does not contain the reset link")
	}

	if err := svc.RequestPasswordReset(ctx, "unknown@test.cd"); err != user.ErrNotFound {
		t.Errorf("RequestPasswordReset() error = %v, want %v", err, user.ErrNotFound)
	}
}
