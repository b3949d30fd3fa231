package notification_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/notification"
	emailsvc "github.com/trezcool/darasa/services/email"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

func newTestConfig() *core.Config {
	return &core.Config{
		TestMode:        true,
		AppName:         "Darasa",
		DefaultFromName: "Darasa",
		DefaultFromAddr: "noreply@localhost",
	}
}

func setup(t *testing.T) notification.Service {
	t.Helper()
	emailsvc.ClearSentMessages()
	db := inmemdb.NewDB()
	return notification.NewService(
		inmemdb.NewNotificationRepository(db),
		emailsvc.NewConsoleServiceMock(newTestConfig()),
		core.NopLogger{},
	)
}

// failingRepository rejects writes for one specific user.
type failingRepository struct {
	notification.Repository
	failUserID string
}

func (repo failingRepository) CreateNotification(ctx context.Context, notif notification.Notification, exec ...core.DBExecutor) (notification.Notification, error) {
	if notif.UserID == repo.failUserID {
		return notification.Notification{}, errors.New("boom")
	}
	return repo.Repository.CreateNotification(ctx, notif, exec...)
}

func TestService_FanOut(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	msg := notification.Message{Title: "New fee published", Body: "A fee of 150.00 is now payable."}
	recipients := []notification.Recipient{
		{UserID: "u1", Name: "Jane", Email: "jane@test.cd"},
		{UserID: "u2", Name: "Joe", Email: "joe@test.cd"},
		{UserID: "u3", Name: "NoMail"}, // in-app only
	}

	res := svc.FanOut(ctx, msg, recipients...)
	if res.Delivered != 3 {
		t.Errorf("Delivered = %d, want 3", res.Delivered)
	}
	if !res.AllDelivered() {
		t.Errorf("Failed = %v, want none", res.Failed)
	}

	for _, rcp := range recipients {
		notifs, err := svc.ByUser(ctx, rcp.UserID)
		if err != nil {
			t.Fatalf("ByUser() error = %v", err)
		}
		if len(notifs) != 1 {
			t.Fatalf("notifications for %s = %d, want 1", rcp.UserID, len(notifs))
		}
		if notifs[0].Title != msg.Title || notifs[0].Message != msg.Body {
			t.Errorf("notification = %+v", notifs[0])
		}
		if notifs[0].IsRead {
			t.Error("new notification must be unread")
		}
	}

	// one mail per addressable recipient
	if len(emailsvc.SentMessages) != 2 {
		t.Errorf("sent mails = %d, want 2", len(emailsvc.SentMessages))
	}
}

func TestService_FanOut_partialFailure(t *testing.T) {
	emailsvc.ClearSentMessages()
	db := inmemdb.NewDB()
	repo := failingRepository{Repository: inmemdb.NewNotificationRepository(db), failUserID: "u2"}
	svc := notification.NewService(repo, emailsvc.NewConsoleServiceMock(newTestConfig()), core.NopLogger{})
	ctx := context.Background()

	res := svc.FanOut(ctx, notification.Message{Title: "T", Body: "B"},
		notification.Recipient{UserID: "u1"},
		notification.Recipient{UserID: "u2"},
		notification.Recipient{UserID: "u3"},
	)

	if res.Delivered != 2 {
		t.Errorf("Delivered = %d, want 2", res.Delivered)
	}
	if len(res.Failed) != 1 {
		t.Fatalf("Failed = %v, want 1 entry", res.Failed)
	}
	if res.Failed[0].UserID != "u2" || res.Failed[0].Error != "boom" {
		t.Errorf("Failed[0] = %+v", res.Failed[0])
	}

	// the failing recipient never blocks the others
	for _, id := range []string{"u1", "u3"} {
		notifs, err := svc.ByUser(ctx, id)
		if err != nil {
			t.Fatalf("ByUser() error = %v", err)
		}
		if len(notifs) != 1 {
			t.Errorf("notifications for %s = %d, want 1", id, len(notifs))
		}
	}
}

func TestService_MarkRead(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	svc.FanOut(ctx, notification.Message{Title: "T", Body: "B"}, notification.Recipient{UserID: "u1"})
	notifs, err := svc.ByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ByUser() error = %v", err)
	}

	if err = svc.MarkRead(ctx, notifs[0].ID, "u1"); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	notifs, _ = svc.ByUser(ctx, "u1")
	if !notifs[0].IsRead {
		t.Error("expected notification to be read")
	}

	// marking twice is a no-op
	if err = svc.MarkRead(ctx, notifs[0].ID, "u1"); err != nil {
		t.Errorf("MarkRead() second call error = %v", err)
	}

	// another user cannot touch it
	if err = svc.MarkRead(ctx, notifs[0].ID, "u2"); err != notification.ErrNotFound {
		t.Errorf("MarkRead() error = %v, want %v", err, notification.ErrNotFound)
	}
}
