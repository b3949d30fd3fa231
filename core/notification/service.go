package notification

import (
	"context"
	"net/mail"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound = errors.New("notification not found")
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, notif Notification, exec ...core.DBExecutor) (Notification, error)
		QueryNotificationsByUser(ctx context.Context, userID string, exec ...core.DBExecutor) ([]Notification, error)
		// MarkNotificationRead flips IsRead for the user's notification; it is
		// a no-op when already read.
		MarkNotificationRead(ctx context.Context, id, userID string, exec ...core.DBExecutor) error
	}

	Service interface {
		// FanOut writes one notification per recipient (and hands one email
		// per addressable recipient to the mail service). Writes are issued
		// concurrently and joined; one recipient failing never blocks the
		// others. The returned Result reports delivered and failed recipients.
		FanOut(ctx context.Context, msg Message, recipients ...Recipient) Result
		ByUser(ctx context.Context, userID string) ([]Notification, error)
		MarkRead(ctx context.Context, id, userID string) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

func (svc *service) FanOut(ctx context.Context, msg Message, recipients ...Recipient) Result {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result Result
	)

	for _, rcp := range recipients {
		rcp := rcp
		wg.Add(1)
		go func() {
			defer wg.Done()

			notif := Notification{
				UserID:    rcp.UserID,
				Title:     msg.Title,
				Message:   msg.Body,
				CreatedAt: time.Now().UTC(),
			}
			_, err := svc.repo.CreateNotification(ctx, notif)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				svc.logger.Error("writing notification for user "+rcp.UserID, err)
				result.Failed = append(result.Failed, RecipientError{UserID: rcp.UserID, Error: err.Error()})
				return
			}
			result.Delivered++
		}()
	}
	wg.Wait()

	svc.sendMails(msg, recipients)
	return result
}

func (svc *service) ByUser(ctx context.Context, userID string) ([]Notification, error) {
	return svc.repo.QueryNotificationsByUser(ctx, userID)
}

func (svc *service) MarkRead(ctx context.Context, id, userID string) error {
	return svc.repo.MarkNotificationRead(ctx, id, userID)
}

func (svc *service) sendMails(msg Message, recipients []Recipient) {
	messages := make([]*core.EmailMessage, 0, len(recipients))
	for _, rcp := range recipients {
		if rcp.Email == "" {
			continue
		}
		m := &core.EmailMessage{
			To:      []mail.Address{{Name: rcp.Name, Address: rcp.Email}},
			Subject: msg.Title,
			BodyStr: msg.Body,
		}
		if msg.HTMLBody != "" {
			m.HTMLContent = msg.HTMLBody
		}
		messages = append(messages, m)
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
}
