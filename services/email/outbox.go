package emailsvc

import (
	"context"
	"time"

	"github.com/trezcool/darasa/core"
)

// outboxService queues rendered messages in the mail table instead of sending
// them; an external dispatch worker picks them up from there.
type outboxService struct {
	repo   core.MailOutboxRepository
	logger core.Logger
}

var _ core.EmailService = (*outboxService)(nil)

func NewOutboxService(repo core.MailOutboxRepository, logger core.Logger) core.EmailService {
	return &outboxService{repo: repo, logger: logger}
}

func (svc outboxService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go svc.enqueue(msg)
	}
}

func (svc outboxService) enqueue(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		svc.logger.Error("rendering email", err)
		return
	}
	if !msg.HasRecipients() || !msg.HasContent() {
		return
	}

	now := time.Now().UTC()
	reqs := make([]core.MailRequest, 0, len(msg.To))
	for _, to := range msg.To {
		reqs = append(reqs, core.MailRequest{
			ToName:    to.Name,
			ToAddr:    to.Address,
			Subject:   msg.Subject,
			TextBody:  msg.TextContent,
			HTMLBody:  msg.HTMLContent,
			CreatedAt: now,
		})
	}
	if err := svc.repo.CreateMailRequests(context.Background(), reqs); err != nil {
		svc.logger.Error("queuing mail requests", err)
	}
}
