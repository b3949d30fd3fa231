package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
)

type mailOutboxRepository struct {
	db *DB
}

var _ core.MailOutboxRepository = (*mailOutboxRepository)(nil)

func NewMailOutboxRepository(db *DB) core.MailOutboxRepository {
	return &mailOutboxRepository{db: db}
}

func (repo *mailOutboxRepository) CreateMailRequests(ctx context.Context, reqs []core.MailRequest, exec ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, req := range reqs {
		if req.ID == "" {
			req.ID = uuid.New().String()
		}
		repo.db.mail = append(repo.db.mail, req)
	}
	return nil
}

func (repo *mailOutboxRepository) QueryPendingMailRequests(ctx context.Context, exec ...core.DBExecutor) ([]core.MailRequest, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	reqs := make([]core.MailRequest, 0)
	for _, req := range repo.db.mail {
		if !req.SentAt.Valid {
			reqs = append(reqs, req)
		}
	}
	return reqs, nil
}
