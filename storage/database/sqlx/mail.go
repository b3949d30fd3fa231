package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

type mailOutboxRepository struct {
	db *sqlx.DB
}

var _ core.MailOutboxRepository = (*mailOutboxRepository)(nil)

func NewMailOutboxRepository(db *sqlx.DB) core.MailOutboxRepository {
	return &mailOutboxRepository{db: db}
}

type mailRow struct {
	ID        string    `db:"id"`
	ToName    string    `db:"to_name"`
	ToAddr    string    `db:"to_addr"`
	Subject   string    `db:"subject"`
	TextBody  string    `db:"text_body"`
	HTMLBody  string    `db:"html_body"`
	CreatedAt time.Time `db:"created_at"`
	SentAt    null.Time `db:"sent_at"`
}

func (repo *mailOutboxRepository) CreateMailRequests(ctx context.Context, reqs []core.MailRequest, exec ...core.DBExecutor) error {
	q := `
INSERT INTO mail (id, to_name, to_addr, subject, text_body, html_body, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, req := range reqs {
		if req.ID == "" {
			req.ID = uuid.New().String()
		}
		if _, err := ext(repo.db, exec...).ExecContext(
			ctx, q,
			req.ID, req.ToName, req.ToAddr, req.Subject, req.TextBody, req.HTMLBody, req.CreatedAt,
		); err != nil {
			return errors.Wrap(err, "inserting mail request")
		}
	}
	return nil
}

func (repo *mailOutboxRepository) QueryPendingMailRequests(ctx context.Context, exec ...core.DBExecutor) ([]core.MailRequest, error) {
	var rows []mailRow
	q := "SELECT id, to_name, to_addr, subject, text_body, html_body, created_at, sent_at FROM mail WHERE sent_at IS NULL ORDER BY created_at ASC"
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying mail requests")
	}
	reqs := make([]core.MailRequest, 0, len(rows))
	for _, row := range rows {
		reqs = append(reqs, core.MailRequest{
			ID:        row.ID,
			ToName:    row.ToName,
			ToAddr:    row.ToAddr,
			Subject:   row.Subject,
			TextBody:  row.TextBody,
			HTMLBody:  row.HTMLBody,
			CreatedAt: row.CreatedAt,
			SentAt:    row.SentAt,
		})
	}
	return reqs, nil
}
