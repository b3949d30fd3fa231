package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/notification"
)

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Title     string    `db:"title"`
	Message   string    `db:"message"`
	IsRead    bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, notif notification.Notification, exec ...core.DBExecutor) (notification.Notification, error) {
	notif.ID = uuid.New().String()
	q := `
INSERT INTO notifications (id, user_id, title, message, is_read, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := ext(repo.db, exec...).ExecContext(ctx, q, notif.ID, notif.UserID, notif.Title, notif.Message, notif.IsRead, notif.CreatedAt)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return notif, nil
}

func (repo *notificationRepository) QueryNotificationsByUser(ctx context.Context, userID string, exec ...core.DBExecutor) ([]notification.Notification, error) {
	var rows []notificationRow
	q := "SELECT id, user_id, title, message, is_read, created_at FROM notifications WHERE user_id = $1 ORDER BY created_at DESC"
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notifs = append(notifs, notification.Notification{
			ID:        row.ID,
			UserID:    row.UserID,
			Title:     row.Title,
			Message:   row.Message,
			IsRead:    row.IsRead,
			CreatedAt: row.CreatedAt,
		})
	}
	return notifs, nil
}

func (repo *notificationRepository) MarkNotificationRead(ctx context.Context, id, userID string, exec ...core.DBExecutor) error {
	q := "UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2"
	res, err := ext(repo.db, exec...).ExecContext(ctx, q, id, userID)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notification.ErrNotFound
	}
	return nil
}
