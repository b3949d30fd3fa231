package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/billing"
)

type feeRepository struct {
	db *sqlx.DB
}

var _ billing.Repository = (*feeRepository)(nil)

func NewFeeRepository(db *sqlx.DB) billing.Repository {
	return &feeRepository{db: db}
}

type feeRow struct {
	ID            string          `db:"id"`
	StudentID     string          `db:"student_id"`
	ClassID       string          `db:"class_id"`
	DueDate       time.Time       `db:"due_date"`
	PaidAmount    decimal.Decimal `db:"paid_amount"`
	PaymentDate   null.Time       `db:"payment_date"`
	PaymentStatus bool            `db:"payment_status"`
	Published     bool            `db:"published"`
	Discount      decimal.Decimal `db:"discount"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (r feeRow) toFee() billing.Fee {
	return billing.Fee{
		ID:            r.ID,
		StudentID:     r.StudentID,
		ClassID:       r.ClassID,
		DueDate:       r.DueDate,
		PaidAmount:    r.PaidAmount,
		PaymentDate:   r.PaymentDate,
		PaymentStatus: r.PaymentStatus,
		Published:     r.Published,
		Discount:      r.Discount,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type feeLineRow struct {
	ID          string          `db:"id"`
	FeeID       string          `db:"fee_id"`
	Description string          `db:"description"`
	UnitAmount  decimal.Decimal `db:"unit_amount"`
	Quantity    int             `db:"quantity"`
	Position    int             `db:"position"`
}

const feeColumns = "id, student_id, class_id, due_date, paid_amount, payment_date, payment_status, published, discount, created_at, updated_at"

func (repo *feeRepository) CreateFeeIfAbsent(ctx context.Context, fee billing.Fee, exec ...core.DBExecutor) (bool, error) {
	fee.ID = uuid.New().String()

	var created bool
	err := core.AtomicTx(ctx, repo.db, func(tx core.DBTransactor) error {
		// the (student_id, class_id, due_date) unique constraint makes this
		// safe against concurrent generator runs
		q := `
INSERT INTO fees (id, student_id, class_id, due_date, paid_amount, payment_date, payment_status, published, discount, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (student_id, class_id, due_date) DO NOTHING`
		res, err := tx.ExecContext(
			ctx, q,
			fee.ID, fee.StudentID, fee.ClassID, fee.DueDate, fee.PaidAmount, fee.PaymentDate,
			fee.PaymentStatus, fee.Published, fee.Discount, fee.CreatedAt, fee.UpdatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "inserting fee")
		}
		n, _ := res.RowsAffected()
		created = n > 0
		if !created {
			return nil
		}

		lq := `
INSERT INTO fee_lines (id, fee_id, description, unit_amount, quantity, position)
VALUES ($1, $2, $3, $4, $5, $6)`
		for i, line := range fee.Lines {
			if _, err = tx.ExecContext(ctx, lq, uuid.New().String(), fee.ID, line.Description, line.UnitAmount, line.Quantity, i); err != nil {
				return errors.Wrap(err, "inserting fee line")
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (repo *feeRepository) QueryFees(ctx context.Context, filter *billing.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]billing.Fee, error) {
	q := "SELECT " + feeColumns + " FROM fees"
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return bindVar(len(args))
	}

	if filter != nil && !filter.IsEmpty() {
		if filter.StudentID != "" {
			clauses = append(clauses, "student_id = "+arg(filter.StudentID))
		}
		if filter.ClassID != "" {
			clauses = append(clauses, "class_id = "+arg(filter.ClassID))
		}
		if !filter.DueFrom.IsZero() {
			clauses = append(clauses, "due_date >= "+arg(filter.DueFrom))
		}
		if !filter.DueTo.IsZero() {
			clauses = append(clauses, "due_date < "+arg(filter.DueTo))
		}
		if filter.Published != nil {
			clauses = append(clauses, "published = "+arg(*filter.Published))
		}
	}
	if len(clauses) > 0 {
		q += " WHERE " + joinAnd(clauses)
	}
	q += orderBy(ordering, "due_date DESC, created_at DESC")

	var rows []feeRow
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying fees")
	}

	fees := make([]billing.Fee, 0, len(rows))
	for _, row := range rows {
		fee := row.toFee()
		lines, err := repo.queryLines(ctx, fee.ID, exec...)
		if err != nil {
			return nil, err
		}
		fee.Lines = lines
		fees = append(fees, fee)
	}
	return fees, nil
}

func (repo *feeRepository) GetFee(ctx context.Context, id string, exec ...core.DBExecutor) (billing.Fee, error) {
	var row feeRow
	q := "SELECT " + feeColumns + " FROM fees WHERE id = $1"
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, q, id); err != nil {
		return billing.Fee{}, trapNoRowsErr(err, billing.ErrNotFound)
	}
	fee := row.toFee()
	lines, err := repo.queryLines(ctx, id, exec...)
	if err != nil {
		return billing.Fee{}, err
	}
	fee.Lines = lines
	return fee, nil
}

func (repo *feeRepository) queryLines(ctx context.Context, feeID string, exec ...core.DBExecutor) ([]billing.FeeLine, error) {
	var rows []feeLineRow
	q := "SELECT id, fee_id, description, unit_amount, quantity, position FROM fee_lines WHERE fee_id = $1 ORDER BY position ASC"
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, q, feeID); err != nil {
		return nil, errors.Wrap(err, "querying fee lines")
	}
	lines := make([]billing.FeeLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, billing.FeeLine{
			ID:          row.ID,
			FeeID:       row.FeeID,
			Description: row.Description,
			UnitAmount:  row.UnitAmount,
			Quantity:    row.Quantity,
			Position:    row.Position,
		})
	}
	return lines, nil
}

func (repo *feeRepository) MarkFeePublished(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error) {
	// conditional flip; a fee already claimed by another run affects no rows
	q := "UPDATE fees SET published = true, updated_at = $2 WHERE id = $1 AND published = false"
	res, err := ext(repo.db, exec...).ExecContext(ctx, q, id, time.Now().UTC())
	if err != nil {
		return false, errors.Wrap(err, "publishing fee")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (repo *feeRepository) RecordFeePayment(ctx context.Context, fee billing.Fee, exec ...core.DBExecutor) (billing.Fee, error) {
	q := `
UPDATE fees
SET paid_amount = $2, payment_date = $3, payment_status = $4, updated_at = $5
WHERE id = $1`
	res, err := ext(repo.db, exec...).ExecContext(ctx, q, fee.ID, fee.PaidAmount, fee.PaymentDate, fee.PaymentStatus, fee.UpdatedAt)
	if err != nil {
		return billing.Fee{}, errors.Wrap(err, "recording fee payment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return billing.Fee{}, billing.ErrNotFound
	}
	return fee, nil
}
