package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/voucher"
)

type voucherRepository struct {
	db *sqlx.DB
}

var _ voucher.Repository = (*voucherRepository)(nil)

func NewVoucherRepository(db *sqlx.DB) voucher.Repository {
	return &voucherRepository{db: db}
}

type voucherRow struct {
	ID         string          `db:"id"`
	Code       string          `db:"code"`
	Amount     decimal.Decimal `db:"amount"`
	StudentID  null.String     `db:"student_id"`
	ExpiryDate time.Time       `db:"expiry_date"`
	Status     string          `db:"status"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

func (r voucherRow) toVoucher() voucher.Voucher {
	return voucher.Voucher{
		ID:         r.ID,
		Code:       r.Code,
		Amount:     r.Amount,
		StudentID:  r.StudentID.String,
		ExpiryDate: r.ExpiryDate,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

const voucherColumns = "id, code, amount, student_id, expiry_date, status, created_at, updated_at"

func (repo *voucherRepository) CreateVoucher(ctx context.Context, vch voucher.Voucher, exec ...core.DBExecutor) (voucher.Voucher, error) {
	vch.ID = uuid.New().String()
	q := `
INSERT INTO vouchers (id, code, amount, student_id, expiry_date, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := ext(repo.db, exec...).ExecContext(
		ctx, q,
		vch.ID, vch.Code, vch.Amount, nullStr(vch.StudentID), vch.ExpiryDate, vch.Status, vch.CreatedAt, vch.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return voucher.Voucher{}, voucher.ErrCodeExists
		}
		return voucher.Voucher{}, errors.Wrap(err, "inserting voucher")
	}
	return vch, nil
}

func (repo *voucherRepository) QueryVouchers(ctx context.Context, filter *voucher.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]voucher.Voucher, error) {
	q := "SELECT " + voucherColumns + " FROM vouchers"
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return bindVar(len(args))
	}

	if filter != nil && !filter.IsEmpty() {
		if filter.Status != "" {
			clauses = append(clauses, "status = "+arg(filter.Status))
		}
		if filter.StudentID != "" {
			clauses = append(clauses, "student_id = "+arg(filter.StudentID))
		}
	}
	if len(clauses) > 0 {
		q += " WHERE " + joinAnd(clauses)
	}
	q += orderBy(ordering, "expiry_date ASC")

	var rows []voucherRow
	if err := sqlx.SelectContext(ctx, ext(repo.db, exec...), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying vouchers")
	}
	vouchers := make([]voucher.Voucher, 0, len(rows))
	for _, row := range rows {
		vouchers = append(vouchers, row.toVoucher())
	}
	return vouchers, nil
}

func (repo *voucherRepository) GetVoucher(ctx context.Context, id string, exec ...core.DBExecutor) (voucher.Voucher, error) {
	var row voucherRow
	q := "SELECT " + voucherColumns + " FROM vouchers WHERE id = $1"
	if err := sqlx.GetContext(ctx, ext(repo.db, exec...), &row, q, id); err != nil {
		return voucher.Voucher{}, trapNoRowsErr(err, voucher.ErrNotFound)
	}
	return row.toVoucher(), nil
}

func (repo *voucherRepository) ExpireVouchersDue(ctx context.Context, now time.Time, exec ...core.DBExecutor) (int, error) {
	// single conditional update; already-expired vouchers are untouched, so
	// re-running the sweep is a no-op
	q := "UPDATE vouchers SET status = $1, updated_at = $2 WHERE status = $3 AND expiry_date <= $4"
	res, err := ext(repo.db, exec...).ExecContext(ctx, q, voucher.StatusExpired, time.Now().UTC(), voucher.StatusActive, now)
	if err != nil {
		return 0, errors.Wrap(err, "expiring vouchers")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
