package voucher

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound   = errors.New("voucher not found")
	ErrCodeExists = errors.New("a voucher with this code already exists")
)

type (
	Repository interface {
		CreateVoucher(ctx context.Context, vch Voucher, exec ...core.DBExecutor) (Voucher, error)
		QueryVouchers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Voucher, error)
		GetVoucher(ctx context.Context, id string, exec ...core.DBExecutor) (Voucher, error)
		// ExpireVouchersDue marks every active voucher with expiry_date <= now
		// as expired and returns how many transitioned.
		ExpireVouchersDue(ctx context.Context, now time.Time, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Create(ctx context.Context, nv NewVoucher) (Voucher, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Voucher, error)
		GetByID(ctx context.Context, id string) (Voucher, error)
		// ExpireDue is the daily sweep: idempotent, no notifications.
		ExpireDue(ctx context.Context, now time.Time) (int, error)
	}

	service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger) Service {
	return &service{repo: repo, logger: logger}
}

func (svc *service) Create(ctx context.Context, nv NewVoucher) (Voucher, error) {
	now := time.Now().UTC()
	vch := Voucher{
		Code:       nv.Code,
		Amount:     nv.Amount,
		StudentID:  nv.StudentID,
		ExpiryDate: nv.ExpiryDate.UTC(),
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	vch, err := svc.repo.CreateVoucher(ctx, vch)
	if err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return Voucher{}, core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return Voucher{}, err
	}
	return vch, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Voucher, error) {
	return svc.repo.QueryVouchers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Voucher, error) {
	return svc.repo.GetVoucher(ctx, id)
}

func (svc *service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	count, err := svc.repo.ExpireVouchersDue(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "expiring vouchers")
	}
	if count > 0 {
		svc.logger.Info(fmt.Sprintf("voucher sweep: %d voucher(s) expired", count))
	}
	return count, nil
}
