package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/voucher"
)

type voucherRepository struct {
	db *DB
}

var _ voucher.Repository = (*voucherRepository)(nil)

func NewVoucherRepository(db *DB) voucher.Repository {
	return &voucherRepository{db: db}
}

func (repo *voucherRepository) CreateVoucher(ctx context.Context, vch voucher.Voucher, exec ...core.DBExecutor) (voucher.Voucher, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.vouchers {
		if existing.Code == vch.Code {
			return voucher.Voucher{}, voucher.ErrCodeExists
		}
	}
	vch.ID = uuid.New().String()
	repo.db.vouchers[vch.ID] = &vch
	return vch, nil
}

func (repo *voucherRepository) QueryVouchers(ctx context.Context, filter *voucher.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]voucher.Voucher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	vouchers := make([]voucher.Voucher, 0)
	for _, vch := range repo.db.vouchers {
		if filter != nil && !filter.IsEmpty() {
			if filter.Status != "" && vch.Status != filter.Status {
				continue
			}
			if filter.StudentID != "" && vch.StudentID != filter.StudentID {
				continue
			}
		}
		vouchers = append(vouchers, *vch)
	}
	sort.Slice(vouchers, func(i, j int) bool { return vouchers[i].ExpiryDate.Before(vouchers[j].ExpiryDate) })
	return vouchers, nil
}

func (repo *voucherRepository) GetVoucher(ctx context.Context, id string, exec ...core.DBExecutor) (voucher.Voucher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if vch, ok := repo.db.vouchers[id]; ok {
		return *vch, nil
	}
	return voucher.Voucher{}, voucher.ErrNotFound
}

func (repo *voucherRepository) ExpireVouchersDue(ctx context.Context, now time.Time, exec ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for _, vch := range repo.db.vouchers {
		if vch.Status == voucher.StatusActive && !vch.ExpiryDate.After(now) {
			vch.Status = voucher.StatusExpired
			vch.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}
