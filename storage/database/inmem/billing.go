package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/billing"
)

type feeRepository struct {
	db *DB
}

var _ billing.Repository = (*feeRepository)(nil)

func NewFeeRepository(db *DB) billing.Repository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) CreateFeeIfAbsent(ctx context.Context, fee billing.Fee, exec ...core.DBExecutor) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, existing := range repo.db.fees {
		if existing.StudentID == fee.StudentID && existing.ClassID == fee.ClassID && existing.DueDate.Equal(fee.DueDate) {
			return false, nil
		}
	}

	fee.ID = uuid.New().String()
	for i := range fee.Lines {
		fee.Lines[i].ID = uuid.New().String()
		fee.Lines[i].FeeID = fee.ID
		fee.Lines[i].Position = i
	}
	repo.db.fees[fee.ID] = &fee
	return true, nil
}

func (repo *feeRepository) QueryFees(ctx context.Context, filter *billing.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]billing.Fee, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	fees := make([]billing.Fee, 0)
	for _, fee := range repo.db.fees {
		if filter != nil && !filter.IsEmpty() {
			if filter.StudentID != "" && fee.StudentID != filter.StudentID {
				continue
			}
			if filter.ClassID != "" && fee.ClassID != filter.ClassID {
				continue
			}
			if !filter.DueFrom.IsZero() && fee.DueDate.Before(filter.DueFrom) {
				continue
			}
			if !filter.DueTo.IsZero() && !fee.DueDate.Before(filter.DueTo) {
				continue
			}
			if filter.Published != nil && fee.Published != *filter.Published {
				continue
			}
		}
		fees = append(fees, *fee)
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i].DueDate.After(fees[j].DueDate) })
	return fees, nil
}

func (repo *feeRepository) GetFee(ctx context.Context, id string, exec ...core.DBExecutor) (billing.Fee, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if fee, ok := repo.db.fees[id]; ok {
		return *fee, nil
	}
	return billing.Fee{}, billing.ErrNotFound
}

func (repo *feeRepository) MarkFeePublished(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	fee, ok := repo.db.fees[id]
	if !ok {
		return false, billing.ErrNotFound
	}
	if fee.Published {
		return false, nil
	}
	fee.Published = true
	fee.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (repo *feeRepository) RecordFeePayment(ctx context.Context, fee billing.Fee, exec ...core.DBExecutor) (billing.Fee, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.fees[fee.ID]; !ok {
		return billing.Fee{}, billing.ErrNotFound
	}
	repo.db.fees[fee.ID] = &fee
	return fee, nil
}
