package voucher_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/voucher"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

func setup(t *testing.T) voucher.Service {
	t.Helper()
	return voucher.NewService(inmemdb.NewVoucherRepository(inmemdb.NewDB()), core.NopLogger{})
}

func createVoucher(t *testing.T, svc voucher.Service, code string, expiry time.Time) voucher.Voucher {
	t.Helper()
	vch, err := svc.Create(context.Background(), voucher.NewVoucher{
		Code:       code,
		Amount:     decimal.NewFromInt(20),
		ExpiryDate: expiry,
	})
	if err != nil {
		t.Fatalf("creating voucher %s: %v", code, err)
	}
	return vch
}

func TestService_Create(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	expiry := time.Now().Add(30 * 24 * time.Hour)
	vch := createVoucher(t, svc, "ramadan20", expiry)
	if vch.Status != voucher.StatusActive {
		t.Errorf("status = %s, want %s", vch.Status, voucher.StatusActive)
	}

	// duplicate codes are rejected as a validation error
	_, err := svc.Create(ctx, voucher.NewVoucher{
		Code:       "ramadan20",
		Amount:     decimal.NewFromInt(10),
		ExpiryDate: expiry,
	})
	if err == nil {
		t.Fatal("Create() expected an error for a duplicate code")
	}
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("Create() error = %T, want *core.ValidationError", err)
	}
}

func TestService_ExpireDue(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	now := time.Now()
	due1 := createVoucher(t, svc, "due1code", now.Add(time.Hour))
	due2 := createVoucher(t, svc, "due2code", now.Add(2*time.Hour))
	future := createVoucher(t, svc, "futurecode", now.Add(90*24*time.Hour))

	sweepTime := now.Add(3 * time.Hour)
	count, err := svc.ExpireDue(ctx, sweepTime)
	if err != nil {
		t.Fatalf("ExpireDue() error = %v", err)
	}
	if count != 2 {
		t.Errorf("ExpireDue() = %d, want 2", count)
	}

	for _, id := range []string{due1.ID, due2.ID} {
		vch, err := svc.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if !vch.Expired() {
			t.Errorf("voucher %s not expired", vch.Code)
		}
	}
	vch, err := svc.GetByID(ctx, future.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if vch.Expired() {
		t.Error("future voucher must stay active")
	}

	// the sweep is idempotent
	count, err = svc.ExpireDue(ctx, sweepTime)
	if err != nil {
		t.Fatalf("ExpireDue() error = %v", err)
	}
	if count != 0 {
		t.Errorf("second sweep = %d, want 0", count)
	}
}
