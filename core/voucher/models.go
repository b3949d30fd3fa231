package voucher

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core"
)

// Statuses
const (
	StatusActive  = "active"
	StatusExpired = "expired"
)

// Voucher is a discount voucher. It transitions active → expired exactly once,
// irreversibly, when the current time reaches ExpiryDate.
type Voucher struct {
	ID         string          `json:"id"`
	Code       string          `json:"code"`
	Amount     decimal.Decimal `json:"amount"`
	StudentID  string          `json:"student_id,omitempty"` // empty: redeemable by anyone
	ExpiryDate time.Time       `json:"expiry_date"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"` // UTC
	UpdatedAt  time.Time       `json:"updated_at"` // UTC
}

func (v *Voucher) Expired() bool { return v.Status == StatusExpired }

// NewVoucher contains information needed to issue a new Voucher.
type NewVoucher struct {
	Code       string          `json:"code" validate:"required,min=4,alphanum_"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	StudentID  string          `json:"student_id" validate:"omitempty,uuid4"`
	ExpiryDate time.Time       `json:"expiry_date" validate:"required"`
}

func (nv *NewVoucher) Validate(validate *validator.Validate) error {
	nv.Code = core.CleanString(nv.Code, true /* lower */)
	if err := validate.Struct(nv); err != nil {
		return err
	}
	if nv.Amount.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "amount cannot be negative"})
	}
	if nv.ExpiryDate.Before(time.Now()) {
		return core.NewValidationError(nil, core.FieldError{Field: "expiry_date", Error: "expiry date must be in the future"})
	}
	return nil
}

type QueryFilter struct {
	Status    string `query:"status"`
	StudentID string `query:"student_id"`
}

func (qf *QueryFilter) IsEmpty() bool { return qf.Status == "" && qf.StudentID == "" }
