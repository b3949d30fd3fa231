package billing

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
)

// Fee is one billing record per (student, class, due period). DueDate is the
// first-of-month marker of the period being billed, at midnight in the billing
// timezone. Records are created by the monthly generator and flipped to
// published by the daily publisher; they are never deleted.
type Fee struct {
	ID            string          `json:"id"`
	StudentID     string          `json:"student_id"`
	ClassID       string          `json:"class_id"`
	DueDate       time.Time       `json:"due_date"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PaymentDate   null.Time       `json:"payment_date"`
	PaymentStatus bool            `json:"payment_status"`
	Published     bool            `json:"published"`
	Discount      decimal.Decimal `json:"discount"`
	Lines         []FeeLine       `json:"lines"`
	CreatedAt     time.Time       `json:"created_at"` // UTC
	UpdatedAt     time.Time       `json:"updated_at"` // UTC
}

// FeeLine is one billable item on a Fee.
type FeeLine struct {
	ID          string          `json:"id"`
	FeeID       string          `json:"-"`
	Description string          `json:"description"`
	UnitAmount  decimal.Decimal `json:"unit_amount"`
	Quantity    int             `json:"quantity"`
	Position    int             `json:"-"`
}

func (l FeeLine) Amount() decimal.Decimal {
	return l.UnitAmount.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Total is the sum of all line amounts minus the discount, floored at zero.
func (f *Fee) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range f.Lines {
		total = total.Add(l.Amount())
	}
	total = total.Sub(f.Discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func (f *Fee) Balance() decimal.Decimal {
	return f.Total().Sub(f.PaidAmount)
}

type QueryFilter struct {
	StudentID string `query:"student_id"`
	ClassID   string `query:"class_id"`
	// DueFrom/DueTo bound DueDate as [DueFrom, DueTo).
	DueFrom   time.Time `query:"due_from"`
	DueTo     time.Time `query:"due_to"`
	Published *bool     `query:"published"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.ClassID == "" && qf.DueFrom.IsZero() && qf.DueTo.IsZero() && qf.Published == nil
}

// GenerationResult summarizes one monthly generator run.
type GenerationResult struct {
	Period  time.Time `json:"period"`
	Created int       `json:"created"`
	Skipped int       `json:"skipped"` // fee already existed for the period
	Failed  int       `json:"failed"`
}

// PublishResult summarizes one daily publisher run.
type PublishResult struct {
	Published      int `json:"published"`
	NotifyFailures int `json:"notify_failures"`
}
