package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/notification"
)

// NextPeriod returns the first-of-month marker for the month following now,
// at midnight in loc. Fees generated on Jan 25 are due Feb 1.
func NextPeriod(now time.Time, loc *time.Location) time.Time {
	now = now.In(loc)
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, loc)
}

// CurrentPeriod returns the first-of-month marker for the month containing now,
// at midnight in loc.
func CurrentPeriod(now time.Time, loc *time.Location) time.Time {
	now = now.In(loc)
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
}

func (svc *service) GenerateMonthly(ctx context.Context, now time.Time) (GenerationResult, error) {
	period := NextPeriod(now, svc.conf.BillingLocation())
	res := GenerationResult{Period: period}

	enrollments, err := svc.studentSvc.Enrollments(ctx)
	if err != nil {
		return res, errors.Wrap(err, "querying enrollments")
	}

	// classes repeat across enrollments; fetch each once
	classes := make(map[string]class.Class)

	for _, enr := range enrollments {
		cls, ok := classes[enr.ClassID]
		if !ok {
			cls, err = svc.classSvc.GetByID(ctx, enr.ClassID)
			if err != nil {
				// a dangling enrollment produces no fee at all: a fee with no
				// line items would bill the parent nothing and confuse everyone
				svc.logger.Error("fee generation: finding class "+enr.ClassID+" for student "+enr.StudentID, err)
				res.Failed++
				continue
			}
			classes[enr.ClassID] = cls
		}

		created, err := svc.repo.CreateFeeIfAbsent(ctx, newFee(enr.StudentID, cls, period))
		if err != nil {
			svc.logger.Error("fee generation: creating fee for student "+enr.StudentID+", class "+enr.ClassID, err)
			res.Failed++
			continue
		}
		if created {
			res.Created++
		} else {
			res.Skipped++
		}
	}

	svc.notifyAdminsGenerated(ctx, res)
	return res, nil
}

func newFee(studentID string, cls class.Class, period time.Time) Fee {
	now := time.Now().UTC()
	return Fee{
		StudentID:  studentID,
		ClassID:    cls.ID,
		DueDate:    period,
		PaidAmount: decimal.Zero,
		Discount:   decimal.Zero,
		Lines: []FeeLine{
			{
				Description: "Fee for " + cls.CourseName,
				UnitAmount:  cls.Fee,
				Quantity:    1,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// notifyAdminsGenerated announces the run to the admins. Failure here never
// rolls back fee creation.
func (svc *service) notifyAdminsGenerated(ctx context.Context, res GenerationResult) {
	admins, err := svc.adminRecipients(ctx)
	if err != nil {
		svc.logger.Error("fee generation: resolving admin recipients", err)
		return
	}
	if len(admins) == 0 {
		return
	}
	msg := notification.Message{
		Title: "Monthly fees generated",
		Body: fmt.Sprintf(
			"Fee generation for %s completed: %d created, %d already existed, %d failed.",
			res.Period.Format("January 2006"), res.Created, res.Skipped, res.Failed,
		),
	}
	if fanRes := svc.notifSvc.FanOut(ctx, msg, admins...); !fanRes.AllDelivered() {
		svc.logger.Warn(fmt.Sprintf("fee generation: admin fan-out: %d of %d failed", len(fanRes.Failed), len(admins)))
	}
}
