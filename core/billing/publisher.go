package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/notification"
)

func (svc *service) PublishDue(ctx context.Context, now time.Time) (PublishResult, error) {
	var res PublishResult

	loc := svc.conf.BillingLocation()
	unpublished := false
	fees, err := svc.repo.QueryFees(ctx, &QueryFilter{
		DueFrom:   CurrentPeriod(now, loc),
		DueTo:     NextPeriod(now, loc),
		Published: &unpublished,
	}, nil)
	if err != nil {
		return res, errors.Wrap(err, "querying unpublished fees")
	}

	for _, fee := range fees {
		published, err := svc.repo.MarkFeePublished(ctx, fee.ID)
		if err != nil {
			svc.logger.Error("fee publish: marking fee "+fee.ID+" published", err)
			continue
		}
		if !published {
			// claimed by an overlapping run
			continue
		}
		res.Published++

		if err = svc.notifyParentPublished(ctx, fee); err != nil {
			// the flag is already set; the notification is not retried
			svc.logger.Error("fee publish: notifying parent for fee "+fee.ID, err)
			res.NotifyFailures++
		}
	}

	if res.Published > 0 {
		svc.notifyAdminsPublished(ctx, res)
	}
	return res, nil
}

func (svc *service) notifyParentPublished(ctx context.Context, fee Fee) error {
	rcp, err := svc.parentRecipient(ctx, fee.StudentID)
	if err != nil {
		return err
	}
	msg := notification.Message{
		Title: "New fee published",
		Body: fmt.Sprintf(
			"A fee of %s for %s is now payable.",
			fee.Total().StringFixed(2), fee.DueDate.Format("January 2006"),
		),
	}
	fanRes := svc.notifSvc.FanOut(ctx, msg, rcp)
	if !fanRes.AllDelivered() {
		return errors.New(fanRes.Failed[0].Error)
	}
	return nil
}

func (svc *service) notifyAdminsPublished(ctx context.Context, res PublishResult) {
	admins, err := svc.adminRecipients(ctx)
	if err != nil {
		svc.logger.Error("fee publish: resolving admin recipients", err)
		return
	}
	if len(admins) == 0 {
		return
	}
	msg := notification.Message{
		Title: "Fees published",
		Body:  fmt.Sprintf("%d fee(s) published today; %d parent notification(s) failed.", res.Published, res.NotifyFailures),
	}
	if fanRes := svc.notifSvc.FanOut(ctx, msg, admins...); !fanRes.AllDelivered() {
		svc.logger.Warn(fmt.Sprintf("fee publish: admin fan-out: %d of %d failed", len(fanRes.Failed), len(admins)))
	}
}
