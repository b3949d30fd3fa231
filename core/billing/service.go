package billing

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/student"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("fee not found")
)

type (
	Repository interface {
		// CreateFeeIfAbsent inserts the fee and its lines unless a fee for the
		// same (student, class, due date) already exists, in which case it
		// returns (false, nil). Existence check and insert are a single atomic
		// operation, so concurrent generator runs cannot create duplicates.
		CreateFeeIfAbsent(ctx context.Context, fee Fee, exec ...core.DBExecutor) (bool, error)
		// QueryFees applies AND operation on available QueryFilter fields.
		QueryFees(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Fee, error)
		GetFee(ctx context.Context, id string, exec ...core.DBExecutor) (Fee, error)
		// MarkFeePublished conditionally flips Published; it returns (false, nil)
		// when the fee was already published, so two overlapping publisher runs
		// cannot both claim the same fee.
		MarkFeePublished(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error)
		RecordFeePayment(ctx context.Context, fee Fee, exec ...core.DBExecutor) (Fee, error)
	}

	Service interface {
		// GenerateMonthly ensures one fee record exists per active enrollment
		// for the period following now. Per-enrollment failures are logged and
		// counted; the batch always runs to completion.
		GenerateMonthly(ctx context.Context, now time.Time) (GenerationResult, error)
		// PublishDue publishes every unpublished fee due in the current period
		// and notifies the student's parent, then summarizes to the admins.
		PublishDue(ctx context.Context, now time.Time) (PublishResult, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Fee, error)
		GetByID(ctx context.Context, id string) (Fee, error)
		RecordPayment(ctx context.Context, id string, amount decimal.Decimal, paidAt time.Time) (Fee, error)
	}

	service struct {
		repo       Repository
		studentSvc student.Service
		classSvc   class.Service
		userSvc    user.Service
		notifSvc   notification.Service
		conf       *core.Config
		logger     core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	studentSvc student.Service,
	classSvc class.Service,
	userSvc user.Service,
	notifSvc notification.Service,
	conf *core.Config,
	logger core.Logger,
) Service {
	return &service{
		repo:       repo,
		studentSvc: studentSvc,
		classSvc:   classSvc,
		userSvc:    userSvc,
		notifSvc:   notifSvc,
		conf:       conf,
		logger:     logger,
	}
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Fee, error) {
	return svc.repo.QueryFees(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Fee, error) {
	return svc.repo.GetFee(ctx, id)
}

func (svc *service) RecordPayment(ctx context.Context, id string, amount decimal.Decimal, paidAt time.Time) (Fee, error) {
	fee, err := svc.repo.GetFee(ctx, id)
	if err != nil {
		return Fee{}, errors.Wrap(err, "finding fee by ID")
	}
	if amount.IsNegative() {
		return Fee{}, core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "amount cannot be negative"})
	}
	fee.PaidAmount = fee.PaidAmount.Add(amount)
	fee.PaymentDate = null.TimeFrom(paidAt.UTC())
	fee.PaymentStatus = fee.PaidAmount.GreaterThanOrEqual(fee.Total())
	fee.UpdatedAt = time.Now().UTC()
	return svc.repo.RecordFeePayment(ctx, fee)
}

// adminRecipients resolves every active admin user into a fan-out recipient.
func (svc *service) adminRecipients(ctx context.Context) ([]notification.Recipient, error) {
	active := true
	admins, err := svc.userSvc.Query(ctx, &user.QueryFilter{Roles: user.AdminRoles, IsActive: &active}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying admin users")
	}
	recipients := make([]notification.Recipient, 0, len(admins))
	for _, adm := range admins {
		recipients = append(recipients, notification.Recipient{UserID: adm.ID, Name: adm.Name, Email: adm.Email})
	}
	return recipients, nil
}

// parentRecipient resolves a student's parent into a fan-out recipient.
func (svc *service) parentRecipient(ctx context.Context, studentID string) (notification.Recipient, error) {
	std, err := svc.studentSvc.GetByID(ctx, studentID)
	if err != nil {
		return notification.Recipient{}, errors.Wrap(err, "finding student by ID")
	}
	parent, err := svc.userSvc.GetByID(ctx, std.ParentID)
	if err != nil {
		return notification.Recipient{}, errors.Wrap(err, "finding parent by ID")
	}
	return notification.Recipient{UserID: parent.ID, Name: parent.Name, Email: parent.Email}, nil
}
