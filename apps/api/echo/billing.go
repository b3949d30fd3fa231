package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/darasa/core/billing"
	"github.com/trezcool/darasa/core/student"
	"github.com/trezcool/darasa/core/user"
)

type billingApi struct {
	svc        billing.Service
	studentSvc student.Service
	userSvc    user.Service
	validate   *validator.Validate
}

func registerBillingAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := billingApi{
		svc:        opts.BillingSvc,
		studentSvc: opts.StudentSvc,
		userSvc:    opts.UserSvc,
		validate:   opts.Validate,
	}

	fg := g.Group("/fees", jwt)
	fg.GET("", api.query)
	fg.POST("/generate", api.generate, adminMiddleware())
	fg.POST("/publish", api.publish, adminMiddleware())

	dg := fg.Group("/:id", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.POST("/payments", api.recordPayment, adminMiddleware())
}

// Handlers

func (api *billingApi) query(ctx echo.Context) error {
	filter := new(billing.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []billing.Fee{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() {
		// parents must scope the query to one of their own children;
		// unpublished fees stay invisible to them
		if filter.StudentID == "" {
			return errHttpForbidden
		}
		if ok, err := api.ownsStudent(ctx, ctxUsr, filter.StudentID); err != nil {
			return err
		} else if !ok {
			return errHttpForbidden
		}
		published := true
		filter.Published = &published
	}

	fees, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying fees")
	}
	if fees == nil {
		fees = []billing.Fee{}
	}
	return ctx.JSON(http.StatusOK, fees)
}

func (api *billingApi) retrieve(ctx echo.Context) error {
	fee, ok := ctx.Get("object").(billing.Fee)
	if !ok {
		return errors.New("fee object not found in echo.Context")
	}
	return ctx.JSON(http.StatusOK, FeeResponse{Fee: fee, Total: fee.Total(), Balance: fee.Balance()})
}

func (api *billingApi) recordPayment(ctx echo.Context) error {
	fee, ok := ctx.Get("object").(billing.Fee)
	if !ok {
		return errors.New("fee object not found in echo.Context")
	}

	var data PaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}
	paidAt := data.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	fee, err := api.svc.RecordPayment(ctx.Request().Context(), fee.ID, data.Amount, paidAt)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusOK, FeeResponse{Fee: fee, Total: fee.Total(), Balance: fee.Balance()})
}

// generate triggers the monthly fee generation batch out of schedule.
func (api *billingApi) generate(ctx echo.Context) error {
	res, err := api.svc.GenerateMonthly(ctx.Request().Context(), time.Now())
	if err != nil {
		return errors.Wrap(err, "generating fees")
	}
	return ctx.JSON(http.StatusOK, res)
}

// publish triggers the daily fee publication batch out of schedule.
func (api *billingApi) publish(ctx echo.Context) error {
	res, err := api.svc.PublishDue(ctx.Request().Context(), time.Now())
	if err != nil {
		return errors.Wrap(err, "publishing fees")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *billingApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		ctxUsr, err := getContextUser(ctx, api.userSvc)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}

		fee, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if errors.Cause(err) == billing.ErrNotFound {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding fee by ID")
		}
		if !ctxUsr.IsAdmin() {
			if !fee.Published {
				return errHttpNotFound
			}
			if ok, err := api.ownsStudent(ctx, ctxUsr, fee.StudentID); err != nil {
				return err
			} else if !ok {
				return errHttpNotFound
			}
		}
		ctx.Set("object", fee)
		return next(ctx)
	}
}

func (api *billingApi) ownsStudent(ctx echo.Context, ctxUsr user.User, studentID string) (bool, error) {
	std, err := api.studentSvc.GetByID(ctx.Request().Context(), studentID)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "finding student by ID")
	}
	return std.ParentID == ctxUsr.ID, nil
}

type (
	PaymentRequest struct {
		Amount decimal.Decimal `json:"amount" validate:"required"`
		PaidAt time.Time       `json:"paid_at"`
	}

	FeeResponse struct {
		billing.Fee
		Total   decimal.Decimal `json:"total"`
		Balance decimal.Decimal `json:"balance"`
	}
)
