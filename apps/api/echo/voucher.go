package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/voucher"
)

type voucherApi struct {
	svc      voucher.Service
	validate *validator.Validate
}

func registerVoucherAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := voucherApi{
		svc:      opts.VoucherSvc,
		validate: opts.Validate,
	}

	vg := g.Group("/vouchers", jwt, adminMiddleware())
	vg.POST("", api.create)
	vg.GET("", api.query)
	vg.GET("/:id", api.retrieve)
}

// Handlers

func (api *voucherApi) create(ctx echo.Context) error {
	var data voucher.NewVoucher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewVoucher")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	v, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating voucher")
	}
	return ctx.JSON(http.StatusCreated, v)
}

func (api *voucherApi) query(ctx echo.Context) error {
	filter := new(voucher.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []voucher.Voucher{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	vouchers, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying vouchers")
	}
	if vouchers == nil {
		vouchers = []voucher.Voucher{}
	}
	return ctx.JSON(http.StatusOK, vouchers)
}

func (api *voucherApi) retrieve(ctx echo.Context) error {
	v, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == voucher.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding voucher by ID")
	}
	return ctx.JSON(http.StatusOK, v)
}
