package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/billing"
	"github.com/trezcool/darasa/core/class"
	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/student"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/core/voucher"
	"github.com/trezcool/darasa/scheduler"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

// The scheduler process runs the time-triggered batches: monthly fee
// generation, daily fee publication and the daily voucher sweep. It is
// deployed as a single replica; the batches themselves are safe to re-run.
func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "SCHED : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Fatal("Failed to close", err)
		}
	}()

	var mailSvc core.EmailService
	switch {
	case conf.Env == "PROD":
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	case conf.Debug:
		mailSvc = emailsvc.NewConsoleService(conf)
	default:
		mailSvc = emailsvc.NewOutboxService(sqlxrepos.NewMailOutboxRepository(db), logger)
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf, logger)
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db), mailSvc, logger)
	stdSvc := student.NewService(sqlxrepos.NewStudentRepository(db), logger)
	clsSvc := class.NewService(sqlxrepos.NewClassRepository(db), logger)
	vchSvc := voucher.NewService(sqlxrepos.NewVoucherRepository(db), logger)
	billSvc := billing.NewService(sqlxrepos.NewFeeRepository(db), stdSvc, clsSvc, usrSvc, notifSvc, conf, logger)

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Register and run Jobs

	logger.Info(fmt.Sprintf("Scheduler initializing : version %q", conf.Build))
	defer logger.Info("Scheduler stopped")

	sched := scheduler.New(conf.BillingLocation(), logger)
	sched.AddMonthly("fee-generation", conf.Billing.GenerationDay, conf.Billing.GenerationHour, func(ctx context.Context) error {
		res, err := billSvc.GenerateMonthly(ctx, time.Now())
		if err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("fee-generation: period=%s created=%d skipped=%d failed=%d",
			res.Period.Format("2006-01"), res.Created, res.Skipped, res.Failed))
		return nil
	})
	sched.AddDaily("fee-publish", conf.Billing.PublishHour, func(ctx context.Context) error {
		res, err := billSvc.PublishDue(ctx, time.Now())
		if err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("fee-publish: published=%d notify_failures=%d", res.Published, res.NotifyFailures))
		return nil
	})
	sched.AddDaily("voucher-sweep", conf.Billing.SweepHour, func(ctx context.Context) error {
		_, err := vchSvc.ExpireDue(ctx, time.Now())
		return err
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched.Start(ctx)
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	return db, db.Ping()
}
