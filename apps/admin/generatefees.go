package main

import (
	"context"
	"fmt"
	"time"
)

// generateFees runs the monthly fee generation batch out of schedule. The
// batch is idempotent, so running it on top of a scheduled run is harmless.
func (cli *commandLine) generateFees() error {
	res, err := cli.billSvc.GenerateMonthly(context.Background(), time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("period %s: %d fee(s) created, %d skipped, %d failed\n",
		res.Period.Format("2006-01"), res.Created, res.Skipped, res.Failed)
	return nil
}
