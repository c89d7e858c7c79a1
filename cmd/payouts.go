package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var payoutsSince string

// payoutsCmd lists processor payouts to the bank.
var payoutsCmd = &cobra.Command{
	Use:   "payouts",
	Short: "List payment processor payouts",
	Long: `Lists payouts from the payment platform to the trust account, newest first.

Examples:
  payouts --since 2024-06-01`,
	RunE: runPayouts,
}

func init() {
	payoutsCmd.Flags().StringVar(&payoutsSince, "since", "", "Only payouts created on or after this date (YYYY-MM-DD)")
	RootCmd.AddCommand(payoutsCmd)
}

func runPayouts(cmd *cobra.Command, args []string) error {
	since, err := parseDateFlag("since", payoutsSince)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	payouts, err := a.trust.Payouts(ctx, since)
	if err != nil {
		return fmt.Errorf("failed to list payouts: %w", err)
	}

	for _, p := range payouts {
		fields := []zap.Field{
			zap.String("id", p.ID),
			zap.Stringer("amount", p.Amount),
			zap.String("currency", p.Currency),
			zap.String("status", p.Status),
		}
		if p.ArrivalDate != nil {
			fields = append(fields, zap.Time("arrival", *p.ArrivalDate))
		}
		a.logger.Info("Payout", fields...)
	}
	a.logger.Info("Payouts listed", zap.Int("count", len(payouts)))
	return nil
}
