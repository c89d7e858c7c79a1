package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var clearManualFee bool

// reservationsCmd groups per-reservation overrides.
var reservationsCmd = &cobra.Command{
	Use:   "reservations",
	Short: "Manage reservation overrides",
}

var setFeeCmd = &cobra.Command{
	Use:   "set-fee <external-id> [amount]",
	Short: "Override the management fee of one reservation",
	Long: `Sets a fixed management fee amount on a reservation, taking precedence over the
property, owner and default percentages. The owner payout is recomputed at once
and the override survives later syncs.

Examples:
  reservations set-fee HM123 150.00
  reservations set-fee HM123 --clear`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fee, err := manualFeeArg(args[1:], clearManualFee)
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

		r, err := a.store.SetManualFee(ctx, args[0], fee)
		if err != nil {
			return fmt.Errorf("failed to set fee: %w", err)
		}
		a.logger.Info("Management fee updated",
			zap.String("reservation", r.ExternalID),
			zap.Bool("override", fee.Valid),
			zap.Stringer("management_fee", r.ManagementFee),
			zap.Stringer("owner_payout", r.OwnerPayout),
		)
		return nil
	},
}

// manualFeeArg resolves the optional amount argument against --clear.
func manualFeeArg(args []string, clear bool) (decimal.NullDecimal, error) {
	switch {
	case clear && len(args) > 0:
		return decimal.NullDecimal{}, fmt.Errorf("pass either an amount or --clear, not both")
	case clear:
		return decimal.NullDecimal{}, nil
	case len(args) == 0:
		return decimal.NullDecimal{}, fmt.Errorf("an amount or --clear is required")
	}

	amount, err := parseMoneyFlag("amount", args[0])
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if amount == nil || amount.IsNegative() {
		return decimal.NullDecimal{}, fmt.Errorf("fee amount must be a non-negative number")
	}
	return decimal.NewNullDecimal(amount.Round(2)), nil
}

func init() {
	setFeeCmd.Flags().BoolVar(&clearManualFee, "clear", false, "Remove the override")

	reservationsCmd.AddCommand(setFeeCmd)
	RootCmd.AddCommand(reservationsCmd)
}
