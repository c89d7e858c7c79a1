package cmd

import (
	"fmt"
	"strings"
	"time"

	"trust-ledger/feature/ledger/models"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var hundredPercent = decimal.NewFromInt(100)

var (
	ownerName    string
	ownerEmail   string
	ownerPhone   string
	ownerFee     string
	ownerThrough string
)

// ownersCmd groups owner management.
var ownersCmd = &cobra.Command{
	Use:   "owners",
	Short: "Manage property owners and their payouts",
}

var addOwnerCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an owner",
	Long: `Creates an owner. --fee overrides the default management fee percentage
for every property the owner holds unless the property sets its own.

Examples:
  owners add --name "Alice Smith" --email alice@example.com --fee 18`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(ownerName)
		if name == "" {
			return fmt.Errorf("--name must not be blank")
		}
		fee, err := parseMoneyFlag("fee", ownerFee)
		if err != nil {
			return err
		}
		if fee != nil && (fee.IsNegative() || fee.GreaterThan(hundredPercent)) {
			return fmt.Errorf("--fee must be between 0 and 100")
		}

		ctx, cancel := signalContext()
		defer cancel()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		o := &models.Owner{Name: name, Email: ownerEmail, Phone: ownerPhone}
		if fee != nil {
			o.ManagementFeePercent = decimal.NewNullDecimal(*fee)
		}
		if err := a.store.SaveOwner(ctx, o); err != nil {
			return fmt.Errorf("failed to save owner: %w", err)
		}
		a.logger.Info("Owner created", zap.String("id", o.ID), zap.String("name", o.Name))
		return nil
	},
}

var assignOwnerCmd = &cobra.Command{
	Use:   "assign <property> <owner-id>",
	Short: "Assign a property to an owner",
	Long: `Links a property, given by local id or booking platform id, to an owner.
Payouts of its reservations are then owed to that owner.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.AssignOwner(ctx, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to assign owner: %w", err)
		}
		a.logger.Info("Owner assigned", zap.String("property", args[0]), zap.String("owner", args[1]))
		return nil
	},
}

var paidOwnerCmd = &cobra.Command{
	Use:   "paid <owner-id>",
	Short: "Record a payout to an owner",
	Long: `Marks the owner's completed reservations checked out by --through as paid out
and moves the owner's payout watermark. Defaults to now.

Examples:
  owners paid 5d0c... --through 2024-06-30`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		through, err := throughFlag(ownerThrough)
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

		n, err := a.store.MarkOwnerPaidOut(ctx, args[0], through)
		if err != nil {
			return fmt.Errorf("failed to record payout: %w", err)
		}
		a.logger.Info("Owner payout recorded",
			zap.String("owner", args[0]),
			zap.Time("through", through),
			zap.Int64("reservations", n),
		)
		return nil
	},
}

var listOwnersCmd = &cobra.Command{
	Use:   "list",
	Short: "List owners",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		owners, err := a.store.ListOwners(ctx)
		if err != nil {
			return fmt.Errorf("failed to list owners: %w", err)
		}
		for _, o := range owners {
			fields := []zap.Field{zap.String("id", o.ID), zap.String("name", o.Name)}
			if o.ManagementFeePercent.Valid {
				fields = append(fields, zap.Stringer("fee_percent", o.ManagementFeePercent.Decimal))
			}
			if o.LastPayoutAt != nil {
				fields = append(fields, zap.Time("last_payout", *o.LastPayoutAt))
			}
			a.logger.Info("Owner", fields...)
		}
		a.logger.Info("Owners listed", zap.Int("count", len(owners)))
		return nil
	},
}

// throughFlag parses an optional --through date, defaulting to now.
// A bare date covers that whole day.
func throughFlag(value string) (time.Time, error) {
	t, err := parseDateFlag("through", value)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Now().UTC(), nil
	}
	if _, err := time.Parse(time.DateOnly, value); err == nil {
		return t.Add(24*time.Hour - time.Second), nil
	}
	return *t, nil
}

func init() {
	addOwnerCmd.Flags().StringVar(&ownerName, "name", "", "Owner name")
	addOwnerCmd.Flags().StringVar(&ownerEmail, "email", "", "Contact email")
	addOwnerCmd.Flags().StringVar(&ownerPhone, "phone", "", "Contact phone")
	addOwnerCmd.Flags().StringVar(&ownerFee, "fee", "", "Management fee percentage (0-100)")
	_ = addOwnerCmd.MarkFlagRequired("name")

	paidOwnerCmd.Flags().StringVar(&ownerThrough, "through", "", "Last check-out date covered by the payout (YYYY-MM-DD)")

	ownersCmd.AddCommand(addOwnerCmd, assignOwnerCmd, paidOwnerCmd, listOwnersCmd)
	RootCmd.AddCommand(ownersCmd)
}
