package cmd

import (
	"fmt"

	"trust-ledger/feature/trust"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reconcileBankBalance string
	reconcileHoldback    string
	reconcileSave        bool
	reconcileNotes       string
)

// reconcileCmd compares the bank balance with what the ledger says should be held.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile the trust account against the ledger",
	Long: `Calculates the expected trust balance from synced reservations and compares it with
the bank balance. The processor holdback is read from the payment platform unless
--holdback is given.

Examples:
  # Report only
  reconcile --bank-balance 48210.55

  # Record an immutable snapshot
  reconcile --bank-balance 48210.55 --holdback 1250 --save --notes "June close"`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileBankBalance, "bank-balance", "", "Trust account balance from the bank statement")
	reconcileCmd.Flags().StringVar(&reconcileHoldback, "holdback", "", "Processor holdback; read from the payment platform when omitted")
	reconcileCmd.Flags().BoolVar(&reconcileSave, "save", false, "Save the result as a reconciliation snapshot")
	reconcileCmd.Flags().StringVar(&reconcileNotes, "notes", "", "Notes stored with the snapshot")
	_ = reconcileCmd.MarkFlagRequired("bank-balance")
	RootCmd.AddCommand(reconcileCmd)
}

// parseMoneyFlag parses a decimal flag value; an empty optional value yields nil.
func parseMoneyFlag(name, value string) (*decimal.Decimal, error) {
	if value == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %q is not a decimal amount", name, value)
	}
	return &d, nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	bank, err := parseMoneyFlag("bank-balance", reconcileBankBalance)
	if err != nil {
		return err
	}
	if bank == nil {
		return fmt.Errorf("--bank-balance is required")
	}
	holdback, err := parseMoneyFlag("holdback", reconcileHoldback)
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

	req := trust.Request{BankBalance: *bank, StripeHoldback: holdback, Notes: reconcileNotes}

	if !reconcileSave {
		res, err := a.trust.Calculate(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to calculate: %w", err)
		}
		printTrustReport(a.logger, res)
		a.logger.Info("Report only. Use --save to record a snapshot.")
		return nil
	}

	snap, res, err := a.trust.SaveReconciliation(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to save reconciliation: %w", err)
	}
	printTrustReport(a.logger, res)
	a.logger.Info("Snapshot saved", zap.String("id", snap.ID), zap.String("archive_key", snap.ArchiveKey))
	return nil
}

// printTrustReport prints a reconciliation result using logger.
func printTrustReport(l *zap.Logger, res *trust.Result) {
	l.Info("Trust balance",
		zap.Stringer("future_deposits", res.FutureDeposits),
		zap.Stringer("stripe_holdback", res.StripeHoldback),
		zap.Stringer("unpaid_owner_payouts", res.UnpaidOwnerPayouts),
		zap.Stringer("unpaid_taxes", res.UnpaidTaxes),
		zap.Stringer("maintenance_reserves", res.MaintenanceReserves),
		zap.Stringer("expected", res.ExpectedBalance),
		zap.Stringer("actual", res.ActualBalance),
		zap.Stringer("variance", res.Variance),
		zap.Bool("balanced", res.IsBalanced),
	)

	l.Info("Owner reconciliation",
		zap.Stringer("owner_variance", res.OwnerReconciliationVariance),
		zap.Bool("three_way_balanced", res.IsThreeWayBalanced),
		zap.Int("owners_due", len(res.OwnerPayoutBreakdown)),
	)
	for _, g := range res.OwnerPayoutBreakdown {
		l.Info("Owner payout due",
			zap.String("owner", g.OwnerName),
			zap.Stringer("total", g.Total),
			zap.Int("reservations", len(g.Reservations)),
		)
	}
	for _, g := range res.TaxBreakdown {
		l.Info("Tax due",
			zap.String("jurisdiction", g.Name),
			zap.Stringer("total", g.Total),
			zap.Int("reservations", len(g.Reservations)),
		)
	}

	if len(res.Excluded) > 0 {
		maxShow := min(5, len(res.Excluded))
		l.Warn("Reservations excluded for invalid stay dates", zap.Int("count", len(res.Excluded)))
		for _, r := range res.Excluded[:maxShow] {
			l.Warn("Excluded reservation", zap.String("external_id", r.ExternalID), zap.String("guest", r.GuestName))
		}
		if len(res.Excluded) > maxShow {
			l.Warn("Additional exclusions not shown", zap.Int("count", len(res.Excluded)-maxShow))
		}
	}

	for _, h := range res.Diagnosis {
		l.Info("Possible cause", zap.String("category", string(h.Category)), zap.String("hint", h.Message))
	}
}
