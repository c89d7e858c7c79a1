package cmd

import (
	"fmt"
	"strings"

	"trust-ledger/feature/ledger/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	taxName       string
	taxType       string
	taxRate       string
	taxUnit       string
	taxProperties []string
	taxThrough    string
)

// taxesCmd groups tax jurisdiction management.
var taxesCmd = &cobra.Command{
	Use:   "taxes",
	Short: "Manage tax jurisdictions and remittances",
}

var addTaxCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a tax jurisdiction",
	Long: `Creates a tax jurisdiction and links it to properties. Rates are stored as
fractions; pass --unit percent to enter 6.5 instead of 0.065.

Examples:
  taxes add --name "City of Austin" --type occupancy --rate 9 --unit percent --properties L1,L2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(taxName)
		if name == "" {
			return fmt.Errorf("--name must not be blank")
		}
		kind, err := parseTaxType(taxType)
		if err != nil {
			return err
		}
		raw, err := parseMoneyFlag("rate", taxRate)
		if err != nil {
			return err
		}
		if raw == nil || raw.IsNegative() {
			return fmt.Errorf("--rate must be a non-negative number")
		}

		var rate = *raw
		switch taxUnit {
		case string(models.RateUnitPercent):
			rate = models.RateFromPercent(rate)
		case string(models.RateUnitFraction):
			rate = models.RateFromFraction(rate)
		default:
			return fmt.Errorf("--unit must be percent or fraction, got %q", taxUnit)
		}

		ctx, cancel := signalContext()
		defer cancel()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		j := &models.TaxJurisdiction{
			Name:     name,
			TaxType:  kind,
			Rate:     rate,
			RateUnit: models.RateUnitFraction,
		}
		if err := a.store.SaveTaxJurisdiction(ctx, j, taxProperties); err != nil {
			return fmt.Errorf("failed to save jurisdiction: %w", err)
		}
		a.logger.Info("Tax jurisdiction created",
			zap.String("id", j.ID),
			zap.String("name", j.Name),
			zap.Stringer("rate", j.Rate),
			zap.Int("properties", len(taxProperties)),
		)
		return nil
	},
}

var remittedTaxCmd = &cobra.Command{
	Use:   "remitted",
	Short: "Record a tax remittance",
	Long: `Marks taxes of completed reservations checked out by --through as remitted.
Defaults to now.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		through, err := throughFlag(taxThrough)
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

		n, err := a.store.MarkTaxRemitted(ctx, through)
		if err != nil {
			return fmt.Errorf("failed to record remittance: %w", err)
		}
		a.logger.Info("Tax remittance recorded", zap.Time("through", through), zap.Int64("reservations", n))
		return nil
	},
}

var migrateTaxCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Convert jurisdictions stored as percentages to fractions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.store.MigrateTaxRates(ctx)
		if err != nil {
			return fmt.Errorf("failed to migrate tax rates: %w", err)
		}
		a.logger.Info("Tax rates migrated", zap.Int("jurisdictions", n))
		return nil
	},
}

func parseTaxType(value string) (models.TaxType, error) {
	switch t := models.TaxType(strings.ToLower(strings.TrimSpace(value))); t {
	case models.TaxOccupancy, models.TaxTourism, models.TaxSales, models.TaxOther:
		return t, nil
	default:
		return "", fmt.Errorf("--type must be occupancy, tourism, sales or other, got %q", value)
	}
}

func init() {
	addTaxCmd.Flags().StringVar(&taxName, "name", "", "Jurisdiction name")
	addTaxCmd.Flags().StringVar(&taxType, "type", string(models.TaxOccupancy), "occupancy, tourism, sales or other")
	addTaxCmd.Flags().StringVar(&taxRate, "rate", "", "Tax rate")
	addTaxCmd.Flags().StringVar(&taxUnit, "unit", string(models.RateUnitFraction), "Unit of --rate: fraction or percent")
	addTaxCmd.Flags().StringSliceVar(&taxProperties, "properties", nil, "Property ids or booking platform ids")
	_ = addTaxCmd.MarkFlagRequired("name")
	_ = addTaxCmd.MarkFlagRequired("rate")

	remittedTaxCmd.Flags().StringVar(&taxThrough, "through", "", "Last check-out date covered by the remittance (YYYY-MM-DD)")

	taxesCmd.AddCommand(addTaxCmd, remittedTaxCmd, migrateTaxCmd)
	RootCmd.AddCommand(taxesCmd)
}
