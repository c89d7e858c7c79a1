package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	settingsReserve  string
	settingsFee      string
	settingsCurrency string
)

// settingsCmd groups ledger-wide settings.
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change ledger settings",
}

var setSettingsCmd = &cobra.Command{
	Use:   "set",
	Short: "Change ledger settings",
	Long: `Updates only the flags that are given.

Examples:
  settings set --maintenance-reserve 2500
  settings set --default-fee 20 --currency usd`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reserve, err := parseMoneyFlag("maintenance-reserve", settingsReserve)
		if err != nil {
			return err
		}
		fee, err := parseMoneyFlag("default-fee", settingsFee)
		if err != nil {
			return err
		}
		if reserve == nil && fee == nil && settingsCurrency == "" {
			return fmt.Errorf("nothing to change; pass --maintenance-reserve, --default-fee or --currency")
		}
		if reserve != nil && reserve.IsNegative() {
			return fmt.Errorf("--maintenance-reserve must not be negative")
		}
		if fee != nil && (fee.IsNegative() || fee.GreaterThan(hundredPercent)) {
			return fmt.Errorf("--default-fee must be between 0 and 100")
		}
		currency := strings.ToUpper(strings.TrimSpace(settingsCurrency))
		if settingsCurrency != "" && len(currency) != 3 {
			return fmt.Errorf("--currency must be a three letter ISO code")
		}

		ctx, cancel := signalContext()
		defer cancel()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.store.Settings(ctx)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		if reserve != nil {
			st.MaintenanceReserve = reserve.Round(2)
		}
		if fee != nil {
			st.DefaultManagementFeePercent = *fee
		}
		if currency != "" {
			st.Currency = currency
		}
		if err := a.store.SaveSettings(ctx, st); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		logSettings(a.logger, "Settings saved", st.MaintenanceReserve, st.DefaultManagementFeePercent, st.Currency)
		return nil
	},
}

var showSettingsCmd = &cobra.Command{
	Use:   "show",
	Short: "Show ledger settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.store.Settings(ctx)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		logSettings(a.logger, "Settings", st.MaintenanceReserve, st.DefaultManagementFeePercent, st.Currency)
		return nil
	},
}

func logSettings(l *zap.Logger, msg string, reserve, fee fmt.Stringer, currency string) {
	l.Info(msg,
		zap.Stringer("maintenance_reserve", reserve),
		zap.Stringer("default_fee_percent", fee),
		zap.String("currency", currency),
	)
}

func init() {
	setSettingsCmd.Flags().StringVar(&settingsReserve, "maintenance-reserve", "", "Amount held back for maintenance")
	setSettingsCmd.Flags().StringVar(&settingsFee, "default-fee", "", "Default management fee percentage")
	setSettingsCmd.Flags().StringVar(&settingsCurrency, "currency", "", "Ledger currency (ISO 4217)")

	settingsCmd.AddCommand(setSettingsCmd, showSettingsCmd)
	RootCmd.AddCommand(settingsCmd)
}
