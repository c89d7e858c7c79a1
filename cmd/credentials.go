package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"trust-ledger/feature/booking"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	bookingClientID     string
	bookingClientSecret string
	paymentsAPIKey      string
	skipVerify          bool
	yesConfirm          bool
)

// credentialsCmd is the parent command for platform credentials.
var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage booking and payment platform credentials",
}

var setBookingCmd = &cobra.Command{
	Use:   "set-booking",
	Short: "Store booking platform OAuth client credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		creds := booking.Credentials{
			ClientID:     strings.TrimSpace(bookingClientID),
			ClientSecret: strings.TrimSpace(bookingClientSecret),
		}
		if err := a.booking.SaveCredentials(ctx, creds); err != nil {
			return fmt.Errorf("failed to save booking credentials: %w", err)
		}
		if !skipVerify {
			if err := a.booking.Authenticate(ctx); err != nil {
				return fmt.Errorf("booking credentials saved but rejected: %w", err)
			}
		}
		a.logger.Info("Booking credentials saved", zap.Bool("verified", !skipVerify))
		return nil
	},
}

var setPaymentsCmd = &cobra.Command{
	Use:   "set-payments",
	Short: "Store the payment platform API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.payments.SaveCredentials(ctx, paymentsAPIKey); err != nil {
			return fmt.Errorf("failed to save payment credentials: %w", err)
		}
		if !skipVerify {
			if err := a.payments.Authenticate(ctx); err != nil {
				return fmt.Errorf("payment credentials saved but rejected: %w", err)
			}
		}
		a.logger.Info("Payment credentials saved", zap.Bool("verified", !skipVerify))
		return nil
	},
}

var clearCredentialsCmd = &cobra.Command{
	Use:       "clear [booking|payments|all]",
	Short:     "Remove stored credentials",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"booking", "payments", "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "all"
		if len(args) == 1 {
			target = args[0]
		}

		ctx, cancel := signalContext()
		defer cancel()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if !confirmDestructiveAction(fmt.Sprintf("remove %s credentials", target)) {
			a.logger.Warn("Operation cancelled by user. No changes were made.")
			return nil
		}
		if target == "booking" || target == "all" {
			a.booking.ClearCredentials(ctx)
		}
		if target == "payments" || target == "all" {
			a.payments.ClearCredentials(ctx)
		}
		a.logger.Info("Credentials cleared", zap.String("target", target))
		return nil
	},
}

var checkCredentialsCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify stored credentials against both platforms",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()
		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		checks := []struct {
			name   string
			stored bool
			verify func() error
		}{
			{"booking", a.booking.HasCredentials(ctx), func() error { return a.booking.Authenticate(ctx) }},
			{"payments", a.payments.HasCredentials(ctx), func() error { return a.payments.Authenticate(ctx) }},
		}

		failed := 0
		for _, c := range checks {
			if !c.stored {
				a.logger.Warn("Credentials missing", zap.String("platform", c.name))
				failed++
				continue
			}
			if err := c.verify(); err != nil {
				a.logger.Error("Credentials rejected", zap.String("platform", c.name), zap.Error(err))
				failed++
				continue
			}
			a.logger.Info("Credentials valid", zap.String("platform", c.name))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d platforms are not ready", failed, len(checks))
		}
		return nil
	},
}

func init() {
	setBookingCmd.Flags().StringVar(&bookingClientID, "client-id", "", "OAuth client id")
	setBookingCmd.Flags().StringVar(&bookingClientSecret, "client-secret", "", "OAuth client secret")
	_ = setBookingCmd.MarkFlagRequired("client-id")
	_ = setBookingCmd.MarkFlagRequired("client-secret")
	setBookingCmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "Save without testing the credentials")

	setPaymentsCmd.Flags().StringVar(&paymentsAPIKey, "api-key", "", "Secret API key")
	_ = setPaymentsCmd.MarkFlagRequired("api-key")
	setPaymentsCmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "Save without testing the key")

	clearCredentialsCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm (non-interactive)")

	credentialsCmd.AddCommand(setBookingCmd, setPaymentsCmd, clearCredentialsCmd, checkCredentialsCmd)
	RootCmd.AddCommand(credentialsCmd)
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction(action string) bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Printf("\n⚠️  Type 'yes' to %s: ", action)
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	return strings.TrimSpace(response) == "yes"
}
