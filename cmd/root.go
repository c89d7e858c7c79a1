package cmd

import (
	"errors"
	"fmt"
	"os"

	"trust-ledger/core/logger"
	"trust-ledger/core/retry"
	"trust-ledger/core/runguard"
	"trust-ledger/feature/booking"
	"trust-ledger/feature/payments"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Exit codes follow sysexits(3).
const (
	exitFailure     = 1
	exitUnavailable = 69
	exitTempFail    = 75
	exitConfig      = 78
)

var configDir string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "trust-ledger",
	Short: "Trust account reconciliation for short-term rentals",
	Long: `Trust Ledger syncs reservations from the booking platform, tracks what is owed to
owners and tax authorities, and reconciles the trust account against the bank.

Configuration comes from environment variables, optionally seeded from a .env
file in --config-dir.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "Directory holding the .env file")
}

// exitCode maps a command error to a process exit status.
func exitCode(err error) int {
	var exhausted *retry.ExhaustedError
	switch {
	case errors.Is(err, runguard.ErrBusy):
		return exitTempFail
	case errors.Is(err, booking.ErrMissingCredentials), errors.Is(err, payments.ErrMissingCredentials):
		return exitConfig
	case errors.As(err, &exhausted):
		return exitUnavailable
	default:
		return exitFailure
	}
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		l, logErr := logger.New(&logger.Config{Level: "debug", Format: "console"})
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}
