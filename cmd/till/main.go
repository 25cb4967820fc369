package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/till/internal/cli"
	"github.com/Veraticus/till/internal/common"
	"github.com/Veraticus/till/internal/config"
	"github.com/Veraticus/till/internal/model"
)

var version = "dev"

func main() {
	interrupts := cli.NewInterruptHandler(os.Stderr)
	ctx, cancel := interrupts.HandleInterrupts(context.Background())

	err := newRootCmd(&env{v: viper.GetViper(), interrupts: interrupts}).ExecuteContext(ctx)
	cancel()

	code := exitCode(err, interrupts.WasInterrupted())
	if err != nil && code != exitInterrupted {
		var userErr *common.UserError
		if !errors.As(err, &userErr) {
			common.LogError(err, "Command failed", nil)
		} else {
			slog.Debug("Command failed", "error", err)
		}
		fmt.Fprintln(os.Stderr, cli.FormatError(common.UserMessage(err)))
	}
	os.Exit(code)
}

// Exit statuses.
const (
	exitOK          = 0
	exitFailure     = 1
	exitInterrupted = 130
)

// exitCode picks the process status. An interrupted run exits 130 like a
// shell would; the handler has already told the user what happened.
func exitCode(err error, interrupted bool) int {
	switch {
	case interrupted:
		return exitInterrupted
	case err != nil:
		return exitFailure
	default:
		return exitOK
	}
}

// env is shared by every command of one invocation.
type env struct {
	v          *viper.Viper
	interrupts *cli.InterruptHandler
	cfgFile    string
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "till",
		Short: "🧾 Record sales and expenses against your bookkeeping server",
		Long: `till records sales, expenses and receipts for a small business.

Log in once with a QR login code (till qr) or your email and password
(till login); every other command reuses the stored session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return initConfig(e)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&e.cfgFile, "config", "", "config file (default: $HOME/.config/till/config.yaml)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.String("base-url", "", "backend base URL (default: "+config.DefaultBaseURL+")")
	flags.String("session-backend", "", "where the session is stored (file, sqlite)")
	flags.String("session-path", "", "session file or database path")

	_ = e.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = e.v.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = e.v.BindPFlag("api.base_url", flags.Lookup("base-url"))
	_ = e.v.BindPFlag("session.backend", flags.Lookup("session-backend"))
	_ = e.v.BindPFlag("session.path", flags.Lookup("session-path"))

	root.AddCommand(qrCmd(e))
	root.AddCommand(loginCmd(e))
	root.AddCommand(logoutCmd(e))
	root.AddCommand(whoamiCmd(e))
	root.AddCommand(transactionCmd(e, model.KindSale))
	root.AddCommand(transactionCmd(e, model.KindExpense))
	root.AddCommand(categoriesCmd(e))
	root.AddCommand(receiptCmd(e))
	root.AddCommand(statementCmd(e))
	root.AddCommand(versionCmd())

	return root
}

func initConfig(e *env) error {
	if e.cfgFile != "" {
		e.v.SetConfigFile(e.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		e.v.AddConfigPath(fmt.Sprintf("%s/.config/till", home))
		e.v.AddConfigPath(".")
		e.v.SetConfigName("config")
		e.v.SetConfigType("yaml")
	}

	// TILL_API_BASE_URL, TILL_SESSION_BACKEND, ...
	e.v.SetEnvPrefix("TILL")
	e.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	e.v.AutomaticEnv()

	if err := e.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	level, err := common.ParseLevel(e.v.GetString("logging.level"))
	if err != nil {
		return err
	}
	if err := common.SetupLogger(level, e.v.GetString("logging.format")); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "till %s\n", version)
		},
	}
}
