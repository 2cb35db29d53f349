package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "carectl",
		Short: "Sign in to HuiGrowth from the terminal",
		Long: `carectl keeps a HuiGrowth session on this machine.

The session is stored under the key CAREAUTH_STORAGE_KEY in the backend
selected by CAREAUTH_STORE (sqlite, redis or memory) and reused by every
later command until logout or until the server rejects it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.AddCommand(
		loginCmd(),
		registerCmd(),
		logoutCmd(),
		whoamiCmd(),
		refreshCmd(),
		profileCmd(),
		passwdCmd(),
		availableCmd(),
		metricsCmd(),
		keepaliveCmd(),
		versionCmd(),
	)

	return root
}

// run opens the app for one command and closes it afterwards.
func run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Warn("carectl: close failed", "err", err)
		}
	}()

	return fn(cmd.Context(), a)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
