package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/huigrowth/careauth"
	promexport "github.com/huigrowth/careauth/metrics/export/prometheus"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in, run carectl login first")

func loginCmd() *cobra.Command {
	var (
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login <email-or-username>",
		Short: "Sign in and store the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password, passwordStdin)
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, a *app) error {
				if err := a.store.Login(ctx, args[0], pw); err != nil {
					return err
				}
				return printUser(a.out, a.store.User())
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	return cmd
}

func registerCmd() *cobra.Command {
	var (
		in            careauth.RegisterInput
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, in.Password, passwordStdin)
			if err != nil {
				return err
			}
			in.Password = pw
			return run(cmd, func(ctx context.Context, a *app) error {
				if err := a.store.Register(ctx, in); err != nil {
					return err
				}
				return printUser(a.out, a.store.User())
			})
		},
	}

	cmd.Flags().StringVarP(&in.Username, "username", "u", "", "Username (required)")
	cmd.Flags().StringVarP(&in.Password, "password", "p", "", "Password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&in.Nickname, "nickname", "", "Display name")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				a.store.Logout()
				fmt.Fprintln(a.out, "logged out")
				return nil
			})
		},
	}
}

func whoamiCmd() *cobra.Command {
	var tokenOnly bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				if !a.store.IsAuthenticated() {
					return errNotLoggedIn
				}
				if tokenOnly {
					fmt.Fprintln(a.out, a.store.Token())
					return nil
				}
				if err := printUser(a.out, a.store.User()); err != nil {
					return err
				}
				if exp, ok := a.store.TokenExpiry(); ok {
					fmt.Fprintf(a.out, "token expires %s\n", exp.Local().Format(time.RFC1123))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&tokenOnly, "token", false, "Print only the bearer token")

	return cmd
}

func refreshCmd() *cobra.Command {
	var ifExpiring time.Duration

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored token for a fresh one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				if !a.store.IsAuthenticated() {
					return errNotLoggedIn
				}
				if ifExpiring <= 0 {
					if err := a.store.Refresh(ctx); err != nil {
						return err
					}
					fmt.Fprintln(a.out, "token refreshed")
					return nil
				}

				did, err := a.store.RefreshIfExpiring(ctx, ifExpiring)
				if err != nil {
					return err
				}
				if did {
					fmt.Fprintln(a.out, "token refreshed")
				} else {
					fmt.Fprintln(a.out, "token still valid")
				}
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&ifExpiring, "if-expiring", 0, "Refresh only when the token expires within this window")

	return cmd
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "View or change the account profile",
	}
	cmd.AddCommand(profileSetCmd(), profileReloadCmd())
	return cmd
}

func profileSetCmd() *cobra.Command {
	var nickname, email, phone, city, avatar string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update profile fields on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch careauth.UserPatch
			flags := cmd.Flags()
			if flags.Changed("nickname") {
				patch.Nickname = careauth.String(nickname)
			}
			if flags.Changed("email") {
				patch.Email = careauth.String(email)
			}
			if flags.Changed("phone") {
				patch.Phone = careauth.String(phone)
			}
			if flags.Changed("city") {
				patch.City = careauth.String(city)
			}
			if flags.Changed("avatar") {
				patch.Avatar = careauth.String(avatar)
			}
			if patch.Empty() {
				return errors.New("nothing to update, pass at least one field flag")
			}

			return run(cmd, func(ctx context.Context, a *app) error {
				if !a.store.IsAuthenticated() {
					return errNotLoggedIn
				}
				if err := a.store.SaveProfile(ctx, patch); err != nil {
					return err
				}
				return printUser(a.out, a.store.User())
			})
		},
	}

	cmd.Flags().StringVar(&nickname, "nickname", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&city, "city", "", "City")
	cmd.Flags().StringVar(&avatar, "avatar", "", "Avatar URL")

	return cmd
}

func profileReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Fetch the profile from the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				if !a.store.IsAuthenticated() {
					return errNotLoggedIn
				}
				if err := a.store.ReloadUser(ctx); err != nil {
					return err
				}
				return printUser(a.out, a.store.User())
			})
		},
	}
}

func passwdCmd() *cobra.Command {
	var oldPassword, newPassword string

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the account password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				if !a.store.IsAuthenticated() {
					return errNotLoggedIn
				}
				return a.store.ChangePassword(ctx, oldPassword, newPassword)
			})
		},
	}

	cmd.Flags().StringVar(&oldPassword, "old", "", "Current password")
	cmd.Flags().StringVar(&newPassword, "new", "", "New password")
	_ = cmd.MarkFlagRequired("old")
	_ = cmd.MarkFlagRequired("new")

	return cmd
}

func availableCmd() *cobra.Command {
	var username, email string

	cmd := &cobra.Command{
		Use:   "available",
		Short: "Check whether a username or email can still be registered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (username == "") == (email == "") {
				return errors.New("pass exactly one of --username or --email")
			}
			return run(cmd, func(ctx context.Context, a *app) error {
				var (
					ok  bool
					err error
				)
				if username != "" {
					ok, err = a.client.CheckUsername(ctx, username)
				} else {
					ok, err = a.client.CheckEmail(ctx, email)
				}
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintln(a.out, "available")
				} else {
					fmt.Fprintln(a.out, "taken")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username to check")
	cmd.Flags().StringVar(&email, "email", "", "Email to check")

	return cmd
}

func metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print session counters for this invocation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, a *app) error {
				return writeMetrics(a.out, promexport.NewPrometheusExporter(a.store))
			})
		},
	}
}

func keepaliveCmd() *cobra.Command {
	var (
		interval    time.Duration
		window      time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "keepalive",
		Short: "Keep the session fresh until interrupted",
		Long: `keepalive refreshes the stored token whenever it is about to expire.
With --metrics-addr it also serves Prometheus metrics at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 || window <= 0 {
				return errors.New("--interval and --window must be > 0")
			}
			return run(cmd, func(ctx context.Context, a *app) error {
				if metricsAddr != "" {
					srv := serveMetrics(a, metricsAddr)
					defer func() {
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
						defer cancel()
						_ = srv.Shutdown(shutdownCtx)
					}()
				}
				return keepalive(ctx, a, interval, window)
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "How often to check the token")
	cmd.Flags().DurationVar(&window, "window", 5*time.Minute, "Refresh when the token expires within this window")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics on this address")

	return cmd
}

func keepalive(ctx context.Context, a *app, interval, window time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		did, err := a.store.RefreshIfExpiring(ctx, window)
		switch {
		case errors.Is(err, careauth.ErrNotAuthenticated):
			return errNotLoggedIn
		case err != nil:
			a.logger.Warn("carectl: refresh failed", "err", err)
			if !a.store.IsAuthenticated() {
				return errNotLoggedIn
			}
		case did:
			a.logger.Info("carectl: token refreshed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func serveMetrics(a *app, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promexport.NewPrometheusExporter(a.store).Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("carectl: metrics server stopped", "addr", addr, "err", err)
		}
	}()
	return srv
}

func writeMetrics(w io.Writer, exp *promexport.PrometheusExporter) error {
	families, err := exp.Registry().Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				fmt.Fprintf(w, "%s %.0f\n", mf.GetName(), c.GetValue())
			}
			if h := m.GetHistogram(); h != nil {
				fmt.Fprintf(w, "%s_count %d\n", mf.GetName(), h.GetSampleCount())
			}
		}
	}
	return nil
}

func readPassword(cmd *cobra.Command, flagValue string, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read password: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return "", errors.New("empty password on stdin")
		}
		return line, nil
	}
	if flagValue == "" {
		return "", errors.New("password required, use --password or --password-stdin")
	}
	return flagValue, nil
}

func printUser(w io.Writer, u *careauth.User) error {
	if u == nil {
		return errNotLoggedIn
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(u)
}
