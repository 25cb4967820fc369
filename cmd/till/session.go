package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/till/internal/api"
	"github.com/Veraticus/till/internal/cli"
	"github.com/Veraticus/till/internal/common"
	"github.com/Veraticus/till/internal/form"
	"github.com/Veraticus/till/internal/session"
)

func qrCmd(e *env) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "qr [payload|-]",
		Short: "Log in with a scanned QR login code",
		Long: `Store the session carried by a QR login code. Pass the scanned text as an
argument, or "-" (or nothing) to read it from standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			payload := ""
			if len(args) == 1 && args[0] != "-" {
				payload = args[0]
			} else {
				line, err := cli.NewNonBlockingReader(cmd.InOrStdin()).ReadLine(ctx)
				if err != nil && !errors.Is(err, io.EOF) {
					return common.NewUserError("Could not read the QR code", err)
				}
				payload = line
			}

			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			sess, err := a.sessions.DeriveFromQR(ctx, payload)
			if err != nil {
				if errors.Is(err, session.ErrInvalidPayload) {
					return common.NewUserError("That is not a valid login code. Scan it again.", err)
				}
				return common.NewUserError("Could not save the session. Scan the code again.", err)
			}

			if verify {
				if err := verifySession(ctx, a, sess); err != nil {
					return err
				}
			}

			fmt.Fprintln(out, cli.FormatSuccess("Logged in as "+sess.Identity.Display()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "confirm the code with the server before keeping it")
	return cmd
}

// verifySession asks the backend who the new token belongs to. A rejected
// code is removed again so the user can rescan.
func verifySession(ctx context.Context, a *app, sess *session.Session) error {
	user, err := a.client.CurrentUser(ctx)
	if err != nil {
		var appErr *api.ApplicationError
		if errors.As(err, &appErr) && appErr.Unauthorized() {
			if rmErr := a.sessions.Remove(ctx); rmErr != nil {
				return rmErr
			}
			return common.NewUserError("The server did not accept that login code. Scan it again.", err)
		}
		return failure("Verifying the login code", err)
	}

	updated, err := a.sessions.Enrich(ctx, user)
	if err != nil {
		return common.NewUserError("Could not save the session", err)
	}
	if updated != nil {
		sess.Identity = updated.Identity
	}
	return nil
}

func loginCmd(e *env) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			in := cli.ShareInput(cmd.InOrStdin())

			if email == "" {
				line, err := cli.NewNonBlockingReader(in).Prompt(ctx, out, "Email")
				if err != nil && !errors.Is(err, io.EOF) {
					return common.NewUserError("Could not read email", err)
				}
				email = line
			}

			password, err := cli.ReadPassword(in, out, "Password")
			if err != nil && !errors.Is(err, io.EOF) {
				return common.NewUserError("Could not read password", err)
			}

			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			creds := form.LoginForm{Email: strings.TrimSpace(email), Password: password}
			var sess *session.Session
			err = a.guard.Submit(ctx, creds, func(ctx context.Context) error {
				login, err := a.client.SignIn(ctx, api.Credentials{Email: creds.Email, Password: creds.Password})
				if err != nil {
					return err
				}
				sess, err = a.sessions.SaveLogin(ctx, login.Token, login.User)
				return err
			})
			switch {
			case err == nil:
			case errors.Is(err, api.ErrAuthentication):
				return common.NewUserError(api.ErrAuthentication.Error(), err)
			case errors.As(err, new(*session.StorageError)):
				return common.NewUserError("Could not save the session", err)
			default:
				return failure("Login", err)
			}

			fmt.Fprintln(out, cli.FormatSuccess("Logged in as "+sess.Identity.Display()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email (prompted when omitted)")
	return cmd
}

func logoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.sessions.Remove(ctx); err != nil {
				return common.NewUserError("Could not remove the session", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Logged out"))
			return nil
		},
	}
}

func whoamiCmd(e *env) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			a, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			sess, err := a.requireSession(ctx)
			if err != nil {
				return err
			}

			user := sess.Identity
			if remote {
				if user, err = a.client.CurrentUser(ctx); err != nil {
					return failure("Looking up the current user", err)
				}
			}

			fmt.Fprintf(out, "%s %s\n", cli.KeyIcon, cli.BoldStyle.Render(user.Display()))
			if user != nil && user.Email != "" && user.Email != user.Display() {
				fmt.Fprintf(out, "  email:   %s\n", user.Email)
			}
			fmt.Fprintf(out, "  via:     %s\n", sess.Source)
			fmt.Fprintf(out, "  since:   %s\n", sess.CreatedAt.In(a.loc).Format("2006-01-02 15:04"))
			if sess.ExpiresAt != nil {
				expires := sess.ExpiresAt.In(a.loc).Format("2006-01-02 15:04")
				if sess.Expired(a.now()) {
					expires = cli.WarningStyle.Render(expires + " (expired)")
				}
				fmt.Fprintf(out, "  expires: %s\n", expires)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "ask the server instead of using the stored identity")
	return cmd
}
