package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/visa-navigator/internal/auth"
	"github.com/jonathan/visa-navigator/internal/localstore"
	"github.com/spf13/cobra"
)

var (
	accountEmail       string
	accountPassword    string
	accountName        string
	accountNationality string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the navigator server and save the session locally",
	RunE:  runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	RunE:  runLogout,
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&accountEmail, "email", "", "Account email")
		c.Flags().StringVar(&accountPassword, "password", "", "Account password (prompted when omitted)")
		_ = c.MarkFlagRequired("email")
	}
	registerCmd.Flags().StringVar(&accountName, "name", "", "Your name")
	registerCmd.Flags().StringVar(&accountNationality, "nationality", "", "Two-letter nationality code, e.g. NG")
	_ = registerCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	return withAccount(cmd, func(ctx context.Context, client *auth.Client, password string) auth.Result {
		return client.SignIn(ctx, accountEmail, password)
	})
}

func runRegister(cmd *cobra.Command, _ []string) error {
	return withAccount(cmd, func(ctx context.Context, client *auth.Client, password string) auth.Result {
		return client.SignUp(ctx, accountName, accountEmail, password, accountNationality)
	})
}

// withAccount runs a sign-in style call and persists the resulting session.
func withAccount(cmd *cobra.Command, call func(context.Context, *auth.Client, string) auth.Result) error {
	ctx := cmd.Context()
	password := accountPassword
	if password == "" {
		var err error
		if password, err = promptLine(cmd.InOrStdin(), cmd.OutOrStdout(), "Password: "); err != nil {
			return err
		}
	}

	store, err := openLocalStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	client := auth.NewClient(appConfig.APIBaseURL, auth.WithLogger(logger))
	if res := call(ctx, client, password); !res.Success {
		return fmt.Errorf("%s", res.Error)
	}

	session := client.Session()
	if err := store.SaveCredentials(ctx, localstore.Credentials{
		Email:     session.Email,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	}); err != nil {
		return fmt.Errorf("signed in but failed to save the session: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", session.Email)
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	store, err := openLocalStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.ClearCredentials(cmd.Context()); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
	return nil
}

func promptLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	_, _ = fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
