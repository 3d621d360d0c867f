package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"optionDesk/internal/client"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	Long: `Register a new account with a starting balance of virtual funds.

Example:
  deskctl register --name Ann --email ann@example.com --password secret1`,
	RunE: runRegister,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and save the session token",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the current session",
	RunE:  runLogout,
}

var (
	authName     string
	authEmail    string
	authPassword string
)

func init() {
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	registerCmd.Flags().StringVarP(&authName, "name", "n", "", "display name (required)")
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringVarP(&authEmail, "email", "e", "", "email address (required)")
		c.Flags().StringVarP(&authPassword, "password", "p", "", "password (required)")
		c.MarkFlagRequired("email")
		c.MarkFlagRequired("password")
	}
	registerCmd.MarkFlagRequired("name")
}

func runRegister(cmd *cobra.Command, args []string) error {
	sess, err := anonymousClient().Register(cmd.Context(), authName, authEmail, authPassword)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if err := rememberSession(sess); err != nil {
		return err
	}
	renderSession(cmd.OutOrStdout(), "Registered", sess)
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	sess, err := anonymousClient().Login(cmd.Context(), authEmail, authPassword)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := rememberSession(sess); err != nil {
		return err
	}
	renderSession(cmd.OutOrStdout(), "Logged in", sess)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	c, _, err := authedClient()
	if err != nil {
		return err
	}
	if err := c.Logout(cmd.Context()); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if err := clearSession(sessionPath); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Logged out"))
	return nil
}

func rememberSession(sess *client.Session) error {
	saved := &savedSession{
		Server:    serverURL,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
	}
	if sess.Account != nil {
		saved.AccountID = sess.Account.ID
		saved.Email = sess.Account.Email
	}
	return saveSession(sessionPath, saved)
}
