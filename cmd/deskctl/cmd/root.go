package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"optionDesk/internal/client"
)

var rootCmd = &cobra.Command{
	Use:   "deskctl",
	Short: "Command line client for the simulated options desk",
	Long: `deskctl talks to a running options desk server.

It can:
  - Register, log in and log out
  - Deposit virtual funds and show the account balance
  - Open BUY/SELL positions and list open or settled ones
  - Show live prices, candles and the chart selection
  - Print performance statistics and export positions as CSV

Example:
  deskctl login --email ann@example.com --password secret1
  deskctl trade buy --amount 20 --symbol BTC/USD --expiry 1`,
	SilenceUsage: true,
}

var (
	serverURL   string
	sessionPath string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	server := os.Getenv("DESK_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", server, "desk server base URL (env DESK_SERVER)")
	rootCmd.PersistentFlags().StringVar(&sessionPath, "session", defaultSessionPath(), "session file path")
}

// anonymousClient returns a client without credentials.
func anonymousClient() *client.Client {
	return client.New(serverURL, "")
}

// authedClient returns a client carrying the saved session token.
func authedClient() (*client.Client, *savedSession, error) {
	sess, err := loadSession(sessionPath)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil || sess.Token == "" {
		return nil, nil, fmt.Errorf("not logged in (run deskctl login)")
	}
	server := serverURL
	if !rootCmd.PersistentFlags().Changed("server") && sess.Server != "" {
		server = sess.Server
	}
	return client.New(server, sess.Token), sess, nil
}
