package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"boorufetch/pkg/auth"
	"boorufetch/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored booru credentials",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store booru credentials in the system keychain",
	Long: `Store a booru user name and API key. The system keychain is used
when available, with an encrypted file in the user config directory as
fallback.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)

		fmt.Print("User name: ")
		username, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read user name: %w", err)
		}
		username = strings.TrimSpace(username)
		if username == "" {
			return fmt.Errorf("user name is required")
		}

		fmt.Print("API key (input hidden): ")
		keyBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		apiKey := strings.TrimSpace(string(keyBytes))
		if apiKey == "" {
			return fmt.Errorf("API key is required")
		}

		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to open credential store: %w", err)
		}
		if err := manager.Store(&auth.Account{Username: username, APIKey: apiKey}); err != nil {
			return err
		}

		ui.PrintSuccess("Credentials stored for " + username)
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to open credential store: %w", err)
		}
		if err := manager.Delete(args[0]); err != nil {
			return err
		}
		ui.PrintSuccess("Credentials removed for " + args[0])
		return nil
	},
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return fmt.Errorf("failed to open credential store: %w", err)
		}
		accounts, err := manager.List()
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			ui.PrintWarning("No stored accounts")
			return nil
		}
		for _, account := range accounts {
			fmt.Println(account.Username)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authListCmd)
}
