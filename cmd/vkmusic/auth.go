package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"vkmusic/pkg/auth"
	"vkmusic/pkg/logger"
	"vkmusic/pkg/ui"
	"vkmusic/pkg/vk"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage VK credentials",
	Long: `Manage stored VK credentials.

The download flow keeps a plaintext cache file next to the binary. The auth
subcommands additionally mirror tokens into secure storage:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your cache file or config files!`,
}

// authLoginCmd authorizes and stores the resulting token
var authLoginCmd = &cobra.Command{
	Use:   "login [login]",
	Short: "Authorize and store the access token securely",
	Long: `Authorize against VK with your login and password and store the resulting
access token in the system keychain or an encrypted file.

Two-factor codes, captcha and link-based validation are prompted for
interactively, exactly as during a download run.`,
	Example: `  # Interactive login
  vkmusic auth login

  # Login with a known account name
  vkmusic auth login user@example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogin,
}

// authLogoutCmd removes stored credentials
var authLogoutCmd = &cobra.Command{
	Use:   "logout [login]",
	Short: "Remove stored credentials",
	Long: `Remove stored VK credentials from secure storage and delete the plaintext
authorization cache file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogout,
}

// authListCmd lists stored accounts
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored VK accounts with sanitized credential information.`,
	RunE:  runAuthList,
}

// authStatusCmd reports the state of the authorization cache
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the authorization cache state",
	Long: `Show whether the plaintext cache file exists and which flow the next run
will take: cached token, cached password, or interactive login.`,
	RunE: runAuthStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(authStatusCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	var login string
	if len(args) > 0 {
		login = args[0]
	}

	reader := bufio.NewReader(os.Stdin)
	if login == "" {
		fmt.Print("VK login (email or phone): ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read login: %w", err)
		}
		login = strings.TrimSpace(input)
	}

	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	client := vk.NewClient(cfg.VK.AppID, cfg.VK.APIVersion, cfg.VK.UserAgent, cfg.Download.DownloadTimeout, log)
	store := auth.NewFileStore(cfg.Output.CacheFile)
	authn := auth.New(client, store, auth.NewConsolePrompter(), vk.ManualAuthorizeURL(cfg.VK.AppID, cfg.VK.APIVersion), log)

	sess, err := authn.LoginWithPassword(context.Background(), login, string(passwordBytes))
	if err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := manager.Store(&auth.Account{
		Login:       login,
		AccessToken: sess.AccessToken,
		UserID:      sess.UserID,
	}); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Credentials stored for %s (user id %d)", login, sess.UserID))
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if len(args) > 0 {
		if err := manager.Delete(args[0]); err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Removed stored credentials for %s", args[0]))
	} else {
		accounts, err := manager.List()
		if err != nil {
			return err
		}
		for _, account := range accounts {
			if err := manager.Delete(account.Login); err != nil {
				return err
			}
			ui.PrintSuccess(fmt.Sprintf("Removed stored credentials for %s", account.Login))
		}
		if len(accounts) == 0 {
			ui.PrintInfo("Stored accounts", "none")
		}
	}

	store := auth.NewFileStore(cfg.Output.CacheFile)
	if store.Exists() {
		if err := store.Delete(); err != nil {
			return err
		}
		ui.PrintSuccess("Authorization cache deleted")
	}
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(); err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		ui.PrintInfo("Stored accounts", "none")
		return nil
	}

	for _, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("  %s  token=%s  user_id=%d  modified=%s\n",
			ui.Cyan(sanitized.Login),
			sanitized.AccessToken,
			sanitized.UserID,
			sanitized.LastModified.Format(time.RFC3339))
	}
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store := auth.NewFileStore(cfg.Output.CacheFile)
	ui.PrintInfo("Cache file", store.Path())

	creds, err := store.Read()
	switch {
	case err == nil && creds.HasToken():
		ui.PrintInfo("Next run", "cached token authorization")
	case err == nil:
		ui.PrintInfo("Next run", fmt.Sprintf("password authorization as %s", creds.Login))
	default:
		ui.PrintInfo("Next run", "interactive login")
		if !store.Exists() {
			ui.PrintWarning("Cache file does not exist")
		} else {
			ui.PrintWarning("Cache file is unreadable", err)
		}
		return nil
	}

	return nil
}
