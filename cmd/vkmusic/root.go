package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"vkmusic/pkg/app"
	"vkmusic/pkg/auth"
	"vkmusic/pkg/config"
	"vkmusic/pkg/logger"
	"vkmusic/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string

	// Download flags
	flagLogin         string
	flagPassword      string
	flagTitle         string
	flagDirectory     string
	flagCacheFile     string
	flagFFmpegPath    string
	flagRetryAttempts int
	flagMetadata      bool
)

// rootCmd downloads the authenticated account's audio catalog
var rootCmd = &cobra.Command{
	Use:   "vkmusic",
	Short: "Download your VK audio collection",
	Long: `vkmusic downloads the audio catalog of a VK account to local MP3 files.

Features:
  - Password, two-factor and manual-token authorization flows
  - Credential caching between runs
  - Streaming tracks converted to MP3 via ffmpeg
  - Automatic retry for transient download failures
  - Already-downloaded tracks are skipped on rerun`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:    cobra.NoArgs,
	RunE:    runDownload,
}

// Execute runs the root command and maps the result to an exit status. A
// user-declined restart is a clean exit, not a failure.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		if errors.Is(err, auth.ErrAborted) {
			ui.PrintInfo("Exiting", "authorization cache left untouched")
		} else {
			ui.PrintError("vkmusic failed", err.Error())
		}
	}
	os.Exit(app.ExitCode(err))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.vkmusic.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.Flags().StringVarP(&flagLogin, "login", "l", "", "VK login (email or phone); skips the credential cache")
	rootCmd.Flags().StringVarP(&flagPassword, "password", "p", "", "VK password (omit to be prompted)")
	rootCmd.Flags().StringVarP(&flagTitle, "title", "t", "", "only download tracks whose title contains this text")
	rootCmd.Flags().StringVarP(&flagDirectory, "directory", "d", "", "output directory (default derives from the profile link)")
	rootCmd.Flags().StringVar(&flagCacheFile, "cache-file", "", "authorization cache file (default .authorization)")
	rootCmd.Flags().StringVar(&flagFFmpegPath, "ffmpeg-path", "", "ffmpeg binary (default: found on PATH)")
	rootCmd.Flags().IntVar(&flagRetryAttempts, "retry-attempts", 0, "download attempts per track (default 3)")
	rootCmd.Flags().BoolVar(&flagMetadata, "metadata", false, "write a JSON sidecar next to every downloaded track")

	rootCmd.SetVersionTemplate(`vkmusic {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Cobra prints usage on any RunE error by default, which buries the
	// actual failure for runtime errors
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

// commandLineFlags collects set flags for the config merge
func commandLineFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if flagDirectory != "" {
		flags["directory"] = flagDirectory
	}
	if flagCacheFile != "" {
		flags["cache-file"] = flagCacheFile
	}
	if flagFFmpegPath != "" {
		flags["ffmpeg-path"] = flagFFmpegPath
	}
	if flagRetryAttempts > 0 {
		flags["retry-attempts"] = flagRetryAttempts
	}
	if flagMetadata {
		flags["metadata"] = true
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	return flags
}

// loadConfig builds the effective configuration for any command
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile, commandLineFlags())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	return cfg, nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	ui.PrintLogo()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log := logger.GetLogger()
	log.WithField("version", version).Info("vkmusic starting")

	a := app.New(cfg, log)
	return a.Run(context.Background(), app.RunOptions{
		Login:       flagLogin,
		Password:    flagPassword,
		TitleFilter: flagTitle,
	})
}
