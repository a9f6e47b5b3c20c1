// Package app wires authentication, catalog fetch and the download pipeline
// into the end-to-end run a single command invocation performs.
package app

import (
	"context"
	"errors"
	"fmt"

	"vkmusic/pkg/auth"
	"vkmusic/pkg/config"
	"vkmusic/pkg/downloader"
	errs "vkmusic/pkg/errors"
	"vkmusic/pkg/logger"
	"vkmusic/pkg/metadata"
	"vkmusic/pkg/storage"
	"vkmusic/pkg/transcode"
	"vkmusic/pkg/ui"
	"vkmusic/pkg/vk"
)

// CatalogAPI is the slice of the VK client the run loop needs
type CatalogAPI interface {
	auth.Authorizer
	ListMedia(ctx context.Context, sess *vk.Session, ownerID int64, offset, count int) ([]vk.MediaRecord, error)
	ProfileScreenName(ctx context.Context, sess *vk.Session) (string, error)
}

// RunOptions carry the per-invocation inputs from the command line
type RunOptions struct {
	Login       string
	Password    string
	TitleFilter string
}

// App is the top-level application: one instance per invocation
type App struct {
	cfg      *config.Config
	api      CatalogAPI
	authn    *auth.Authenticator
	prompter auth.Prompter
	logger   logger.Logger

	// newOrchestrator is replaced in tests to observe the pipeline
	newOrchestrator func(store *storage.Manager) downloadRunner
}

type downloadRunner interface {
	BuildTasks(records []vk.MediaRecord, titleFilter string) []downloader.Task
	Run(ctx context.Context, tasks []downloader.Task) []downloader.Outcome
}

// New assembles an App from configuration
func New(cfg *config.Config, log logger.Logger) *App {
	client := vk.NewClient(cfg.VK.AppID, cfg.VK.APIVersion, cfg.VK.UserAgent, cfg.Download.DownloadTimeout, log)
	prompter := auth.NewConsolePrompter()
	store := auth.NewFileStore(cfg.Output.CacheFile)
	authn := auth.New(client, store, prompter, vk.ManualAuthorizeURL(cfg.VK.AppID, cfg.VK.APIVersion), log)

	a := &App{
		cfg:      cfg,
		api:      client,
		authn:    authn,
		prompter: prompter,
		logger:   log,
	}
	a.newOrchestrator = a.buildOrchestrator
	return a
}

// NewWithDeps builds an App around explicit collaborators (used by tests)
func NewWithDeps(cfg *config.Config, api CatalogAPI, authn *auth.Authenticator, prompter auth.Prompter, log logger.Logger) *App {
	a := &App{
		cfg:      cfg,
		api:      api,
		authn:    authn,
		prompter: prompter,
		logger:   log,
	}
	a.newOrchestrator = a.buildOrchestrator
	return a
}

// SetOrchestratorFactory substitutes the pipeline construction (tests only)
func (a *App) SetOrchestratorFactory(f func(store *storage.Manager) downloadRunner) {
	a.newOrchestrator = f
}

func (a *App) buildOrchestrator(store *storage.Manager) downloadRunner {
	var meta downloader.MetadataWriter
	if a.cfg.Download.WriteMetadata {
		meta = metadata.NewWriter()
	}

	progress := ui.NewProgressPrinter()
	return downloader.New(store, downloader.Options{
		UserAgent:     a.cfg.VK.UserAgent,
		Timeout:       a.cfg.Download.DownloadTimeout,
		RetryAttempts: a.cfg.Download.RetryAttempts,
		RetryDelay:    a.cfg.Download.RetryDelay,
		Transcoder:    transcode.New(a.cfg.Transcode.FFmpegPath, a.cfg.VK.UserAgent, a.cfg.Download.DownloadTimeout, a.logger),
		Metadata:      meta,
		Progress:      progress.Update,
		Logger:        a.logger,
	})
}

// Run executes the whole flow. A scope denial after authentication offers the
// user a restart with a cleared cache; declining ends the run cleanly with the
// cache untouched.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	for {
		sess, err := a.authenticate(ctx, opts)
		if err != nil {
			return err
		}

		err = a.download(ctx, sess, opts.TitleFilter)
		if vk.IsScopesDenied(err) {
			restart, perr := a.promptRestart()
			if perr != nil {
				return perr
			}
			if !restart {
				return auth.ErrAborted
			}
			if derr := a.authn.Store().Delete(); derr != nil {
				return derr
			}
			a.logger.Info("authorization cache cleared, starting over")
			// Cached credentials are gone, so force the interactive path
			opts.Login, opts.Password = "", ""
			continue
		}
		return err
	}
}

// authenticate picks the entry point: explicit flags beat the cache, and an
// absent cache falls back to interactive credential entry
func (a *App) authenticate(ctx context.Context, opts RunOptions) (*vk.Session, error) {
	login, password := opts.Login, opts.Password

	if login == "" && a.authn.Store().Exists() {
		return a.authn.LoginWithCache(ctx)
	}

	if login == "" {
		var err error
		login, err = a.prompter.ReadLine("Login (email or phone): ")
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeConfiguration, "failed to read login", err)
		}
	}
	if password == "" {
		var err error
		password, err = a.prompter.ReadSecret("Password: ")
		if err != nil {
			return nil, errs.Wrap(errs.ErrorTypeConfiguration, "failed to read password", err)
		}
	}

	return a.authn.LoginWithPassword(ctx, login, password)
}

// promptRestart asks whether to clear the cache and retry after a scope denial
func (a *App) promptRestart() (bool, error) {
	ui.PrintWarning("The cached authorization cannot access audio. Re-authorize from scratch?")
	return a.prompter.Confirm("Restart authorization [Y/N]: ")
}

// download fetches the catalog and drives the pipeline over it
func (a *App) download(ctx context.Context, sess *vk.Session, titleFilter string) error {
	dir, err := a.resolveDirectory(ctx, sess)
	if err != nil {
		return err
	}

	store, err := storage.NewManager(dir)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, "failed to prepare output directory", err)
	}
	a.logger.InfoWithFields("saving into", map[string]interface{}{"directory": dir})

	records, err := a.api.ListMedia(ctx, sess, sess.UserID, 0, a.cfg.VK.CatalogLimit)
	if err != nil {
		return err
	}
	a.logger.InfoWithFields("catalog fetched", map[string]interface{}{"tracks": len(records)})

	orch := a.newOrchestrator(store)
	tasks := orch.BuildTasks(records, titleFilter)
	outcomes := orch.Run(ctx, tasks)

	succeeded, failed, skipped := downloader.Summarize(outcomes)
	ui.PrintInfo("Downloaded", fmt.Sprintf("%d", succeeded))
	if skipped > 0 {
		ui.PrintInfo("Skipped", fmt.Sprintf("%d", skipped))
	}
	if failed > 0 {
		ui.PrintWarning(fmt.Sprintf("%d track(s) failed, rerun to retry them", failed))
	}
	return nil
}

// resolveDirectory applies the configured directory or derives one from the
// account's public profile link
func (a *App) resolveDirectory(ctx context.Context, sess *vk.Session) (string, error) {
	if a.cfg.Output.Directory != "" {
		return a.cfg.Output.Directory, nil
	}

	name, err := a.api.ProfileScreenName(ctx, sess)
	if err != nil {
		// Scope denials must surface so the restart prompt can run
		if vk.IsScopesDenied(err) {
			return "", err
		}
		a.logger.WithError(err).Warn("could not resolve profile link, using numeric id")
		name = fmt.Sprintf("id%d", sess.UserID)
	}
	return "vk.com/" + name, nil
}

// ExitCode maps a run error to the process exit status
func ExitCode(err error) int {
	if err == nil || errors.Is(err, auth.ErrAborted) {
		return 0
	}
	return 1
}
