// Package logger provides structured logging for the VK music downloader.
//
// It wraps zerolog behind a small Logger interface so the rest of the
// application never depends on a specific presentation medium. Output goes to
// stderr with colored levels; a log file can be configured additionally.
//
// Basic usage:
//
//	cfg := &config.LoggingConfig{Level: "info"}
//	err := logger.Initialize(cfg)
//
//	logger.GetLogger().Info("catalog fetched")
//	logger.GetLogger().WithField("track", name).Warn("skipping unsupported URL")
//
//	logger.GetLogger().InfoWithFields("download completed", map[string]interface{}{
//	    "file":     "Artist - Title.mp3",
//	    "attempts": 1,
//	})
package logger
