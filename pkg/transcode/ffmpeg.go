package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	errs "vkmusic/pkg/errors"
	"vkmusic/pkg/logger"
)

// ErrTranscoderNotFound marks a missing ffmpeg binary. Per-task failure,
// never fatal to the run.
var ErrTranscoderNotFound = errors.New("ffmpeg binary not found")

// Runner executes the transcoder binary, forwarding its diagnostic output
// line by line. Tests substitute a fake here.
type Runner func(ctx context.Context, bin string, args []string, onOutput func(line string)) error

// Adapter turns a streaming manifest into a playable mp3 by downloading the
// manifest and handing it to an external ffmpeg.
type Adapter struct {
	ffmpegPath string
	httpClient *http.Client
	userAgent  string
	logger     logger.Logger
	runner     Runner
	lookPath   func(file string) (string, error)
}

// New creates a transcode adapter. ffmpegPath may be empty, in which case
// the binary is located on PATH per conversion attempt.
func New(ffmpegPath, userAgent string, timeout time.Duration, log logger.Logger) *Adapter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Adapter{
		ffmpegPath: ffmpegPath,
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		logger:     log,
		runner:     execRunner,
		lookPath:   exec.LookPath,
	}
}

// SetRunner substitutes the process runner (used by tests)
func (a *Adapter) SetRunner(r Runner) {
	a.runner = r
}

// SetLookPath substitutes binary lookup (used by tests)
func (a *Adapter) SetLookPath(f func(string) (string, error)) {
	a.lookPath = f
}

// Convert downloads the manifest at manifestURL, transcodes it, and
// atomically replaces destPath with the result. Single attempt: the caller
// does not re-invoke this on failure.
//
// Temp file semantics on failure: a missing binary leaves the downloaded
// manifest behind (the output temp was never created); a failing conversion
// removes both temp files.
func (a *Adapter) Convert(ctx context.Context, manifestURL, destPath string) error {
	manifestPath, err := a.downloadManifest(ctx, manifestURL)
	if err != nil {
		return err
	}

	bin, err := a.locateBinary()
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeExternalTool,
			Message: "transcoder binary not found",
			Err:     fmt.Errorf("%w: %v", ErrTranscoderNotFound, err),
		}
	}

	outputPath := destPath + ".transcode.mp3"
	args := []string{"-y", "-i", manifestPath, outputPath}

	a.logger.DebugWithFields("invoking transcoder", map[string]interface{}{
		"binary":   bin,
		"manifest": manifestPath,
		"output":   outputPath,
	})

	runErr := a.runner(ctx, bin, args, func(line string) {
		if strings.TrimSpace(line) != "" {
			a.logger.Debug("ffmpeg: " + line)
		}
	})
	if runErr != nil {
		os.Remove(outputPath)
		os.Remove(manifestPath)
		return errs.Wrap(errs.ErrorTypeExternalTool, "transcoder failed", runErr)
	}

	if err := os.Rename(outputPath, destPath); err != nil {
		os.Remove(outputPath)
		os.Remove(manifestPath)
		return errs.Wrap(errs.ErrorTypeStorage, "failed to move transcoded file into place", err)
	}
	os.Remove(manifestPath)

	a.logger.InfoWithFields("manifest converted", map[string]interface{}{
		"destination": destPath,
	})
	return nil
}

// locateBinary resolves the ffmpeg executable
func (a *Adapter) locateBinary() (string, error) {
	if a.ffmpegPath != "" {
		if _, err := os.Stat(a.ffmpegPath); err != nil {
			return "", err
		}
		return a.ffmpegPath, nil
	}
	return a.lookPath("ffmpeg")
}

// downloadManifest fetches the streaming manifest to a temp file, using the
// same impersonating user agent as direct downloads
func (a *Adapter) downloadManifest(ctx context.Context, manifestURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeNetwork, "failed to build manifest request", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeNetwork, "failed to fetch manifest", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("manifest fetch returned status %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}

	tmp, err := os.CreateTemp("", "vkmusic-*.m3u8")
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeStorage, "failed to create manifest temp file", err)
	}

	_, err = io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return "", errs.Wrap(errs.ErrorTypeStorage, "failed to write manifest temp file", err)
	}
	if closeErr != nil {
		os.Remove(tmp.Name())
		return "", errs.Wrap(errs.ErrorTypeStorage, "failed to close manifest temp file", closeErr)
	}

	return tmp.Name(), nil
}

// execRunner runs the binary with exec, streaming combined output lines
func execRunner(ctx context.Context, bin string, args []string, onOutput func(line string)) error {
	cmd := exec.CommandContext(ctx, bin, args...)

	// ffmpeg writes progress and diagnostics to stderr
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to capture transcoder output: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start transcoder: %w", err)
	}

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		onOutput(scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("transcoder exited with error: %w", err)
	}
	return nil
}
