package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	errs "vkmusic/pkg/errors"
	"vkmusic/pkg/logger"
	"vkmusic/pkg/retry"
	"vkmusic/pkg/storage"
	"vkmusic/pkg/vk"
)

// Result is the terminal state of one download task
type Result string

const (
	ResultSuccess            Result = "success"
	ResultFailedAfterRetries Result = "failed_after_retries"
	ResultSkipped            Result = "skipped"
)

// SkipReason explains why a task was skipped without any network activity
type SkipReason string

const (
	SkipUnsupportedFormat SkipReason = "unsupported_format"
)

// Task pairs a catalog record with its local destination for one run
type Task struct {
	Record      vk.MediaRecord
	Destination string
}

// Outcome records how a task ended; used for progress accounting only
type Outcome struct {
	Task     Task
	Attempts int
	Result   Result
	Reason   SkipReason
	Err      error
}

// Transcoder converts a streaming manifest into the destination file
type Transcoder interface {
	Convert(ctx context.Context, manifestURL, destPath string) error
}

// MetadataWriter persists a sidecar describing a downloaded track
type MetadataWriter interface {
	Write(record vk.MediaRecord, destPath string) error
}

// ProgressFunc is called after every task with the completed and total counts
type ProgressFunc func(completed, total int)

// Orchestrator downloads a catalog strictly sequentially: one task runs to
// completion (success, exhausted retries, or skip) before the next starts.
type Orchestrator struct {
	httpClient    *http.Client
	userAgent     string
	store         *storage.Manager
	transcoder    Transcoder
	metadata      MetadataWriter
	retryAttempts int
	retryDelay    time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
	progress      ProgressFunc
	logger        logger.Logger
}

// Options configures an Orchestrator
type Options struct {
	UserAgent     string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	Transcoder    Transcoder
	Metadata      MetadataWriter
	Progress      ProgressFunc
	Logger        logger.Logger
}

// New creates an Orchestrator writing into the given storage manager
func New(store *storage.Manager, opts Options) *Orchestrator {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}

	return &Orchestrator{
		httpClient:    &http.Client{Timeout: opts.Timeout},
		userAgent:     opts.UserAgent,
		store:         store,
		transcoder:    opts.Transcoder,
		metadata:      opts.Metadata,
		retryAttempts: opts.RetryAttempts,
		retryDelay:    opts.RetryDelay,
		sleep:         retry.Wait,
		progress:      opts.Progress,
		logger:        log,
	}
}

// SetSleep substitutes the inter-attempt delay (used by tests)
func (o *Orchestrator) SetSleep(f func(ctx context.Context, d time.Duration) error) {
	o.sleep = f
}

// BuildTasks derives the download list for this run: an optional
// case-insensitive title filter, then destination naming, then dropping
// records whose destination already exists or whose URL is empty. Dropped
// records produce no task and therefore no network request.
func (o *Orchestrator) BuildTasks(records []vk.MediaRecord, titleFilter string) []Task {
	filter := strings.ToUpper(titleFilter)

	var tasks []Task
	for _, rec := range records {
		if filter != "" && !strings.Contains(strings.ToUpper(rec.Title), filter) {
			continue
		}

		dest := o.store.DestinationPath(rec.Artist, rec.Title)
		if rec.URL == "" {
			o.logger.DebugWithFields("skipping record without URL", map[string]interface{}{
				"destination": dest,
			})
			continue
		}
		if o.store.Exists(dest) {
			o.logger.DebugWithFields("destination already exists", map[string]interface{}{
				"destination": dest,
			})
			continue
		}

		tasks = append(tasks, Task{Record: rec, Destination: dest})
	}

	return tasks
}

// Run processes tasks one at a time. A single task's failure is never fatal:
// it is logged, counted, and the run continues.
func (o *Orchestrator) Run(ctx context.Context, tasks []Task) []Outcome {
	total := len(tasks)
	outcomes := make([]Outcome, 0, total)

	o.report(0, total)
	for i, task := range tasks {
		outcome := o.processTask(ctx, task)
		outcomes = append(outcomes, outcome)
		o.report(i+1, total)
	}

	return outcomes
}

// report invokes the progress callback when one is configured
func (o *Orchestrator) report(completed, total int) {
	if o.progress != nil {
		o.progress(completed, total)
	}
}

// processTask classifies one task by its URL contents and runs it to a
// terminal state
func (o *Orchestrator) processTask(ctx context.Context, task Task) Outcome {
	url := task.Record.URL

	switch {
	case strings.Contains(url, ".mp3"):
		return o.downloadDirect(ctx, task)

	case strings.Contains(url, "m3u8"):
		return o.transcodeStream(ctx, task)

	default:
		o.logger.WarnWithFields("unsupported audio URL", map[string]interface{}{
			"destination": task.Destination,
			"url":         url,
		})
		return Outcome{Task: task, Result: ResultSkipped, Reason: SkipUnsupportedFormat}
	}
}

// downloadDirect fetches a direct file URL with bounded retries and a fixed
// delay between attempts
func (o *Orchestrator) downloadDirect(ctx context.Context, task Task) Outcome {
	o.logger.InfoWithFields("downloading", map[string]interface{}{
		"destination": task.Destination,
	})

	attempts := 0
	op := func() error {
		attempts++
		return o.fetchOnce(ctx, task)
	}

	err := retry.Do(op, &retry.Config{
		MaxAttempts: o.retryAttempts,
		Backoff:     &retry.ConstantBackoff{Delay: o.retryDelay},
		RetryIf:     o.shouldRetry,
		Sleep:       o.sleep,
		Context:     ctx,
		Logger:      o.logger,
	})
	if err != nil {
		o.logger.ErrorWithFields("download failed after all attempts", map[string]interface{}{
			"destination": task.Destination,
			"attempts":    attempts,
			"error":       err.Error(),
		})
		return Outcome{Task: task, Attempts: attempts, Result: ResultFailedAfterRetries, Err: err}
	}

	o.writeMetadata(task)
	return Outcome{Task: task, Attempts: attempts, Result: ResultSuccess}
}

// fetchOnce performs a single GET-and-save attempt
func (o *Orchestrator) fetchOnce(ctx context.Context, task Task) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.Record.URL, nil)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, "failed to build request", err)
	}
	req.Header.Set("User-Agent", o.userAgent)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, "transport error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errType := errs.ErrorTypeServerError
		if !errs.IsRetryableStatusCode(resp.StatusCode) {
			errType = errs.ErrorTypeFormat
		}
		return &errs.Error{
			Type:    errType,
			Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}

	if err := o.store.Save(resp.Body, task.Destination); err != nil {
		o.reportFreeSpace(task.Destination)
		return errs.Wrap(errs.ErrorTypeStorage, "failed to write destination", err)
	}

	return nil
}

// shouldRetry retries transport and local I/O failures only
func (o *Orchestrator) shouldRetry(err error) bool {
	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}
	return false
}

// reportFreeSpace logs remaining space on the destination volume, best-effort
func (o *Orchestrator) reportFreeSpace(dest string) {
	free, err := storage.FreeSpace(o.store.OutputDir())
	if err != nil {
		return
	}
	o.logger.WarnWithFields("free space on destination volume", map[string]interface{}{
		"destination": dest,
		"free_mb":     free / (1024 * 1024),
	})
}

// transcodeStream delegates a streaming manifest to the transcode adapter.
// Single attempt: the adapter is never re-invoked for a failed task.
func (o *Orchestrator) transcodeStream(ctx context.Context, task Task) Outcome {
	o.logger.WarnWithFields("streaming manifest detected, converting with external transcoder", map[string]interface{}{
		"destination": task.Destination,
	})

	if o.transcoder == nil {
		return Outcome{
			Task:     task,
			Attempts: 1,
			Result:   ResultFailedAfterRetries,
			Err:      errs.New(errs.ErrorTypeExternalTool, "no transcoder configured"),
		}
	}

	if err := o.transcoder.Convert(ctx, task.Record.URL, task.Destination); err != nil {
		o.logger.ErrorWithFields("transcode failed", map[string]interface{}{
			"destination": task.Destination,
			"error":       err.Error(),
		})
		return Outcome{Task: task, Attempts: 1, Result: ResultFailedAfterRetries, Err: err}
	}

	o.writeMetadata(task)
	return Outcome{Task: task, Attempts: 1, Result: ResultSuccess}
}

// writeMetadata emits the optional sidecar; failures are logged, never fatal
func (o *Orchestrator) writeMetadata(task Task) {
	if o.metadata == nil {
		return
	}
	if err := o.metadata.Write(task.Record, task.Destination); err != nil {
		o.logger.WithError(err).Warn("failed to write metadata sidecar")
	}
}

// Summarize aggregates outcomes for the final report
func Summarize(outcomes []Outcome) (succeeded, failed, skipped int) {
	for _, oc := range outcomes {
		switch oc.Result {
		case ResultSuccess:
			succeeded++
		case ResultFailedAfterRetries:
			failed++
		case ResultSkipped:
			skipped++
		}
	}
	return
}
