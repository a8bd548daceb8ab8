// Package videogen drives one video generation request through its full
// lifecycle: record fetch, validation, submission to the generation service,
// bounded status polling, artifact retrieval, and the single terminal record
// write.
package videogen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/kling"
	"server/internal/storage"
	"server/internal/store"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 80

	msgNoInputImage  = "No input image found"
	msgNoPrompt      = "No prompt provided (neither custom nor preset)"
	msgSubmitting    = "Submitting job to Kling API..."
	msgSubmitted     = "Job submitted. Video is generating..."
	msgDegraded      = "Video ready but Airtable upload failed. Download from video_url field."
	defaultRemoteErr = "Unknown error"

	defaultDuration    = 5
	defaultAspectRatio = "auto"
)

// Generator is the slice of the generation service the lifecycle needs.
// *kling.Client satisfies it.
type Generator interface {
	Submit(ctx context.Context, req kling.SubmitRequest) (string, error)
	PollStatus(ctx context.Context, jobID string) (*kling.JobStatus, error)
	Download(ctx context.Context, artifactURL string) ([]byte, error)
}

// SleepFunc suspends between poll attempts. Tests inject an instant one.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Store        store.RecordStore
	Generator    Generator
	Cache        *storage.ArtifactCache
	Logger       infra.Logger
	PollInterval time.Duration
	MaxAttempts  int
	Sleep        SleepFunc
}

// Runner executes lifecycles. One call handles one record; executions for
// different records are independent and may run in parallel.
type Runner struct {
	store       store.RecordStore
	gen         Generator
	cache       *storage.ArtifactCache
	logger      infra.Logger
	interval    time.Duration
	maxAttempts int
	sleep       SleepFunc
}

// NewRunner validates dependencies and applies polling defaults.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Store == nil {
		return nil, errors.New("videogen: record store is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("videogen: generator is required")
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return &Runner{
		store:       opts.Store,
		gen:         opts.Generator,
		cache:       opts.Cache,
		logger:      opts.Logger,
		interval:    interval,
		maxAttempts: attempts,
		sleep:       sleep,
	}, nil
}

// Start launches a detached lifecycle for recordID. The caller gets no
// result; the outcome is observable only through the record store.
func (r *Runner) Start(recordID string) {
	go r.Run(context.Background(), recordID)
}

// Run executes one lifecycle to its terminal record write. It is the outer
// error boundary: anything run does not handle explicitly becomes a
// best-effort "Server error" write, and a panic never escapes.
func (r *Runner) Run(ctx context.Context, recordID string) {
	log := r.logger.With().Str("record_id", recordID).Logger()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("lifecycle panicked")
			r.failBestEffort(ctx, recordID, fmt.Sprintf("Server error: %v", rec), log)
		}
	}()

	err := r.run(ctx, recordID, log)
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		// The record is unreachable; there is nothing to write to.
		log.Error().Err(err).Msg("record not found, lifecycle abandoned")
		return
	}
	log.Error().Err(err).Msg("lifecycle failed")
	r.failBestEffort(ctx, recordID, "Server error: "+err.Error(), log)
}

// run is the state machine. Handled outcomes write their terminal state and
// return nil; only unexpected errors propagate to the boundary in Run.
func (r *Runner) run(ctx context.Context, recordID string, log infra.Logger) error {
	fields, err := r.store.Fetch(ctx, recordID)
	if err != nil {
		return err
	}

	if len(fields.InputImage) == 0 || fields.InputImage[0].URL == "" {
		log.Warn().Msg("validation failed: no input image")
		return r.writeFailure(ctx, recordID, msgNoInputImage)
	}
	imageURL := fields.InputImage[0].URL

	prompt := fields.Prompt()
	if prompt == "" {
		log.Warn().Msg("validation failed: no prompt")
		return r.writeFailure(ctx, recordID, msgNoPrompt)
	}

	duration := fields.Duration
	if duration <= 0 {
		duration = defaultDuration
	}
	aspect := fields.AspectRatio
	if aspect == "" {
		aspect = defaultAspectRatio
	}

	if err := r.store.Update(ctx, recordID, domain.RecordPatch{
		domain.FieldStatus:   domain.StatusGenerating,
		domain.FieldErrorLog: msgSubmitting,
	}); err != nil {
		return fmt.Errorf("write generating state: %w", err)
	}

	jobID, err := r.gen.Submit(ctx, kling.SubmitRequest{
		Duration:      fmt.Sprintf("%d", duration),
		GuidanceScale: 0.5,
		Image:         imageURL,
		Prompt:        prompt,
	})
	if err != nil {
		var apiErr *kling.APIError
		if errors.As(err, &apiErr) {
			log.Warn().Int("status", apiErr.StatusCode).Msg("submission rejected")
			return r.writeFailure(ctx, recordID, "API submission failed: "+apiErr.Body)
		}
		return fmt.Errorf("submit job: %w", err)
	}
	log.Info().Str("job_id", jobID).Msg("job submitted")

	if err := r.store.Update(ctx, recordID, domain.RecordPatch{
		domain.FieldJobID:    jobID,
		domain.FieldErrorLog: msgSubmitted,
	}); err != nil {
		return fmt.Errorf("write job id: %w", err)
	}

	artifactURL, err := r.poll(ctx, recordID, jobID, log)
	if err != nil || artifactURL == "" {
		return err
	}

	return r.finalize(ctx, recordID, jobID, artifactURL, duration, aspect, log)
}

// poll watches the remote job at a fixed cadence until it resolves or the
// attempt budget runs out. It returns the artifact URL on success, and an
// empty URL after writing the terminal state on remote failure or timeout.
func (r *Runner) poll(ctx context.Context, recordID, jobID string, log infra.Logger) (string, error) {
	lastStatus := "pending"
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := r.sleep(ctx, r.interval); err != nil {
			return "", fmt.Errorf("poll wait: %w", err)
		}

		status, err := r.gen.PollStatus(ctx, jobID)
		if err != nil {
			// Transient: a failed poll never ends the lifecycle.
			log.Warn().Err(err).Int("attempt", attempt).Msg("poll attempt failed")
		} else {
			lastStatus = status.Raw
			switch status.State {
			case kling.StateCompleted:
				if len(status.Outputs) == 0 {
					return "", errors.New("completed job carried no outputs")
				}
				log.Info().Int("attempt", attempt).Msg("job completed")
				return status.Outputs[0], nil
			case kling.StateFailed:
				msg := status.Error
				if msg == "" {
					msg = defaultRemoteErr
				}
				log.Warn().Int("attempt", attempt).Str("remote_error", msg).Msg("job failed remotely")
				return "", r.writeFailure(ctx, recordID, "Kling AI error: "+msg)
			}
		}

		if attempt%10 == 0 {
			elapsed := attempt * int(r.interval/time.Second)
			progress := fmt.Sprintf("Video is generating... %d seconds elapsed (last status: %s)", elapsed, lastStatus)
			if err := r.store.Update(ctx, recordID, domain.RecordPatch{
				domain.FieldErrorLog: progress,
			}); err != nil {
				return "", fmt.Errorf("write progress: %w", err)
			}
		}
	}

	totalSecs := r.maxAttempts * int(r.interval/time.Second)
	mins := int(math.Round(float64(totalSecs) / 60))
	msg := fmt.Sprintf("Video generation timed out after %d seconds (~%d minutes)", totalSecs, mins)
	log.Warn().Msg("polling budget exhausted")
	return "", r.writeFailure(ctx, recordID, msg)
}

// finalize retrieves the artifact and writes the success state. An
// unavailable artifact degrades to "Completed (URL only)" rather than
// failing the job.
func (r *Runner) finalize(ctx context.Context, recordID, jobID, artifactURL string, duration int, aspect string, log infra.Logger) error {
	data, err := r.gen.Download(ctx, artifactURL)
	if err != nil {
		var apiErr *kling.APIError
		if !errors.As(err, &apiErr) {
			return fmt.Errorf("download artifact: %w", err)
		}
		log.Warn().Int("status", apiErr.StatusCode).Msg("artifact unavailable, recording url only")
		return r.store.Update(ctx, recordID, domain.RecordPatch{
			domain.FieldStatus:   domain.StatusCompletedURLOnly,
			domain.FieldVideoURL: artifactURL,
			domain.FieldErrorLog: msgDegraded,
		})
	}

	filename := deriveFilename(duration, aspect, jobID)
	if r.cache != nil {
		if path, err := r.cache.Save(ctx, recordID, filename, data); err != nil {
			log.Warn().Err(err).Msg("artifact cache write failed")
		} else {
			log.Debug().Str("path", path).Msg("artifact cached")
		}
	}

	log.Info().Str("filename", filename).Int("bytes", len(data)).Msg("lifecycle completed")
	return r.store.Update(ctx, recordID, domain.RecordPatch{
		domain.FieldStatus:      domain.StatusCompleted,
		domain.FieldOutputVideo: []domain.Attachment{{URL: artifactURL, Filename: filename}},
		domain.FieldVideoURL:    artifactURL,
		domain.FieldErrorLog:    fmt.Sprintf("Video generated successfully (%d KB)", len(data)/1024),
	})
}

// writeFailure records a terminal failure. It returns an error only when the
// write itself fails, so the boundary can attempt its best-effort fallback.
func (r *Runner) writeFailure(ctx context.Context, recordID, message string) error {
	return r.store.Update(ctx, recordID, domain.RecordPatch{
		domain.FieldStatus:   domain.StatusFailed,
		domain.FieldErrorLog: message,
	})
}

// failBestEffort writes the terminal failure without propagating store
// errors; the lifecycle must never loop on its own error path.
func (r *Runner) failBestEffort(ctx context.Context, recordID, message string, log infra.Logger) {
	if err := r.store.Update(ctx, recordID, domain.RecordPatch{
		domain.FieldStatus:   domain.StatusFailed,
		domain.FieldErrorLog: message,
	}); err != nil {
		log.Error().Err(err).Msg("terminal failure write failed")
	}
}

// deriveFilename names the artifact from the request shape and a short job
// id prefix, e.g. video_5s_16x9_abc12345.mp4.
func deriveFilename(duration int, aspect, jobID string) string {
	short := jobID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("video_%ds_%s_%s.mp4", duration, strings.ReplaceAll(aspect, ":", "x"), short)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
