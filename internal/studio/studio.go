// Package studio wires the dispatcher, the session store, the quota counter and
// image hosting into the generate-and-record flow the presentation layer calls.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/studio/internal/dispatch"
	"github.com/lehigh-university-libraries/studio/internal/images"
	"github.com/lehigh-university-libraries/studio/internal/metrics"
	"github.com/lehigh-university-libraries/studio/internal/models"
	"github.com/lehigh-university-libraries/studio/internal/providers"
	"github.com/lehigh-university-libraries/studio/internal/quota"
	"github.com/lehigh-university-libraries/studio/internal/sessions"
)

// ErrHostingDisabled is returned by Upload when no image host is configured
var ErrHostingDisabled = errors.New("image hosting is not configured")

// Options holds the optional collaborators
type Options struct {
	Host    providers.Host
	Fetcher *images.Fetcher
	// Rehost copies each generated image to Host before it is recorded
	Rehost  bool
	Policy  quota.Policy
	Metrics *metrics.Metrics
}

// Service is the studio's command surface
type Service struct {
	sessions   *sessions.Store
	counter    *quota.Counter
	dispatcher *dispatch.Dispatcher
	opts       Options
}

func New(store *sessions.Store, counter *quota.Counter, dispatcher *dispatch.Dispatcher, opts Options) *Service {
	if opts.Fetcher == nil {
		opts.Fetcher = images.NewFetcher()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	s := &Service{
		sessions:   store,
		counter:    counter,
		dispatcher: dispatcher,
		opts:       opts,
	}
	s.syncGauges()
	return s
}

// GenerateRequest is a dispatch request optionally pinned to a design
type GenerateRequest struct {
	dispatch.Request
	SessionID string `json:"sessionId,omitempty"`
}

// GenerateResult describes a finished generation
type GenerateResult struct {
	ImageURL  string              `json:"imageUrl"`
	SessionID string              `json:"sessionId"`
	Entry     models.HistoryEntry `json:"entry"`
	// Recorded is false when the design was deleted while the request was in flight
	Recorded bool `json:"recorded"`
}

// Generate runs one generation. The target design is fixed when the request
// starts; the result is recorded on it even if the user switched designs
// meanwhile, and dropped if it was deleted. When no design exists the first one
// is created only once a result arrives. Failures record nothing.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	// nothing is created until the request is known to be runnable
	if plan, err := s.dispatcher.Plan(req.Request); err != nil {
		s.opts.Metrics.ObserveGeneration(string(plan.Mode), outcomeLabel(err), 0)
		return GenerateResult{}, err
	}
	if err := s.opts.Policy.Check(s.counter); err != nil {
		return GenerateResult{}, err
	}

	target, err := s.resolveTarget(ctx, req.SessionID)
	if err != nil {
		return GenerateResult{}, err
	}

	start := time.Now()
	outcome, err := s.dispatcher.Dispatch(ctx, req.Request)
	if err != nil {
		s.opts.Metrics.ObserveGeneration(string(outcome.Mode), outcomeLabel(err), 0)
		slog.Error("Generation failed", "session_id", target, "err", err)
		return GenerateResult{}, err
	}
	s.opts.Metrics.ObserveGeneration(string(outcome.Mode), "success", time.Since(start))

	entry := models.HistoryEntry{
		ImageURL:  outcome.ImageURL,
		Operation: outcome.Mode,
		Prompt:    req.Prompt,
		Model:     outcome.Model,
		Params:    outcome.Params,
	}
	if s.opts.Rehost && s.opts.Host != nil {
		s.rehost(ctx, &entry)
	}

	if target == "" {
		created, err := s.EnsureSession(ctx)
		if err != nil {
			return GenerateResult{}, err
		}
		target = created.ID
	}

	result := GenerateResult{ImageURL: entry.ImageURL, SessionID: target}
	recorded, err := s.sessions.AppendHistoryTo(ctx, target, entry)
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		slog.Warn("Design deleted before generation finished, dropping result", "session_id", target, "image_url", entry.ImageURL)
		result.Entry = entry
	case err != nil:
		return GenerateResult{}, err
	default:
		result.Recorded = true
		result.Entry = recorded.History[len(recorded.History)-1]
	}

	remaining := s.counter.Decrement(ctx)
	s.syncGauges()
	slog.Info("Generation recorded", "session_id", target, "recorded", result.Recorded, "quota", remaining)
	return result, nil
}

func (s *Service) resolveTarget(ctx context.Context, sessionID string) (string, error) {
	if sessionID != "" {
		if _, ok := s.sessions.Get(sessionID); !ok {
			return "", fmt.Errorf("%w: %s", sessions.ErrSessionNotFound, sessionID)
		}
		return sessionID, nil
	}
	if active, ok := s.sessions.Active(); ok {
		return active.ID, nil
	}
	// no design yet; one is created once there is a result to record
	return "", nil
}

// rehost replaces the provider's temporary URL with a hosted copy. Any failure
// keeps the provider URL.
func (s *Service) rehost(ctx context.Context, entry *models.HistoryEntry) {
	data, err := s.opts.Fetcher.Fetch(ctx, entry.ImageURL)
	if err != nil {
		slog.Warn("Unable to fetch generated image for re-hosting", "url", entry.ImageURL, "err", err)
		return
	}
	if w, h, err := images.Dimensions(data); err == nil {
		entry.Width, entry.Height = w, h
	} else {
		slog.Debug("Unable to read image dimensions", "err", err)
	}

	hosted, err := s.opts.Host.Upload(ctx, images.Encode(data))
	if err != nil {
		s.opts.Metrics.Uploads.WithLabelValues("failure").Inc()
		slog.Warn("Unable to re-host generated image", "url", entry.ImageURL, "err", err)
		return
	}
	s.opts.Metrics.Uploads.WithLabelValues("success").Inc()
	entry.ImageURL = hosted
}

// Upload stores a user-produced image (canvas, mask) and returns its https URL
func (s *Service) Upload(ctx context.Context, image string) (string, error) {
	if s.opts.Host == nil {
		return "", ErrHostingDisabled
	}
	url, err := s.opts.Host.Upload(ctx, image)
	if err != nil {
		s.opts.Metrics.Uploads.WithLabelValues("failure").Inc()
		return "", &dispatch.RemoteError{Err: err}
	}
	s.opts.Metrics.Uploads.WithLabelValues("success").Inc()
	return url, nil
}

// EnsureSession returns the active design, creating one when none is active
func (s *Service) EnsureSession(ctx context.Context) (models.DesignSession, error) {
	if active, ok := s.sessions.Active(); ok {
		return active, nil
	}
	created, ok := s.sessions.Create(ctx)
	if !ok {
		return models.DesignSession{}, sessions.ErrNoActiveSession
	}
	s.syncGauges()
	return created, nil
}

func (s *Service) Sessions() []models.DesignSession {
	return s.sessions.List()
}

func (s *Service) Session(id string) (models.DesignSession, bool) {
	return s.sessions.Get(id)
}

func (s *Service) View() sessions.View {
	return s.sessions.View()
}

func (s *Service) CreateSession(ctx context.Context) (models.DesignSession, bool) {
	defer s.syncGauges()
	return s.sessions.Create(ctx)
}

func (s *Service) SelectSession(ctx context.Context, id string) bool {
	return s.sessions.Select(ctx, id)
}

func (s *Service) DeleteSession(ctx context.Context, id string) bool {
	defer s.syncGauges()
	return s.sessions.Delete(ctx, id)
}

// AppendHistory records an externally produced version on the active design
func (s *Service) AppendHistory(ctx context.Context, entry models.HistoryEntry) (models.DesignSession, error) {
	return s.sessions.AppendHistory(ctx, entry)
}

func (s *Service) Quota() int {
	return s.counter.Get()
}

func (s *Service) SetQuota(ctx context.Context, n int) {
	defer s.syncGauges()
	s.counter.Set(ctx, n)
}

func (s *Service) ResetQuota(ctx context.Context) {
	defer s.syncGauges()
	s.counter.Reset(ctx)
}

func (s *Service) DecrementQuota(ctx context.Context) int {
	defer s.syncGauges()
	return s.counter.Decrement(ctx)
}

func (s *Service) Metrics() *metrics.Metrics {
	return s.opts.Metrics
}

func (s *Service) syncGauges() {
	s.opts.Metrics.Designs.Set(float64(len(s.sessions.List())))
	s.opts.Metrics.Quota.Set(float64(s.counter.Get()))
}

func outcomeLabel(err error) string {
	var remote *dispatch.RemoteError
	switch {
	case errors.Is(err, dispatch.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, dispatch.ErrGenerationFailed):
		return "generation_failed"
	case errors.As(err, &remote):
		return "remote_error"
	default:
		return "error"
	}
}
