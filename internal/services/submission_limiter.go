package services

import (
	"context"
	"log"
	"time"

	"enoriel/autos/internal/cache"
)

// ISubmissionLimiter caps how many inquiries one client may submit per window.
type ISubmissionLimiter interface {
	// Check fails with ErrRateLimited once the client has used up its window.
	Check(ctx context.Context, clientKey string) error
	// Record counts a successful submission.
	Record(ctx context.Context, clientKey string)
}

type submissionLimiter struct {
	counter  cache.Counter
	settings IConfigService
	limit    int
	window   time.Duration
}

// NewSubmissionLimiter allows limit submissions per client within window. Stored
// SUBMISSION_LIMIT and SUBMISSION_WINDOW_SECONDS values override both; settings may be nil.
// A non-positive limit disables the check.
func NewSubmissionLimiter(counter cache.Counter, settings IConfigService, limit int, window time.Duration) ISubmissionLimiter {
	return &submissionLimiter{counter: counter, settings: settings, limit: limit, window: window}
}

func submissionKey(clientKey string) string {
	return cache.Key("submissions", clientKey)
}

func (s *submissionLimiter) current(ctx context.Context) (int64, time.Duration) {
	if s.settings == nil {
		return int64(s.limit), s.window
	}
	return int64(s.settings.GetInt(ctx, KeySubmissionLimit, s.limit)),
		s.settings.GetDuration(ctx, KeySubmissionWindowSeconds, s.window)
}

func (s *submissionLimiter) Check(ctx context.Context, clientKey string) error {
	limit, _ := s.current(ctx)
	if limit <= 0 {
		return nil
	}
	n, err := s.counter.Count(ctx, submissionKey(clientKey))
	if err != nil {
		// Fail open.
		log.Printf("Error reading submission count for %s: %v", clientKey, err)
		return nil
	}
	if n >= limit {
		return ErrRateLimited
	}
	return nil
}

func (s *submissionLimiter) Record(ctx context.Context, clientKey string) {
	limit, window := s.current(ctx)
	if limit <= 0 {
		return
	}
	if _, err := s.counter.Incr(ctx, submissionKey(clientKey), window); err != nil {
		log.Printf("Error recording submission for %s: %v", clientKey, err)
	}
}
