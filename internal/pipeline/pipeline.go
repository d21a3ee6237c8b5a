package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/tubescribe/backend/internal/cache"
	"github.com/tubescribe/backend/internal/metrics"
	"github.com/tubescribe/backend/internal/ratelimit"
	"github.com/tubescribe/backend/internal/whisper"
	"github.com/tubescribe/backend/internal/ytdlp"
)

// AudioExtractor is the slice of the extractor the pipeline needs. The
// extracted file stays owned by the extractor; the pipeline only borrows
// the path and must hand it back through CleanupFile.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, url string) (*ytdlp.Result, error)
	CleanupFile(path string) bool
}

// Outcome is a successful pipeline run.
type Outcome struct {
	VideoID    string
	Transcript string
	CacheKey   string
	FromCache  bool
	Duration   time.Duration
}

// ValidationError rejects malformed input before any work happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// RateLimitError carries the admission decision for the 429 response.
type RateLimitError struct {
	Decision ratelimit.Decision
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, resets at %s", e.Decision.ResetAt.Format(time.RFC3339))
}

// Config holds the pipeline's own knobs; collaborators are injected.
type Config struct {
	Namespace string
	TTL       time.Duration
}

// Pipeline runs one request through the fixed stage sequence: admission,
// cache lookup, extraction, transcription, cleanup, best-effort cache write.
type Pipeline struct {
	limiter     ratelimit.Limiter
	store       cache.Store
	extractor   AudioExtractor
	transcriber whisper.Transcriber
	namespace   string
	ttl         time.Duration
	metrics     *metrics.Metrics
}

func New(limiter ratelimit.Limiter, store cache.Store, extractor AudioExtractor, transcriber whisper.Transcriber, cfg Config, m *metrics.Metrics) *Pipeline {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Pipeline{
		limiter:     limiter,
		store:       store,
		extractor:   extractor,
		transcriber: transcriber,
		namespace:   cfg.Namespace,
		ttl:         cfg.TTL,
		metrics:     m,
	}
}

// Run processes one request. On failure the error is one of
// *ValidationError, *RateLimitError, *ytdlp.ExtractError, *whisper.APIError,
// or a wrapped unexpected error.
func (p *Pipeline) Run(ctx context.Context, url, identity string) (*Outcome, error) {
	start := time.Now()
	out, err := p.run(ctx, url, identity)
	p.metrics.RequestDuration.Observe(time.Since(start).Seconds())
	p.metrics.Requests.WithLabelValues(outcomeLabel(out, err)).Inc()
	return out, err
}

func (p *Pipeline) run(ctx context.Context, url, identity string) (*Outcome, error) {
	start := time.Now()

	// Admission. A limiter backend failure is not a user error: fail open
	// and let the request through.
	decision, err := p.limiter.Admit(ctx, identity)
	if err != nil {
		log.Printf("[pipeline] rate limiter unavailable, admitting %s: %v", identity, err)
	} else if !decision.Allowed {
		p.metrics.RateLimited.Inc()
		return nil, &RateLimitError{Decision: decision}
	}

	videoID, ok := ytdlp.VideoID(url)
	if !ok {
		return nil, &ValidationError{Reason: "url is not a recognized YouTube video URL"}
	}

	// Cache lookup; store errors degrade to a miss.
	key := cache.TranscriptKey(p.namespace, videoID)
	if text, hit, err := p.store.Get(ctx, key); err != nil {
		p.metrics.CacheErrors.Inc()
		log.Printf("[pipeline] cache lookup failed for %s: %v", key, err)
	} else if hit {
		p.metrics.CacheHits.Inc()
		log.Printf("[pipeline] cache hit: %s", key)
		return &Outcome{
			VideoID:    videoID,
			Transcript: text,
			CacheKey:   key,
			FromCache:  true,
			Duration:   time.Since(start),
		}, nil
	}
	p.metrics.CacheMisses.Inc()

	res, err := p.extractor.ExtractAudio(ctx, url)
	if err != nil {
		var ee *ytdlp.ExtractError
		if errors.As(err, &ee) {
			p.metrics.ExtractionFailures.WithLabelValues(string(ee.Code)).Inc()
		}
		return nil, err
	}
	p.metrics.ExtractionDuration.Observe(res.Elapsed.Seconds())

	// The temp file must be released exactly once whatever happens below.
	// The explicit call after transcription is the primary path; the defer
	// covers panics and early returns.
	released := false
	release := func() {
		if !released {
			released = true
			p.extractor.CleanupFile(res.Path)
		}
	}
	defer release()

	audio, readErr := os.ReadFile(res.Path)
	var tres *whisper.Result
	var terr error
	if readErr != nil {
		terr = fmt.Errorf("read extracted audio: %w", readErr)
	} else {
		tres, terr = p.transcriber.Transcribe(ctx, audio, filepath.Base(res.Path), res.MIMEType)
	}
	release()
	if terr != nil {
		var ae *whisper.APIError
		if errors.As(terr, &ae) {
			p.metrics.TranscriptionFailures.WithLabelValues(string(ae.Code)).Inc()
		}
		return nil, terr
	}
	p.metrics.TranscriptionAttempts.Add(float64(tres.Attempts))

	// Best-effort write; a cache fault never fails the request.
	if err := p.store.SetWithTTL(ctx, key, tres.Text, p.ttl); err != nil {
		p.metrics.CacheErrors.Inc()
		log.Printf("[pipeline] cache write failed for %s: %v", key, err)
	}

	log.Printf("[pipeline] transcribed %s in %s (%d attempt(s))", videoID, time.Since(start).Round(time.Millisecond), tres.Attempts)
	return &Outcome{
		VideoID:    videoID,
		Transcript: tres.Text,
		CacheKey:   key,
		FromCache:  false,
		Duration:   time.Since(start),
	}, nil
}

func outcomeLabel(out *Outcome, err error) string {
	if err == nil {
		if out.FromCache {
			return "cache_hit"
		}
		return "success"
	}
	var (
		ve *ValidationError
		re *RateLimitError
		ee *ytdlp.ExtractError
		ae *whisper.APIError
	)
	switch {
	case errors.As(err, &ve):
		return "invalid_url"
	case errors.As(err, &re):
		return "rate_limited"
	case errors.As(err, &ee):
		return "extraction_failed"
	case errors.As(err, &ae):
		return "transcription_failed"
	}
	return "error"
}
