package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/tubescribe/backend/internal/pipeline"
	"github.com/tubescribe/backend/internal/whisper"
	"github.com/tubescribe/backend/internal/ytdlp"
)

// Runner is the pipeline surface the handler needs; substituted in tests.
type Runner interface {
	Run(ctx context.Context, url, identity string) (*pipeline.Outcome, error)
}

type TranscribeHandler struct {
	pipeline Runner
}

func NewTranscribeHandler(p Runner) *TranscribeHandler {
	return &TranscribeHandler{pipeline: p}
}

type transcribeRequest struct {
	URL string `json:"url"`
}

type transcribeResponse struct {
	Success    bool    `json:"success"`
	VideoID    string  `json:"videoId"`
	Transcript string  `json:"transcript"`
	FromCache  bool    `json:"fromCache"`
	Duration   float64 `json:"duration"` // seconds
	CacheKey   string  `json:"cacheKey"`
}

// Transcribe runs the full pipeline for one video URL.
func (h *TranscribeHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		failure(w, "invalid JSON body", "", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		failure(w, "url is required", "", http.StatusBadRequest)
		return
	}

	// RealIP middleware has already resolved the client address.
	out, err := h.pipeline.Run(r.Context(), req.URL, r.RemoteAddr)
	if err != nil {
		writeFailure(w, err)
		return
	}

	jsonResponse(w, transcribeResponse{
		Success:    true,
		VideoID:    out.VideoID,
		Transcript: out.Transcript,
		FromCache:  out.FromCache,
		Duration:   out.Duration.Seconds(),
		CacheKey:   out.CacheKey,
	}, http.StatusOK)
}

// Health is the liveness probe.
func (h *TranscribeHandler) Health(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// writeFailure maps pipeline errors to HTTP responses. Internal diagnostic
// detail stays in the logs, not the response body.
func writeFailure(w http.ResponseWriter, err error) {
	var (
		ve *pipeline.ValidationError
		re *pipeline.RateLimitError
		ee *ytdlp.ExtractError
		ae *whisper.APIError
	)
	switch {
	case errors.As(err, &ve):
		failure(w, ve.Reason, "invalid_url", http.StatusBadRequest)
	case errors.As(err, &re):
		retryAfter := int(time.Until(re.Decision.ResetAt).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		jsonResponse(w, map[string]interface{}{
			"success":   false,
			"error":     "too many requests, try again later",
			"code":      "rate_limited",
			"remaining": re.Decision.Remaining,
			"resetAt":   re.Decision.ResetAt.UTC().Format(time.RFC3339),
		}, http.StatusTooManyRequests)
	case errors.As(err, &ee):
		status := http.StatusBadGateway
		if ee.Code == ytdlp.CodeTimeout {
			status = http.StatusGatewayTimeout
		}
		failure(w, "audio extraction failed", string(ee.Code), status)
	case errors.As(err, &ae):
		failure(w, "transcription failed", string(ae.Code), http.StatusBadGateway)
	default:
		log.Printf("[api] unexpected pipeline error: %v", err)
		failure(w, "internal error", "", http.StatusInternalServerError)
	}
}

func failure(w http.ResponseWriter, msg, code string, status int) {
	body := map[string]interface{}{
		"success": false,
		"error":   msg,
	}
	if code != "" {
		body["code"] = code
	}
	jsonResponse(w, body, status)
}
