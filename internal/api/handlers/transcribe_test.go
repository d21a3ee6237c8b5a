package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tubescribe/backend/internal/pipeline"
	"github.com/tubescribe/backend/internal/ratelimit"
	"github.com/tubescribe/backend/internal/whisper"
	"github.com/tubescribe/backend/internal/ytdlp"
)

type fakeRunner struct {
	out *pipeline.Outcome
	err error
}

func (f *fakeRunner) Run(ctx context.Context, url, identity string) (*pipeline.Outcome, error) {
	return f.out, f.err
}

func doTranscribe(t *testing.T, runner Runner, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewTranscribeHandler(runner)
	req := httptest.NewRequest("POST", "/api/transcribe", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Transcribe(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return m
}

func TestTranscribeSuccess(t *testing.T) {
	runner := &fakeRunner{out: &pipeline.Outcome{
		VideoID:    "dQw4w9WgXcQ",
		Transcript: "hello",
		CacheKey:   "tubescribe:transcript:dQw4w9WgXcQ",
		FromCache:  true,
		Duration:   1500 * time.Millisecond,
	}}
	rec := doTranscribe(t, runner, `{"url":"https://youtu.be/dQw4w9WgXcQ"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Error("success != true")
	}
	if body["videoId"] != "dQw4w9WgXcQ" {
		t.Errorf("videoId = %v", body["videoId"])
	}
	if body["fromCache"] != true {
		t.Error("fromCache != true")
	}
	if body["duration"].(float64) != 1.5 {
		t.Errorf("duration = %v, want 1.5", body["duration"])
	}
}

func TestTranscribeErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation error",
			err:        &pipeline.ValidationError{Reason: "bad url"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_url",
		},
		{
			name:       "rate limited",
			err:        &pipeline.RateLimitError{Decision: ratelimit.Decision{ResetAt: time.Now().Add(30 * time.Second)}},
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "rate_limited",
		},
		{
			name:       "extraction timeout",
			err:        &ytdlp.ExtractError{Code: ytdlp.CodeTimeout},
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "timeout",
		},
		{
			name:       "extraction process error",
			err:        &ytdlp.ExtractError{Code: ytdlp.CodeProcessError, Detail: "boom"},
			wantStatus: http.StatusBadGateway,
			wantCode:   "process_error",
		},
		{
			name:       "transcription auth error",
			err:        &whisper.APIError{Code: whisper.CodeAuthError, Status: 401},
			wantStatus: http.StatusBadGateway,
			wantCode:   "auth_error",
		},
		{
			name:       "unexpected error",
			err:        context.DeadlineExceeded,
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doTranscribe(t, &fakeRunner{err: tt.err}, `{"url":"https://youtu.be/dQw4w9WgXcQ"}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeBody(t, rec)
			if body["success"] != false {
				t.Error("success != false")
			}
			if tt.wantCode != "" && body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
			}
			if tt.wantStatus == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
				t.Error("missing Retry-After header")
			}
		})
	}
}

func TestTranscribeBadRequestBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{not json"},
		{"missing url", `{}`},
		{"empty url", `{"url":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doTranscribe(t, &fakeRunner{}, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	h := NewTranscribeHandler(&fakeRunner{})
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
}
