package whisper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(endpoint string) *Client {
	return NewClient(ClientOptions{
		Endpoint:  endpoint,
		APIKey:    "test-key",
		BaseDelay: time.Millisecond,
		MaxDelay:  5 * time.Millisecond,
	})
}

func apiErr(t *testing.T, err error) *APIError {
	t.Helper()
	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	return ae
}

func TestTranscribeSuccess(t *testing.T) {
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if v := r.FormValue("temperature"); v != "0" {
			t.Errorf("temperature = %q, want 0", v)
		}
		if v := r.FormValue("response_format"); v != "text" {
			t.Errorf("response_format = %q, want text", v)
		}
		if v := r.FormValue("language"); v != "en" {
			t.Errorf("language = %q, want en", v)
		}
		w.Write([]byte("hello world\n"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	res, err := c.Transcribe(context.Background(), []byte("audio"), "audio.mp3", "audio/mpeg")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "hello world" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotContentType == "" {
		t.Error("missing Content-Type header")
	}
}

func TestTranscribeRetriesTransientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Transcribe(context.Background(), []byte("audio"), "a.mp3", "audio/mpeg")
	if got := apiErr(t, err).Code; got != CodeServerError {
		t.Errorf("code = %s, want %s", got, CodeServerError)
	}
	if calls != 3 {
		t.Errorf("server saw %d calls, want 3", calls)
	}
}

func TestTranscribeRecoversMidRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	res, err := c.Transcribe(context.Background(), []byte("audio"), "a.mp3", "audio/mpeg")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "recovered" || res.Attempts != 3 {
		t.Errorf("got text=%q attempts=%d", res.Text, res.Attempts)
	}
}

func TestTranscribePermanentErrorsFailFast(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode ErrorCode
	}{
		{"unauthorized", http.StatusUnauthorized, "invalid api key", CodeAuthError},
		{"forbidden", http.StatusForbidden, "denied", CodeAuthError},
		{"payload too large", http.StatusRequestEntityTooLarge, "too big", CodeFileTooLarge},
		{"unsupported format", http.StatusBadRequest, "Unsupported file format", CodeUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				http.Error(w, tt.body, tt.status)
			}))
			defer srv.Close()

			c := newTestClient(srv.URL)
			_, err := c.Transcribe(context.Background(), []byte("audio"), "a.mp3", "audio/mpeg")
			ae := apiErr(t, err)
			if ae.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", ae.Code, tt.wantCode)
			}
			if !ae.Permanent() {
				t.Error("error should be permanent")
			}
			if calls != 1 {
				t.Errorf("server saw %d calls, want exactly 1", calls)
			}
		})
	}
}

func TestTranscribeRejectsOversizedAudioLocally(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	big := make([]byte, maxUploadSize+1)
	_, err := c.Transcribe(context.Background(), big, "a.mp3", "audio/mpeg")
	if got := apiErr(t, err).Code; got != CodeFileTooLarge {
		t.Errorf("code = %s, want %s", got, CodeFileTooLarge)
	}
	if calls != 0 {
		t.Errorf("oversized audio was uploaded anyway (%d calls)", calls)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   ErrorCode
	}{
		{"401", 401, "", CodeAuthError},
		{"403", 403, "", CodeAuthError},
		{"429", 429, "slow down", CodeRateLimited},
		{"413", 413, "", CodeFileTooLarge},
		{"500", 500, "", CodeServerError},
		{"503", 503, "", CodeServerError},
		{"auth wins over 4xx body", 401, "unsupported format", CodeAuthError},
		{"format message on 400", 400, "file format not supported", CodeUnsupportedFormat},
		{"decode message on 422", 422, "audio could not be decoded", CodeUnsupportedFormat},
		{"408", 408, "", CodeTimeout},
		{"unclassified 400", 400, "something odd", CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyStatus(tt.status, tt.body).Code; got != tt.want {
				t.Errorf("classifyStatus(%d, %q) = %s, want %s", tt.status, tt.body, got, tt.want)
			}
		})
	}
}

func TestClassifyTransport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"context deadline", context.DeadlineExceeded, CodeTimeout},
		{"connection reset", errors.New("read tcp: connection reset by peer"), CodeTimeout},
		{"connection refused", errors.New("dial tcp: connection refused"), CodeTimeout},
		{"other", errors.New("mystery failure"), CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyTransport(tt.err).Code; got != tt.want {
				t.Errorf("classifyTransport(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestBackoffDelay(t *testing.T) {
	base := time.Second
	max := 10 * time.Second
	for n := 0; n < 8; n++ {
		expected := base << uint(n)
		if expected > max || expected <= 0 {
			expected = max
		}
		for i := 0; i < 50; i++ {
			d := backoffDelay(n, base, max)
			lo := expected - expected/5
			hi := expected + expected/5
			if d < lo || d > hi {
				t.Fatalf("backoffDelay(%d) = %s, want within [%s, %s]", n, d, lo, hi)
			}
		}
	}
}

func TestBackoffDelayNonDecreasingInExpectation(t *testing.T) {
	base := time.Second
	max := 10 * time.Second
	prev := time.Duration(0)
	for n := 0; n < 6; n++ {
		expected := base << uint(n)
		if expected > max {
			expected = max
		}
		if expected < prev {
			t.Fatalf("expected delay decreased at attempt %d", n)
		}
		prev = expected
	}
}
