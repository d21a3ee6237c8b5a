package whisper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const defaultTranscriptionURL = "https://api.openai.com/v1/audio/transcriptions"
const maxUploadSize = 25 * 1024 * 1024 // API rejects larger files anyway

// Result is a successful transcription.
type Result struct {
	Text     string
	Elapsed  time.Duration
	Attempts int
}

// Transcriber converts raw audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, mimeType string) (*Result, error)
}

// ClientOptions configures a Client. Zero values fall back to defaults.
type ClientOptions struct {
	Endpoint    string
	APIKey      string
	Model       string // default "whisper-1"
	Language    string // default "en"
	MaxAttempts int    // default 3
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	HTTPTimeout time.Duration
}

// Client calls an OpenAI-compatible transcription endpoint. Transient
// failures (rate limit, 5xx, timeouts) are retried with capped exponential
// backoff and jitter; permanent failures return immediately.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	language   string
	httpClient *http.Client

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func NewClient(opts ClientOptions) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultTranscriptionURL
	}
	if opts.Model == "" {
		opts.Model = "whisper-1"
	}
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 10 * time.Second
	}
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 10 * time.Minute
	}
	return &Client{
		endpoint:    opts.Endpoint,
		apiKey:      opts.APIKey,
		model:       opts.Model,
		language:    opts.Language,
		httpClient:  &http.Client{Timeout: opts.HTTPTimeout},
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		maxDelay:    opts.MaxDelay,
	}
}

// Transcribe uploads the audio and returns the transcript text. On failure
// the returned error is always an *APIError carrying the classified code of
// the last attempt.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename, mimeType string) (*Result, error) {
	if len(audio) > maxUploadSize {
		return nil, &APIError{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("audio is %d bytes, limit is %d", len(audio), maxUploadSize),
		}
	}

	start := time.Now()
	var lastErr *APIError
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt-1, c.baseDelay, c.maxDelay)
			log.Printf("[whisper] attempt %d failed (%s), retrying in %s", attempt, lastErr.Code, delay.Round(time.Millisecond))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, classifyTransport(ctx.Err())
			}
		}

		text, aerr := c.doRequest(ctx, audio, filename, mimeType)
		if aerr == nil {
			return &Result{Text: text, Elapsed: time.Since(start), Attempts: attempt + 1}, nil
		}
		lastErr = aerr
		if aerr.Permanent() {
			log.Printf("[whisper] permanent failure (%s), not retrying", aerr.Code)
			return nil, aerr
		}
	}
	log.Printf("[whisper] giving up after %d attempts: %s", c.maxAttempts, lastErr.Code)
	return nil, lastErr
}

// doRequest performs a single upload and classifies any failure.
func (c *Client) doRequest(ctx context.Context, audio []byte, filename, mimeType string) (string, *APIError) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", mimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", &APIError{Code: CodeUnknown, Message: err.Error()}
	}
	if _, err := part.Write(audio); err != nil {
		return "", &APIError{Code: CodeUnknown, Message: err.Error()}
	}

	writer.WriteField("model", c.model)
	writer.WriteField("language", c.language)
	writer.WriteField("temperature", "0")
	writer.WriteField("response_format", "text")
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, &buf)
	if err != nil {
		return "", &APIError{Code: CodeUnknown, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransport(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyStatus(resp.StatusCode, string(body))
	}

	return strings.TrimSpace(string(body)), nil
}

// backoffDelay computes min(base*2^n, max) with symmetric jitter of up to
// ±20%, n being the 0-indexed attempt that just failed.
func backoffDelay(n int, base, max time.Duration) time.Duration {
	d := base << uint(n)
	if d <= 0 || d > max {
		d = max
	}
	jitter := time.Duration((rand.Float64()*0.4 - 0.2) * float64(d))
	return d + jitter
}
