package ytdlp

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// recognized hosts, used to tell a malformed YouTube URL apart from a URL
// that is not YouTube at all
var hostRe = regexp.MustCompile(`^https?://(?:(?:www\.|m\.)?youtube\.com/watch\?|youtu\.be/)`)

// audioFormats maps supported target formats to upload MIME types.
var audioFormats = map[string]string{
	"mp3":  "audio/mpeg",
	"m4a":  "audio/mp4",
	"opus": "audio/ogg",
	"wav":  "audio/wav",
}

const maxStderrDetail = 500

// Options configures an Extractor. Zero values fall back to defaults.
type Options struct {
	BinPath string        // yt-dlp binary, default "yt-dlp"
	Format  string        // mp3 (default), m4a, opus, wav
	Quality string        // yt-dlp audio quality tier, default "9" (smallest)
	Timeout time.Duration // hard wall-clock limit per job, default 300s
	TempDir string        // default os.TempDir()
}

// Extractor downloads the audio track of a YouTube video via yt-dlp. It
// tracks every temp file it produces in a pending-cleanup registry so that
// files can be swept on shutdown if a caller never released them.
type Extractor struct {
	binPath string
	format  string
	quality string
	timeout time.Duration
	tempDir string

	mu      sync.Mutex
	pending map[string]struct{}
}

// Result describes one successfully extracted audio file. The file remains
// owned by the Extractor: callers read it, then release it with CleanupFile.
type Result struct {
	VideoID  string
	Path     string
	Format   string
	MIMEType string
	Size     int64
	Elapsed  time.Duration
}

func NewExtractor(opts Options) *Extractor {
	if opts.BinPath == "" {
		opts.BinPath = "yt-dlp"
	}
	if _, ok := audioFormats[opts.Format]; !ok {
		opts.Format = "mp3"
	}
	if opts.Quality == "" {
		opts.Quality = "9"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 300 * time.Second
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &Extractor{
		binPath: opts.BinPath,
		format:  opts.Format,
		quality: opts.Quality,
		timeout: opts.Timeout,
		tempDir: opts.TempDir,
		pending: make(map[string]struct{}),
	}
}

// ExtractAudio runs one extraction job end-to-end: validate, derive the
// video id, invoke yt-dlp under the timeout, and verify the output exists.
// No subprocess is spawned for input that fails validation.
func (e *Extractor) ExtractAudio(ctx context.Context, rawURL string) (*Result, error) {
	id, ok := VideoID(rawURL)
	if !ok {
		if hostRe.MatchString(rawURL) {
			return nil, &ExtractError{Code: CodeIdentifierMissing, Detail: "no 11-character video id in URL"}
		}
		return nil, &ExtractError{Code: CodeInvalidURL, Detail: "not a recognized YouTube URL"}
	}

	// Fresh random suffix per job so concurrent extractions of the same
	// video never collide on the output path.
	outPath := filepath.Join(e.tempDir, fmt.Sprintf("tubescribe-%s-%s.%s", id, uuid.NewString(), e.format))

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	// Argv vector, no shell. The URL is rebuilt from the validated id and
	// "--" stops option parsing, so nothing caller-controlled reaches
	// yt-dlp's interpreter.
	cmd := exec.CommandContext(ctx, e.binPath,
		"-x",
		"--audio-format", e.format,
		"--audio-quality", e.quality,
		"--no-playlist",
		"--no-progress",
		"--no-warnings",
		"-q",
		"-o", outPath,
		"--", CanonicalURL(id),
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	log.Printf("[ytdlp] extracting audio: id=%s format=%s out=%s", id, e.format, filepath.Base(outPath))

	err := cmd.Run()
	elapsed := time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		e.removePartials(outPath)
		return nil, &ExtractError{Code: CodeTimeout, Detail: fmt.Sprintf("yt-dlp exceeded %s", e.timeout)}
	}
	if err != nil {
		e.removePartials(outPath)
		return nil, &ExtractError{Code: CodeProcessError, Detail: trimDetail(stderr.String())}
	}

	// yt-dlp can exit 0 without producing output (removed or
	// region-restricted videos). That is a distinct failure.
	info, err := os.Stat(outPath)
	if err != nil {
		e.removePartials(outPath)
		return nil, &ExtractError{Code: CodeOutputMissing, Detail: "yt-dlp exited 0 but produced no output file"}
	}

	e.register(outPath)
	log.Printf("[ytdlp] extraction complete: id=%s size=%d elapsed=%s", id, info.Size(), elapsed.Round(time.Millisecond))

	return &Result{
		VideoID:  id,
		Path:     outPath,
		Format:   e.format,
		MIMEType: audioFormats[e.format],
		Size:     info.Size(),
		Elapsed:  elapsed,
	}, nil
}

// CleanupFile deletes an extracted file and drops it from the registry.
// It is idempotent: a second call for the same path returns false.
func (e *Extractor) CleanupFile(path string) bool {
	e.mu.Lock()
	delete(e.pending, path)
	e.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[ytdlp] cleanup failed for %s: %v", path, err)
		}
		return false
	}
	return true
}

// Sweep deletes every file still in the pending registry. It is the
// shutdown safety net; the orchestrator's explicit CleanupFile call is the
// primary path.
func (e *Extractor) Sweep() {
	e.mu.Lock()
	paths := make([]string, 0, len(e.pending))
	for p := range e.pending {
		paths = append(paths, p)
	}
	e.pending = make(map[string]struct{})
	e.mu.Unlock()

	for _, p := range paths {
		if err := os.Remove(p); err == nil {
			log.Printf("[ytdlp] swept leftover temp file: %s", p)
		}
	}
}

// PendingCount reports how many extracted files have not been released yet.
func (e *Extractor) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *Extractor) register(path string) {
	e.mu.Lock()
	e.pending[path] = struct{}{}
	e.mu.Unlock()
}

// removePartials clears the output path and the .part file yt-dlp leaves
// behind when interrupted mid-download.
func (e *Extractor) removePartials(outPath string) {
	os.Remove(outPath)
	os.Remove(outPath + ".part")
}

func trimDetail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderrDetail {
		s = s[:maxStderrDetail] + "..."
	}
	if s == "" {
		s = "yt-dlp exited with a non-zero status"
	}
	return s
}
