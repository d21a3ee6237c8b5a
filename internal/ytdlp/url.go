package ytdlp

import "regexp"

// YouTube video ids are exactly 11 characters of this alphabet.
var (
	watchRe = regexp.MustCompile(`^https?://(?:www\.|m\.)?youtube\.com/watch\?v=([A-Za-z0-9_-]{11})(?:&\S*)?$`)
	shortRe = regexp.MustCompile(`^https?://youtu\.be/([A-Za-z0-9_-]{11})(?:\?\S*)?$`)
)

// ValidateURL reports whether the URL matches a recognized YouTube form:
// the canonical watch URL or the youtu.be short link. Trailing query
// parameters are ignored.
func ValidateURL(rawURL string) bool {
	_, ok := VideoID(rawURL)
	return ok
}

// VideoID extracts the 11-character video id from either recognized URL
// form. Both forms of the same video yield the same id.
func VideoID(rawURL string) (string, bool) {
	if m := watchRe.FindStringSubmatch(rawURL); m != nil {
		return m[1], true
	}
	if m := shortRe.FindStringSubmatch(rawURL); m != nil {
		return m[1], true
	}
	return "", false
}

// CanonicalURL rebuilds the watch-form URL from a validated video id. The
// extractor hands this to yt-dlp instead of the caller-supplied string, so
// the subprocess never sees untrusted input.
func CanonicalURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
