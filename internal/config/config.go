package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	CORSOrigins []string
	MaxBodySize int64

	// Cache
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	CacheDBPath    string
	CacheNamespace string
	CacheTTL       time.Duration

	// Rate limiting
	RateLimit  int
	RateWindow time.Duration

	// Audio extraction
	YTDLPPath      string
	AudioFormat    string
	AudioQuality   string
	ExtractTimeout time.Duration
	TempDir        string

	// Transcription
	WhisperURL          string
	WhisperAPIKey       string
	WhisperModel        string
	WhisperLanguage     string
	TranscribeAttempts  int
	TranscribeBaseDelay time.Duration
	TranscribeMaxDelay  time.Duration
}

func Load() *Config {
	// Optional .env for local development; real env vars win.
	godotenv.Load()

	port, _ := strconv.Atoi(getEnv("PORT", "8080"))

	apiKey := os.Getenv("WHISPER_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		log.Println("WARNING: WHISPER_API_KEY not set; transcription will fail with auth errors unless the endpoint is unauthenticated")
	}

	// CORS origins: comma-separated list or "*" (default)
	corsOrigins := []string{"*"}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		corsOrigins = make([]string, 0, len(origins))
		for _, o := range origins {
			o = strings.TrimSpace(o)
			if o != "" {
				corsOrigins = append(corsOrigins, o)
			}
		}
	}

	return &Config{
		Port:        port,
		CORSOrigins: corsOrigins,
		MaxBodySize: getEnvInt64("MAX_BODY_SIZE", 16*1024),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		CacheDBPath:    getEnv("CACHE_DB_PATH", "/data/tubescribe.db"),
		CacheNamespace: getEnv("CACHE_NAMESPACE", "tubescribe"),
		CacheTTL:       getEnvDuration("CACHE_TTL", 24*time.Hour),

		RateLimit:  getEnvInt("RATE_LIMIT", 10),
		RateWindow: getEnvDuration("RATE_WINDOW", 60*time.Second),

		YTDLPPath:      getEnv("YTDLP_PATH", "yt-dlp"),
		AudioFormat:    getEnv("AUDIO_FORMAT", "mp3"),
		AudioQuality:   getEnv("AUDIO_QUALITY", "9"),
		ExtractTimeout: getEnvDuration("EXTRACT_TIMEOUT", 300*time.Second),
		TempDir:        getEnv("TEMP_DIR", os.TempDir()),

		WhisperURL:          getEnv("WHISPER_URL", "https://api.openai.com/v1/audio/transcriptions"),
		WhisperAPIKey:       apiKey,
		WhisperModel:        getEnv("WHISPER_MODEL", "whisper-1"),
		WhisperLanguage:     getEnv("WHISPER_LANGUAGE", "en"),
		TranscribeAttempts:  getEnvInt("TRANSCRIBE_ATTEMPTS", 3),
		TranscribeBaseDelay: getEnvDuration("TRANSCRIBE_BASE_DELAY", time.Second),
		TranscribeMaxDelay:  getEnvDuration("TRANSCRIBE_MAX_DELAY", 10*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("WARNING: invalid %s=%q, using %d", key, v, fallback)
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		log.Printf("WARNING: invalid %s=%q, using %d", key, v, fallback)
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "24h") or bare seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	log.Printf("WARNING: invalid %s=%q, using %s", key, v, fallback)
	return fallback
}
