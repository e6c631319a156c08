package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Env            string
	Port           string
	MountPath      string
	MaxUploadBytes int64

	LogLevel  string
	LogFormat string
	SentryDSN string

	// OCR
	OCREngine          string
	TesseractLangs     []string
	YCOAuthToken       string
	YCFolderID         string
	GCVCredentialsFile string

	// LLM
	LLMProvider      string
	LLMModel         string
	OllamaHost       string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	GeminiAPIKey     string
	Temperature      float64
	NumCtx           int
	Stream           bool
	SystemPromptFile string

	// Telegram
	TelegramBotToken string
	WebhookURL       string
}

const (
	DefaultPort           = "8000"
	DefaultMountPath      = "/prescriptions"
	DefaultMaxUploadBytes = 20 << 20
	DefaultTemperature    = 0.1
	DefaultNumCtx         = 4096
)

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		logrus.Debug("config: loaded .env")
	}

	return &Config{
		Env:            getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", DefaultPort),
		MountPath:      normalizeMount(getEnv("MOUNT_PATH", DefaultMountPath)),
		MaxUploadBytes: getInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		SentryDSN: os.Getenv("SENTRY_DSN"),

		OCREngine:          strings.ToLower(getEnv("OCR_ENGINE", "tesseract")),
		TesseractLangs:     splitList(getEnv("TESSERACT_LANGS", "eng")),
		YCOAuthToken:       os.Getenv("YC_OAUTH_TOKEN"),
		YCFolderID:         os.Getenv("YC_FOLDER_ID"),
		GCVCredentialsFile: os.Getenv("GCV_CREDENTIALS_FILE"),

		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", "ollama")),
		LLMModel:         os.Getenv("LLM_MODEL"),
		OllamaHost:       getEnv("OLLAMA_HOST", "http://127.0.0.1:11434"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		Temperature:      getFloat("LLM_TEMPERATURE", DefaultTemperature),
		NumCtx:           getInt("LLM_NUM_CTX", DefaultNumCtx),
		Stream:           getBool("LLM_STREAM", false),
		SystemPromptFile: os.Getenv("SYSTEM_PROMPT_FILE"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		WebhookURL:       os.Getenv("WEBHOOK_URL"),
	}
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.Warnf("config: bad %s=%q, using %d", k, v, def)
		return def
	}
	return n
}

func getInt64(k string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		logrus.Warnf("config: bad %s=%q, using %d", k, v, def)
		return def
	}
	return n
}

func getFloat(k string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logrus.Warnf("config: bad %s=%q, using %v", k, v, def)
		return def
	}
	return f
}

func getBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logrus.Warnf("config: bad %s=%q, using %v", k, v, def)
		return def
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '+' || r == ' ' }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeMount turns "prescriptions/" or "/prescriptions/" into
// "/prescriptions"; the root mount becomes "".
func normalizeMount(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}
