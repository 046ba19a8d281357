package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pdf-chat/api/internal/ocr"
)

// Config: настройки всех бинарников. Порядок: значения по умолчанию,
// затем YAML из PDFCHAT_CONFIG, затем переменные окружения.
type Config struct {
	Port string `yaml:"port"`

	OCRBaseURL      string        `yaml:"ocr_api_base_url"`
	OCRBypassHeader string        `yaml:"ocr_bypass_header"`
	OCRBypassValue  string        `yaml:"ocr_bypass_value"`
	OCROrigin       string        `yaml:"ocr_origin"`
	OCRTimeout      time.Duration `yaml:"ocr_timeout"`
	OCRModelSize    string        `yaml:"ocr_model_size"`
	OCRTaskType     string        `yaml:"ocr_task_type"`

	TelegramBotToken string `yaml:"telegram_bot_token"`
	WebhookURL       string `yaml:"webhook_url"`

	DatabaseURL string        `yaml:"database_url"`
	CacheMaxAge time.Duration `yaml:"cache_max_age"`

	ChatMinDelay time.Duration `yaml:"chat_min_delay"`
	ChatMaxDelay time.Duration `yaml:"chat_max_delay"`
}

const (
	DefaultOCRBaseURL = "http://localhost:8000"
	configEnv         = "PDFCHAT_CONFIG"
)

func Defaults() Config {
	return Config{
		Port:            "8000",
		OCRBaseURL:      DefaultOCRBaseURL,
		OCRBypassHeader: ocr.DefaultBypassHeader,
		OCRBypassValue:  ocr.DefaultBypassValue,
		ChatMinDelay:    800 * time.Millisecond,
		ChatMaxDelay:    1600 * time.Millisecond,
	}
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load читает конфиг; ошибка конфигурации фатальна.
func Load() *Config {
	cfg, err := LoadFrom(os.Getenv(configEnv), os.LookupEnv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// LoadBot: как Load, но токен бота обязателен.
func LoadBot() *Config {
	cfg := Load()
	if cfg.TelegramBotToken == "" {
		cfg.TelegramBotToken = mustEnv("TELEGRAM_BOT_TOKEN")
	}
	return cfg
}

// LoadFrom собирает конфиг из файла path (пусто: без файла) и окружения lookup.
func LoadFrom(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	str := func(k string, dst *string) {
		if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var derr error
	dur := func(k string, dst *time.Duration) {
		v, ok := lookup(k)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			if derr == nil {
				derr = fmt.Errorf("%s: %w", k, err)
			}
			return
		}
		*dst = d
	}

	str("PORT", &cfg.Port)
	str("OCR_API_BASE_URL", &cfg.OCRBaseURL)
	str("OCR_BYPASS_HEADER", &cfg.OCRBypassHeader)
	str("OCR_BYPASS_VALUE", &cfg.OCRBypassValue)
	str("OCR_ORIGIN", &cfg.OCROrigin)
	dur("OCR_TIMEOUT", &cfg.OCRTimeout)
	str("OCR_MODEL_SIZE", &cfg.OCRModelSize)
	str("OCR_TASK_TYPE", &cfg.OCRTaskType)
	str("TELEGRAM_BOT_TOKEN", &cfg.TelegramBotToken)
	str("WEBHOOK_URL", &cfg.WebhookURL)
	str("DATABASE_URL", &cfg.DatabaseURL)
	dur("CACHE_MAX_AGE", &cfg.CacheMaxAge)
	dur("CHAT_MIN_DELAY", &cfg.ChatMinDelay)
	dur("CHAT_MAX_DELAY", &cfg.ChatMaxDelay)
	if derr != nil {
		return nil, derr
	}

	if cfg.ChatMaxDelay < cfg.ChatMinDelay {
		return nil, fmt.Errorf("chat delay: max %v < min %v", cfg.ChatMaxDelay, cfg.ChatMinDelay)
	}
	if _, err := cfg.DefaultOptions(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultOptions: опции OCR по умолчанию для новых сессий.
func (c *Config) DefaultOptions() (ocr.Options, error) {
	var o ocr.Options
	if c.OCRModelSize != "" {
		m, ok := ocr.ParseModelSize(c.OCRModelSize)
		if !ok {
			return o, fmt.Errorf("unknown OCR model size %q", c.OCRModelSize)
		}
		o.ModelSize = m
	}
	if c.OCRTaskType != "" {
		t, ok := ocr.ParseTaskType(c.OCRTaskType)
		if !ok {
			return o, fmt.Errorf("unknown OCR task type %q", c.OCRTaskType)
		}
		o.TaskType = t
	}
	return o, nil
}

// OCRClient собирает клиента удалённого OCR по настройкам.
func (c *Config) OCRClient() *ocr.Client {
	cl := ocr.New(c.OCRBaseURL, c.OCRTimeout)
	cl.BypassHeader = c.OCRBypassHeader
	cl.BypassValue = c.OCRBypassValue
	cl.Origin = c.OCROrigin
	return cl
}

// ResolveDSN берёт DATABASE_URL или собирает DSN из POSTGRES_* / PG*. Пустая строка, если БД не настроена.
func (c *Config) ResolveDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	host := os.Getenv("PGHOST")
	if pass == "" && host == "" {
		return ""
	}
	return BuildDSN(
		getEnv("POSTGRES_USER", "pdfchat"),
		pass,
		getEnv("PGHOST", "db"),
		getEnv("PGPORT", "5432"),
		getEnv("POSTGRES_DB", "pdfchat"),
	)
}
