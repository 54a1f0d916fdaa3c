package config

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfighcl"
)

// Хранить в файле мы будем в формате hcl.
// Также указываем ключ для переменных окружения
type Config struct {
	DatabaseDriver string `hcl:"database_driver" env:"DATABASE_DRIVER" default:"sqlite"`
	DatabaseDSN    string `hcl:"database_dsn" env:"DATABASE_DSN" default:"crypto-intel.db"`

	// Без токена бот не запускается, остальное работает
	TelegramBotToken    string `hcl:"telegram_bot_token" env:"TELEGRAM_BOT_TOKEN"`
	TelegramAdminChatID int64  `hcl:"telegram_admin_chat_id" env:"TELEGRAM_ADMIN_CHAT_ID"`
	// Канал для публикации проанализированных статей, 0 выключает публикацию
	TelegramChannelID    int64         `hcl:"telegram_channel_id" env:"TELEGRAM_CHANNEL_ID"`
	NotificationInterval time.Duration `hcl:"notification_interval" env:"NOTIFICATION_INTERVAL" default:"1m"`

	HTTPAddr string `hcl:"http_addr" env:"HTTP_ADDR" default:":8080"`

	FetchInterval    time.Duration `hcl:"fetch_interval" env:"FETCH_INTERVAL" default:"10m"`
	FetchCutoff      string        `hcl:"fetch_cutoff" env:"FETCH_CUTOFF" default:"24h"`
	FetchConcurrency int           `hcl:"fetch_concurrency" env:"FETCH_CONCURRENCY" default:"8"`
	FetchTimeout     time.Duration `hcl:"fetch_timeout" env:"FETCH_TIMEOUT" default:"8s"`
	FetchMinBodySize int           `hcl:"fetch_min_body_size" env:"FETCH_MIN_BODY_SIZE" default:"50"`
	FetchUserAgent   string        `hcl:"fetch_user_agent" env:"FETCH_USER_AGENT"`
	// Прокси в формате name|template[|json_field], пробуются по порядку после прямого запроса
	FetchProxies   []string `hcl:"fetch_proxies" env:"FETCH_PROXIES" default:"allorigins|https://api.allorigins.win/get?url={url}|contents,codetabs|https://api.codetabs.com/v1/proxy?quest={url},corsproxy|https://corsproxy.io/?{url},thingproxy|https://thingproxy.freeboard.io/fetch/{raw}"`
	FilterKeywords []string `hcl:"filter_keywords" env:"FILTER_KEYWORDS"`

	AnalyzerProvider string `hcl:"analyzer_provider" env:"ANALYZER_PROVIDER" default:"openai"`
	OpenAIKey        string `hcl:"openai_key" env:"OPENAI_KEY"`
	OpenAIModel      string `hcl:"openai_model" env:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAIBaseURL    string `hcl:"openai_base_url" env:"OPENAI_BASE_URL"`
	AnthropicKey     string `hcl:"anthropic_key" env:"ANTHROPIC_KEY"`
	AnthropicModel   string `hcl:"anthropic_model" env:"ANTHROPIC_MODEL" default:"claude-haiku-4-5"`
	AnalyzerPrompt   string `hcl:"analyzer_prompt" env:"ANALYZER_PROMPT"`
	AnalyzerRPM      int    `hcl:"analyzer_rpm" env:"ANALYZER_RPM" default:"12"`

	EnrichBatchSize      int           `hcl:"enrich_batch_size" env:"ENRICH_BATCH_SIZE" default:"3"`
	EnrichCooldown       time.Duration `hcl:"enrich_cooldown" env:"ENRICH_COOLDOWN" default:"4500ms"`
	EnrichMaxRetries     int           `hcl:"enrich_max_retries" env:"ENRICH_MAX_RETRIES" default:"5"`
	EnrichInitialBackoff time.Duration `hcl:"enrich_initial_backoff" env:"ENRICH_INITIAL_BACKOFF" default:"5s"`
	EnrichMinBackoff     time.Duration `hcl:"enrich_min_backoff" env:"ENRICH_MIN_BACKOFF" default:"10s"`
	EnrichQualityFloor   int           `hcl:"enrich_quality_floor" env:"ENRICH_QUALITY_FLOOR" default:"30"`
	// 0 выключает периодический запуск обогащения
	EnrichInterval time.Duration `hcl:"enrich_interval" env:"ENRICH_INTERVAL" default:"0s"`

	RetentionDays     int           `hcl:"retention_days" env:"RETENTION_DAYS" default:"30"`
	RetentionInterval time.Duration `hcl:"retention_interval" env:"RETENTION_INTERVAL" default:"24h"`

	SourcesFile string `hcl:"sources_file" env:"SOURCES_FILE" default:"sources.yaml"`
	LogLevel    string `hcl:"log_level" env:"LOG_LEVEL" default:"info"`
}

// cfg инстанс конфига, в который мы будем читать данные.
// once гарантирует, что конфиг читается не более одного раза, откуда бы его ни запросили
var (
	cfg  Config
	once sync.Once
)

// Get возвращает конфиг из ./config.hcl и ./config.local.hcl с переопределением из окружения
func Get() Config {
	once.Do(func() {
		loaded, err := Load("./config.hcl", "./config.local.hcl")
		if err != nil {
			slog.Error("failed to load config", "error", err)
		}
		cfg = loaded
	})

	return cfg
}

// Load читает конфиг из указанных файлов, отсутствующие файлы пропускаются
func Load(files ...string) (Config, error) {
	var c Config

	loader := aconfig.LoaderFor(&c, aconfig.Config{
		// Флаги разбирает cobra
		SkipFlags: true,
		// Префикс для переменных окружения, чтобы не пересечься с системными
		EnvPrefix: "CRYPTOINTEL",
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".hcl": aconfighcl.New(),
		},
	})

	if err := loader.Load(); err != nil {
		return c, err
	}

	return c, nil
}
