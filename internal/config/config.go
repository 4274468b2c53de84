// 환경변수 기반 설정 로딩
// .env 파일이 있으면 먼저 읽고(godotenv), 이미 설정된 환경변수는 덮어쓰지 않음

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Postgres   PostgresConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Metrics    MetricsConfig
	Escalation EscalationConfig
	Notify     NotifyConfig
	MailQueue  MailQueueConfig
	Slack      SlackConfig
	Log        LogConfig
}

type ServerConfig struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type AuthConfig struct {
	JWTSecret string
}

type RateLimitConfig struct {
	Enabled       bool
	MaxPerWindow  int
	Window        time.Duration
	SweepInterval time.Duration
}

type MetricsConfig struct {
	SlowOperation time.Duration
}

type EscalationConfig struct {
	// 비어있으면 기본 규칙만 사용
	RulesFile string
}

type NotifyConfig struct {
	ElevatedRoles        []string
	ActionBaseURL        string
	EmailSubjectTemplate string
	EmailBodyTemplate    string
}

// MailQueueConfig - 외부 mail worker로 email job을 넘기는 큐
// Driver: none | redis | nats
type MailQueueConfig struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	NATSURL       string
	NATSSubject   string
	NATSStream    string
}

type SlackConfig struct {
	BotToken    string
	ChannelID   string
	FrontendURL string
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	defaultEmailSubjectTemplate = "[{{alert.severity}}] {{alert.title}}"
	defaultEmailBodyTemplate    = "{{alert.title}}\n\n{{alert.message}}\n\nType: {{alert.type}}\nOccurrences: {{alert.occurrences}}\nFirst seen: {{alert.created_at}}\n\n{{alert.action_url}}"
)

func Load() Config {
	// .env가 없어도 무시
	_ = godotenv.Load()

	return Config{
		Server: ServerConfig{
			Addr:            getenv("HTTP_ADDR", ":8080"),
			AllowedOrigins:  getenvList("CORS_ALLOWED_ORIGINS", nil),
			ShutdownTimeout: getenvDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("ALERT_RATE_LIMIT_ENABLED", true),
			MaxPerWindow:  getenvInt("ALERT_RATE_LIMIT_MAX", 5),
			Window:        time.Duration(getenvInt("ALERT_RATE_LIMIT_WINDOW_MS", 60000)) * time.Millisecond,
			SweepInterval: getenvDuration("ALERT_RATE_LIMIT_SWEEP_INTERVAL", 5*time.Minute),
		},
		Metrics: MetricsConfig{
			SlowOperation: time.Duration(getenvInt("SLOW_OPERATION_MS", 500)) * time.Millisecond,
		},
		Escalation: EscalationConfig{
			RulesFile: os.Getenv("ESCALATION_RULES_FILE"),
		},
		Notify: NotifyConfig{
			ElevatedRoles:        getenvList("NOTIFY_ELEVATED_ROLES", []string{"owner", "admin", "operator"}),
			ActionBaseURL:        strings.TrimRight(getenv("NOTIFY_ACTION_BASE_URL", "http://localhost:3000"), "/"),
			EmailSubjectTemplate: getenv("NOTIFY_EMAIL_SUBJECT_TEMPLATE", defaultEmailSubjectTemplate),
			EmailBodyTemplate:    getenv("NOTIFY_EMAIL_BODY_TEMPLATE", defaultEmailBodyTemplate),
		},
		MailQueue: MailQueueConfig{
			Driver:        strings.ToLower(getenv("MAIL_QUEUE_DRIVER", "none")),
			RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getenvInt("REDIS_DB", 0),
			RedisKey:      getenv("MAIL_QUEUE_REDIS_KEY", "alertcore:mail:jobs"),
			NATSURL:       getenv("NATS_URL", "nats://localhost:4222"),
			NATSSubject:   getenv("MAIL_QUEUE_NATS_SUBJECT", "alertcore.mail.jobs"),
			NATSStream:    getenv("MAIL_QUEUE_NATS_STREAM", "ALERTCORE_MAIL"),
		},
		Slack: SlackConfig{
			BotToken:    os.Getenv("SLACK_BOT_TOKEN"),
			ChannelID:   os.Getenv("SLACK_CHANNEL_ID"),
			FrontendURL: os.Getenv("FRONTEND_URL"),
		},
		Log: LogConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getenvList - 콤마 구분 목록
func getenvList(key string, fallback []string) []string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
