package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/botio91514/gym-backend/pkg/logger"
	"github.com/spf13/viper"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverMemory   = "memory"

	MailDriverSMTP = "smtp"
	MailDriverLog  = "log"
)

type Config struct {
	HTTPPort      string
	Env           string
	CORSOrigins   []string
	DB            DBConfig
	Mail          MailConfig
	Receipts      ReceiptsConfig
	Scheduler     SchedulerConfig
	Notifications NotificationsConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Telemetry     TelemetryConfig
}

type DBConfig struct {
	Driver          string
	DSN             string
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	TimeZone        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type MailConfig struct {
	Driver   string
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

type ReceiptsConfig struct {
	Dir       string
	URLPrefix string
	// PublicBaseURL prefixes receipt links in emails, e.g. https://gym.example.com.
	PublicBaseURL string
}

type SchedulerConfig struct {
	Enabled        bool
	Timezone       string
	ReminderWindow time.Duration
}

type NotificationsConfig struct {
	Async       bool
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	SendTimeout time.Duration
}

type AuthConfig struct {
	JWTSecret         string
	Issuer            string
	TokenTTL          time.Duration
	AdminEmail        string
	AdminPasswordHash string
	SkipAuth          bool
}

type RateLimitConfig struct {
	RegistrationsPerMinute int
	Burst                  int
}

type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

func Load(log logger.Logger) (Config, error) {
	env, err := newSource(log)
	if err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		HTTPPort:    env.str("HTTP_PORT", "8080"),
		Env:         env.str("ENV", "development"),
		CORSOrigins: env.list("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		DB: DBConfig{
			Driver:          strings.ToLower(env.str("DB_DRIVER", DBDriverPostgres)),
			DSN:             env.str("DB_DSN", ""),
			Host:            env.str("DB_HOST", "localhost"),
			Port:            env.str("DB_PORT", "5432"),
			User:            env.str("DB_USER", "postgres"),
			Password:        env.str("DB_PASSWORD", "postgres"),
			Name:            env.str("DB_NAME", "gym"),
			SSLMode:         env.str("DB_SSLMODE", "disable"),
			TimeZone:        env.str("DB_TIMEZONE", "UTC"),
			MaxOpenConns:    env.integer("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    env.integer("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: env.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			AutoMigrate:     env.boolean("DB_AUTO_MIGRATE", true),
		},
		Mail: MailConfig{
			Driver:   strings.ToLower(env.str("MAIL_DRIVER", MailDriverLog)),
			Host:     env.str("SMTP_HOST", "smtp.gmail.com"),
			Port:     env.integer("SMTP_PORT", 587),
			Username: env.str("EMAIL_USER", ""),
			Password: env.str("EMAIL_PASSWORD", ""),
			From:     env.str("EMAIL_FROM", ""),
			FromName: env.str("EMAIL_FROM_NAME", "Gym Membership"),
			Timeout:  env.duration("SMTP_TIMEOUT", 15*time.Second),
		},
		Receipts: ReceiptsConfig{
			Dir:           env.str("RECEIPTS_DIR", "receipts"),
			URLPrefix:     env.str("RECEIPTS_URL_PREFIX", "/receipts/"),
			PublicBaseURL: env.str("PUBLIC_BASE_URL", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:        env.boolean("SCHEDULER_ENABLED", true),
			Timezone:       env.str("SCHEDULER_TIMEZONE", "Local"),
			ReminderWindow: env.duration("REMINDER_WINDOW", 7*24*time.Hour),
		},
		Notifications: NotificationsConfig{
			Async:       env.boolean("NOTIFY_ASYNC", true),
			MaxAttempts: env.integer("NOTIFY_MAX_ATTEMPTS", 3),
			BaseDelay:   env.duration("NOTIFY_BASE_DELAY", 2*time.Second),
			Multiplier:  env.float("NOTIFY_BACKOFF_MULTIPLIER", 2),
			SendTimeout: env.duration("NOTIFY_SEND_TIMEOUT", 2*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret:         env.str("JWT_SECRET", ""),
			Issuer:            env.str("JWT_ISSUER", "gym-backend"),
			TokenTTL:          env.duration("JWT_TTL", 24*time.Hour),
			AdminEmail:        strings.ToLower(env.str("ADMIN_EMAIL", "")),
			AdminPasswordHash: env.str("ADMIN_PASSWORD_HASH", ""),
			SkipAuth:          env.boolean("AUTH_SKIP", false),
		},
		RateLimit: RateLimitConfig{
			RegistrationsPerMinute: env.integer("REGISTER_RATE_PER_MINUTE", 10),
			Burst:                  env.integer("REGISTER_RATE_BURST", 5),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: env.str("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:  env.str("OTEL_SERVICE_NAME", "gym-backend"),
		},
	}

	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.Mail.Username
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.DB.Driver {
	case DBDriverPostgres, DBDriverMemory:
	default:
		return fmt.Errorf("config: DB_DRIVER must be %q or %q", DBDriverPostgres, DBDriverMemory)
	}
	switch c.Mail.Driver {
	case MailDriverSMTP:
		if c.Mail.Username == "" || c.Mail.Password == "" {
			return errors.New("config: EMAIL_USER and EMAIL_PASSWORD are required for MAIL_DRIVER=smtp")
		}
	case MailDriverLog:
	default:
		return fmt.Errorf("config: MAIL_DRIVER must be %q or %q", MailDriverSMTP, MailDriverLog)
	}
	if c.Notifications.MaxAttempts < 1 {
		return errors.New("config: NOTIFY_MAX_ATTEMPTS must be at least 1")
	}
	if !c.Auth.SkipAuth && c.Auth.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set unless AUTH_SKIP=true")
	}
	if c.Auth.SkipAuth && c.Env == "production" {
		return errors.New("config: AUTH_SKIP must not be true when ENV=production")
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return fmt.Errorf("config: SCHEDULER_TIMEZONE: %w", err)
	}
	return nil
}

// Location resolves the scheduler timezone; "Local" is the host zone.
func (c SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c DBConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.TimeZone
}

// MigrateURL returns the DSN in URL form as the migration driver requires.
func (c DBConfig) MigrateURL() string {
	if strings.HasPrefix(c.DSN, "postgres://") || strings.HasPrefix(c.DSN, "postgresql://") {
		return c.DSN
	}
	if c.DSN != "" {
		return keywordDSNToURL(c.DSN)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}

func keywordDSNToURL(dsn string) string {
	values := map[string]string{}
	for _, field := range strings.Fields(dsn) {
		key, value, ok := strings.Cut(field, "=")
		if ok {
			values[strings.ToLower(key)] = value
		}
	}
	port := values["port"]
	if port == "" {
		port = "5432"
	}
	query := url.Values{}
	if mode := values["sslmode"]; mode != "" {
		query.Set("sslmode", mode)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(values["user"], values["password"]),
		Host:     values["host"] + ":" + port,
		Path:     "/" + values["dbname"],
		RawQuery: query.Encode(),
	}
	return u.String()
}

// source reads settings from the process environment and, beneath it, the
// nearest .env file.
type source struct {
	v *viper.Viper
}

func newSource(log logger.Logger) (source, error) {
	v := viper.New()
	v.AutomaticEnv()

	path, err := findDotEnv(dotenvFilename)
	if err != nil {
		log.Info("dotenv: no file found, using environment only")
		return source{v: v}, nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return source{}, err
	}
	log.Info("dotenv: loaded variables", "count", len(v.AllKeys()), "path", path)
	return source{v: v}, nil
}

func (s source) str(key, fallback string) string {
	if value := strings.TrimSpace(s.v.GetString(key)); value != "" {
		return value
	}
	return fallback
}

func (s source) integer(key string, fallback int) int {
	parsed, err := strconv.Atoi(s.str(key, ""))
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) float(key string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(s.str(key, ""), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) duration(key string, fallback time.Duration) time.Duration {
	parsed, err := time.ParseDuration(s.str(key, ""))
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) boolean(key string, fallback bool) bool {
	parsed, err := strconv.ParseBool(s.str(key, ""))
	if err != nil {
		return fallback
	}
	return parsed
}

func (s source) list(key string, fallback []string) []string {
	raw := s.str(key, "")
	if raw == "" {
		return fallback
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
