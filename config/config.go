package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no explicit config file is given.
const DefaultPath = "config/config.json"

// AppConfig is built once at boot and passed by value into every constructor.
// Sensitive values have no defaults and must come from the file or the environment.
type AppConfig struct {
	App       AppSection      `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Log       LogConfig       `yaml:"log"`
	Policy    PolicyConfig    `yaml:"policy"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	SES       SESConfig       `yaml:"ses"`
	Slack     SlackConfig     `yaml:"slack"`
}

// AppSection holds HTTP and auth settings.
type AppSection struct {
	Port               string   `yaml:"port"`
	JWTSecret          string   `yaml:"jwt_secret"`
	TokenTTLHours      int      `yaml:"token_ttl_hours"`
	GinMode            string   `yaml:"gin_mode"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	TLSCertFile        string   `yaml:"tls_cert_file"`
	TLSKeyFile         string   `yaml:"tls_key_file"`
	// MailTransport selects how notifications leave the process: smtp, ses or none.
	MailTransport string `yaml:"mail_transport"`
}

// DatabaseConfig selects the gorm driver. DatabaseURI wins over the split fields.
type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // mysql or sqlite
	DatabaseURI  string `yaml:"database_uri"`
	DBHost       string `yaml:"host"`
	DBPort       string `yaml:"port"`
	DBUser       string `yaml:"user"`
	DBPassword   string `yaml:"password"`
	DBName       string `yaml:"name"`
	SQLitePath   string `yaml:"sqlite_path"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig is optional. When disabled every Redis-backed helper uses its
// in-memory fallback.
type RedisConfig struct {
	Enabled       bool   `yaml:"enabled"`
	RedisHost     string `yaml:"host"`
	RedisPort     int    `yaml:"port"`
	RedisDB       int    `yaml:"db"`
	RedisPassword string `yaml:"password"`
}

// LogConfig drives the zap logger and its lumberjack file sink.
type LogConfig struct {
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	GinPath    string `yaml:"gin_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// PolicyConfig holds the process-wide work policy. Clock values use HH:MM.
type PolicyConfig struct {
	DefaultTimezone           string   `yaml:"default_timezone"`
	BusinessHoursStart        string   `yaml:"business_hours_start"`
	BusinessHoursEnd          string   `yaml:"business_hours_end"`
	ShiftStartTime            string   `yaml:"shift_start_time"`
	GraceMinutes              int      `yaml:"grace_minutes"`
	LateEscalationMinutes     int      `yaml:"late_escalation_minutes"`
	MinimumWorkHours          float64  `yaml:"minimum_work_hours"`
	DailyTargetMinutes        int      `yaml:"daily_target_minutes"`
	WorkingDays               []string `yaml:"working_days"`
	DoublePunchWindowSec      int      `yaml:"double_punch_window_sec"`
	LongOpenHours             int      `yaml:"long_open_hours"`
	ShortSessionMinutes       int      `yaml:"short_session_minutes"`
	MultipleSessionsThreshold int      `yaml:"multiple_sessions_threshold"`
	ReminderAfterHours        int      `yaml:"reminder_after_hours"`
	OrphanWindowDays          int      `yaml:"orphan_window_days"`
	AutoCloseAt               string   `yaml:"auto_close_at"`
	// ClampStuckOpenSession keeps the 480 minute substitute for open sessions
	// older than 16 hours. Nil means on.
	ClampStuckOpenSession *bool `yaml:"clamp_stuck_open_session"`
}

// SchedulerConfig sets the cadence of the reconciliation jobs. A negative
// interval disables that job.
type SchedulerConfig struct {
	Enabled                    *bool `yaml:"enabled"`
	AutoCloseIntervalSec       int   `yaml:"auto_close_interval_sec"`
	ReminderIntervalSec        int   `yaml:"reminder_interval_sec"`
	HealthCheckIntervalSec     int   `yaml:"health_check_interval_sec"`
	OrphanCleanupIntervalHours int   `yaml:"orphan_cleanup_interval_hours"`
	Concurrency                int   `yaml:"concurrency"`
	OpenPunchAlertThreshold    int   `yaml:"open_punch_alert_threshold"`
	OrphanAlertThreshold       int   `yaml:"orphan_alert_threshold"`
}

// SMTPConfig is used when MailTransport is smtp.
type SMTPConfig struct {
	SMTPHost     string `yaml:"host"`
	SMTPPort     int    `yaml:"port"`
	SMTPUsername string `yaml:"username"`
	SMTPPassword string `yaml:"password"`
	SMTPFrom     string `yaml:"from"`
	SMTPFromName string `yaml:"from_name"`
	SMTPTLS      bool   `yaml:"tls"`
}

// SESConfig is used when MailTransport is ses. Credentials come from the
// default AWS chain.
type SESConfig struct {
	Region string `yaml:"region"`
	From   string `yaml:"from"`
}

// SlackConfig powers the health-check alerts. An empty token disables Slack.
type SlackConfig struct {
	BotToken     string `yaml:"bot_token"`
	InfoChannel  string `yaml:"info_channel"`
	ErrorChannel string `yaml:"error_channel"`
}

// SchedulerEnabled reports whether the background jobs should run.
func (c AppConfig) SchedulerEnabled() bool {
	return c.Scheduler.Enabled == nil || *c.Scheduler.Enabled
}

// Clamp reports the effective stuck-open compatibility flag.
func (p PolicyConfig) Clamp() bool {
	return p.ClampStuckOpenSession == nil || *p.ClampStuckOpenSession
}

// Load reads the configuration. Precedence: file (JSON or YAML by extension)
// -> defaults -> environment overrides. A missing file is not an error.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	if path == "" {
		path = getEnv("CONFIG_PATH", DefaultPath)
	}
	if err := loadFile(path, &cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects values that would make the process misbehave. Work
// policy clock strings are checked again when the engine policy is built.
func (c AppConfig) Validate() error {
	var errs []error
	if c.App.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	switch c.App.MailTransport {
	case "", "none", "smtp", "ses":
	default:
		errs = append(errs, fmt.Errorf("unsupported mail transport %q", c.App.MailTransport))
	}
	if _, err := time.LoadLocation(c.Policy.DefaultTimezone); err != nil {
		errs = append(errs, fmt.Errorf("default timezone %q: %w", c.Policy.DefaultTimezone, err))
	}
	if c.Policy.DailyTargetMinutes < 0 || c.Policy.GraceMinutes < 0 || c.Policy.MinimumWorkHours < 0 {
		errs = append(errs, errors.New("policy thresholds must not be negative"))
	}
	return errors.Join(errs...)
}

// loadFile decodes path into out. Missing files are ignored; invalid content
// is not. JSON files go through the YAML decoder so both formats share the
// yaml struct tags.
func loadFile(path string, out *AppConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse %s config %s: %w", format, path, err)
	}
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.App.Port == "" {
		c.App.Port = "8080"
	}
	if c.App.GinMode == "" {
		c.App.GinMode = "release"
	}
	if c.App.TokenTTLHours == 0 {
		c.App.TokenTTLHours = 24
	}
	if c.App.RateLimitPerMinute == 0 {
		c.App.RateLimitPerMinute = 60
	}
	if len(c.App.AllowedOrigins) == 0 {
		c.App.AllowedOrigins = []string{"*"}
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/punchclock.db"
	}
	if c.Database.DBHost == "" {
		c.Database.DBHost = "127.0.0.1"
	}
	if c.Database.DBPort == "" {
		c.Database.DBPort = "3306"
	}
	if c.Database.DBUser == "" {
		c.Database.DBUser = "root"
	}
	if c.Database.DBName == "" {
		c.Database.DBName = "punchclock"
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}

	if c.Redis.RedisHost == "" {
		c.Redis.RedisHost = "127.0.0.1"
	}
	if c.Redis.RedisPort == 0 {
		c.Redis.RedisPort = 6379
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 7
	}

	p := &c.Policy
	if p.DefaultTimezone == "" {
		p.DefaultTimezone = "UTC"
	}
	if p.BusinessHoursStart == "" {
		p.BusinessHoursStart = "07:00"
	}
	if p.BusinessHoursEnd == "" {
		p.BusinessHoursEnd = "20:00"
	}
	if p.ShiftStartTime == "" {
		p.ShiftStartTime = "09:00"
	}
	if p.GraceMinutes == 0 {
		p.GraceMinutes = 15
	}
	if p.LateEscalationMinutes == 0 {
		p.LateEscalationMinutes = 30
	}
	if p.MinimumWorkHours == 0 {
		p.MinimumWorkHours = 4
	}
	if p.DailyTargetMinutes == 0 {
		p.DailyTargetMinutes = 480
	}
	if len(p.WorkingDays) == 0 {
		p.WorkingDays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	}
	if p.DoublePunchWindowSec == 0 {
		p.DoublePunchWindowSec = 60
	}
	if p.LongOpenHours == 0 {
		p.LongOpenHours = 12
	}
	if p.ShortSessionMinutes == 0 {
		p.ShortSessionMinutes = 30
	}
	if p.MultipleSessionsThreshold == 0 {
		p.MultipleSessionsThreshold = 3
	}
	if p.ReminderAfterHours == 0 {
		p.ReminderAfterHours = 8
	}
	if p.OrphanWindowDays == 0 {
		p.OrphanWindowDays = 30
	}
	if p.AutoCloseAt == "" {
		p.AutoCloseAt = "23:59"
	}

	s := &c.Scheduler
	if s.AutoCloseIntervalSec == 0 {
		s.AutoCloseIntervalSec = 300
	}
	if s.ReminderIntervalSec == 0 {
		s.ReminderIntervalSec = 900
	}
	if s.HealthCheckIntervalSec == 0 {
		s.HealthCheckIntervalSec = 3600
	}
	if s.OrphanCleanupIntervalHours == 0 {
		s.OrphanCleanupIntervalHours = 24 * 7
	}
	if s.Concurrency == 0 {
		s.Concurrency = 4
	}
	if s.OpenPunchAlertThreshold == 0 {
		s.OpenPunchAlertThreshold = 10
	}
	if s.OrphanAlertThreshold == 0 {
		s.OrphanAlertThreshold = 20
	}

	if c.SMTP.SMTPPort == 0 {
		c.SMTP.SMTPPort = 587
	}
	if c.SMTP.SMTPFromName == "" {
		c.SMTP.SMTPFromName = "Punchclock"
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	env := envReader{}

	env.str("APP_PORT", &c.App.Port)
	env.str("JWT_SECRET", &c.App.JWTSecret)
	env.integer("TOKEN_TTL_HOURS", &c.App.TokenTTLHours)
	env.str("GIN_MODE", &c.App.GinMode)
	env.list("CORS_ALLOWED_ORIGINS", &c.App.AllowedOrigins)
	env.integer("RATE_LIMIT_PER_MINUTE", &c.App.RateLimitPerMinute)
	env.str("TLS_CERT_FILE", &c.App.TLSCertFile)
	env.str("TLS_KEY_FILE", &c.App.TLSKeyFile)
	env.str("MAIL_TRANSPORT", &c.App.MailTransport)

	env.str("DB_DRIVER", &c.Database.Driver)
	env.str("DATABASE_URI", &c.Database.DatabaseURI)
	env.str("DB_HOST", &c.Database.DBHost)
	env.str("DB_PORT", &c.Database.DBPort)
	env.str("DB_USER", &c.Database.DBUser)
	env.str("DB_PASSWORD", &c.Database.DBPassword)
	env.str("DB_NAME", &c.Database.DBName)
	env.str("SQLITE_PATH", &c.Database.SQLitePath)

	env.boolean("REDIS_ENABLED", &c.Redis.Enabled)
	env.str("REDIS_HOST", &c.Redis.RedisHost)
	env.integer("REDIS_PORT", &c.Redis.RedisPort)
	env.integer("REDIS_DB", &c.Redis.RedisDB)
	env.str("REDIS_PASSWORD", &c.Redis.RedisPassword)

	env.str("LOG_LEVEL", &c.Log.Level)
	env.str("LOG_PATH", &c.Log.Path)
	env.str("GIN_LOG_PATH", &c.Log.GinPath)
	env.integer("LOG_MAX_SIZE_MB", &c.Log.MaxSizeMB)
	env.integer("LOG_MAX_BACKUPS", &c.Log.MaxBackups)
	env.integer("LOG_MAX_AGE_DAYS", &c.Log.MaxAgeDays)
	env.boolean("LOG_COMPRESS", &c.Log.Compress)

	env.str("DEFAULT_TIMEZONE", &c.Policy.DefaultTimezone)
	env.str("BUSINESS_HOURS_START", &c.Policy.BusinessHoursStart)
	env.str("BUSINESS_HOURS_END", &c.Policy.BusinessHoursEnd)
	env.str("SHIFT_START_TIME", &c.Policy.ShiftStartTime)
	env.integer("GRACE_MINUTES", &c.Policy.GraceMinutes)
	env.integer("DAILY_TARGET_MINUTES", &c.Policy.DailyTargetMinutes)
	env.list("WORKING_DAYS", &c.Policy.WorkingDays)
	env.str("AUTO_CLOSE_AT", &c.Policy.AutoCloseAt)
	if v := getEnv("CLAMP_STUCK_OPEN_SESSION", ""); v != "" {
		b := v == "true"
		c.Policy.ClampStuckOpenSession = &b
	}

	if v := getEnv("SCHEDULER_ENABLED", ""); v != "" {
		b := v == "true"
		c.Scheduler.Enabled = &b
	}
	env.integer("SCHEDULER_CONCURRENCY", &c.Scheduler.Concurrency)
	env.integer("OPEN_PUNCH_ALERT_THRESHOLD", &c.Scheduler.OpenPunchAlertThreshold)
	env.integer("ORPHAN_ALERT_THRESHOLD", &c.Scheduler.OrphanAlertThreshold)

	env.str("SMTP_HOST", &c.SMTP.SMTPHost)
	env.integer("SMTP_PORT", &c.SMTP.SMTPPort)
	env.str("SMTP_USERNAME", &c.SMTP.SMTPUsername)
	env.str("SMTP_PASSWORD", &c.SMTP.SMTPPassword)
	env.str("SMTP_FROM", &c.SMTP.SMTPFrom)
	env.str("SMTP_FROM_NAME", &c.SMTP.SMTPFromName)
	env.boolean("SMTP_TLS", &c.SMTP.SMTPTLS)

	env.str("SES_REGION", &c.SES.Region)
	env.str("SES_FROM", &c.SES.From)

	env.str("SLACK_BOT_TOKEN", &c.Slack.BotToken)
	env.str("SLACK_INFO_CHANNEL", &c.Slack.InfoChannel)
	env.str("SLACK_ERROR_CHANNEL", &c.Slack.ErrorChannel)

	return errors.Join(env.errs...)
}

// envReader applies overrides and collects parse failures instead of exiting.
type envReader struct {
	errs []error
}

func (r *envReader) str(key string, dst *string) {
	if v := getEnv(key, ""); v != "" {
		*dst = v
	}
}

func (r *envReader) integer(key string, dst *int) {
	v := getEnv(key, "")
	if v == "" {
		return
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid integer value %s=%s: %w", key, v, err))
		return
	}
	*dst = i
}

func (r *envReader) boolean(key string, dst *bool) {
	if v := getEnv(key, ""); v != "" {
		*dst = v == "true"
	}
}

func (r *envReader) list(key string, dst *[]string) {
	if v := getEnv(key, ""); v != "" {
		*dst = splitAndTrim(v)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
