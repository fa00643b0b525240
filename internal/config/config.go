package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	LDAP       LDAPConfig       `yaml:"ldap"`
	Redis      RedisConfig      `yaml:"redis"`
	SMTP       SMTPConfig       `yaml:"smtp"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           string   `yaml:"port"`
	Mode           string   `yaml:"mode"` // debug, release, test
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret            string `yaml:"secret"`
	ExpireHour        int    `yaml:"expire_hour"`
	RefreshExpireHour int    `yaml:"refresh_expire_hour"`
}

type LDAPConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	BaseDN       string `yaml:"base_dn"`
	BindDN       string `yaml:"bind_dn"`
	BindPassword string `yaml:"bind_password"`
	UserFilter   string `yaml:"user_filter"`
	UseSSL       bool   `yaml:"use_ssl"`
	DefaultRole  string `yaml:"default_role"` // role given to first-time directory users
}

// RedisConfig for optional async notification queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SMTPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	UseTLS   bool   `yaml:"use_tls"`
}

// SchedulingConfig controls which meeting windows are acceptable.
type SchedulingConfig struct {
	Timezone         string `yaml:"timezone"`
	DayStart         string `yaml:"day_start"` // HH:MM, inclusive
	DayEnd           string `yaml:"day_end"`   // HH:MM, exclusive
	LookaheadMonths  int    `yaml:"lookahead_months"`
	HolidayCountry   string `yaml:"holiday_country"` // empty disables holiday blocks
	EnforceConflicts bool   `yaml:"enforce_conflicts"`
	ReminderCron     string `yaml:"reminder_cron"`
	LogRetentionDays int    `yaml:"log_retention_days"`
}

// Location resolves the configured timezone, falling back to UTC.
func (s SchedulingConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DayWindow returns the daily bookable window as offsets from midnight.
func (s SchedulingConfig) DayWindow() (start, end time.Duration, err error) {
	if start, err = ParseClock(s.DayStart); err != nil {
		return 0, 0, fmt.Errorf("day_start: %w", err)
	}
	if end, err = ParseClock(s.DayEnd); err != nil {
		return 0, 0, fmt.Errorf("day_end: %w", err)
	}
	return start, end, nil
}

// ParseClock parses an HH:MM wall clock value into an offset from midnight.
func ParseClock(v string) (time.Duration, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", v)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.overrideFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           "5000",
			Mode:           "debug",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Log: LogConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "meeting_scheduler.db?_foreign_keys=on",
		},
		JWT: JWTConfig{
			Secret:            "meeting-scheduler-secret-change-in-production",
			ExpireHour:        24,
			RefreshExpireHour: 720,
		},
		LDAP: LDAPConfig{
			Enabled:     false,
			Port:        389,
			UserFilter:  "(mail=%s)",
			DefaultRole: "client",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		SMTP: SMTPConfig{
			Enabled: false,
			Port:    587,
		},
		Scheduling: SchedulingConfig{
			Timezone:         "UTC",
			DayStart:         "09:00",
			DayEnd:           "17:00",
			LookaheadMonths:  3,
			ReminderCron:     "0 * * * *",
			LogRetentionDays: 30,
		},
	}
}

// Validate checks values that would otherwise fail late at request time.
func (c *Config) Validate() error {
	start, end, err := c.Scheduling.DayWindow()
	if err != nil {
		return fmt.Errorf("scheduling: %w", err)
	}
	if start >= end {
		return fmt.Errorf("scheduling: day_start %s must be before day_end %s", c.Scheduling.DayStart, c.Scheduling.DayEnd)
	}
	if c.Scheduling.Timezone != "" {
		if _, err := time.LoadLocation(c.Scheduling.Timezone); err != nil {
			return fmt.Errorf("scheduling: unknown timezone %q", c.Scheduling.Timezone)
		}
	}
	if c.Scheduling.LookaheadMonths <= 0 {
		return fmt.Errorf("scheduling: lookahead_months must be positive")
	}
	if c.JWT.ExpireHour <= 0 {
		return fmt.Errorf("jwt: expire_hour must be positive")
	}
	return nil
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if origin := os.Getenv("FRONTEND_URL"); origin != "" {
		c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, origin)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if hours := os.Getenv("JWT_EXPIRE_HOUR"); hours != "" {
		if h, err := strconv.Atoi(hours); err == nil {
			c.JWT.ExpireHour = h
		}
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		c.SMTP.Enabled = true
		c.SMTP.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.SMTP.Port = p
		}
	}
	if username := os.Getenv("SMTP_USERNAME"); username != "" {
		c.SMTP.Username = username
	}
	if password := os.Getenv("SMTP_PASSWORD"); password != "" {
		c.SMTP.Password = password
	}
	if from := os.Getenv("SMTP_FROM"); from != "" {
		c.SMTP.From = from
	}
	if tz := os.Getenv("SCHEDULING_TIMEZONE"); tz != "" {
		c.Scheduling.Timezone = tz
	}
	if country := os.Getenv("SCHEDULING_HOLIDAY_COUNTRY"); country != "" {
		c.Scheduling.HolidayCountry = country
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
