package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config files or the environment.
type AppConfig struct {
	AppPort     string
	JWTSecret   string
	FrontendURL string
	ServerURL   string

	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	// SMTP for verification emails
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool

	RateLimitPerMinute int
	AllowedOrigins     []string
	AdminEmails        []string

	// Policy switches for reaction broadcasts and anonymous feed reads.
	FanoutIncludeMembers bool
	FeedRequireAuth      bool

	UploadsSelfDestructEnabled bool
	UploadsSelfDestructMinutes int

	GinMode string

	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
// Precedence: config/config.json -> defaults -> environment variable overrides.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	_ = loadJSONConfig(filepath.Join("config", "config.json"), &cfg)
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// SetForTesting replaces the cached configuration. Test helper only.
func SetForTesting(c AppConfig) {
	cfg = c
	loaded = true
}

func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "4000"
	}
	if c.FrontendURL == "" {
		c.FrontendURL = "http://localhost:3000"
	}
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:" + c.AppPort
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "wecare"
	}
	if c.DBName == "" {
		c.DBName = "wecare"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.UploadsSelfDestructMinutes == 0 {
		c.UploadsSelfDestructMinutes = 60
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/wecare.log"
	}
}

// loadJSONConfig reads JSON file into cfg if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	getString := func(m map[string]any, key string) string {
		if v, ok := m[key].(string); ok {
			return v
		}
		return ""
	}
	getInt := func(m map[string]any, key string) int {
		switch t := m[key].(type) {
		case float64:
			return int(t)
		case int:
			return t
		}
		return 0
	}
	getBool := func(m map[string]any, key string) bool {
		if v, ok := m[key].(bool); ok {
			return v
		}
		return false
	}
	getStringSlice := func(m map[string]any, key string) []string {
		if arr, ok := m[key].([]any); ok {
			res := make([]string, 0, len(arr))
			for _, it := range arr {
				if s, ok := it.(string); ok {
					res = append(res, s)
				}
			}
			return res
		}
		return nil
	}

	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.JWTSecret = getString(app, "JWTSecret")
		out.FrontendURL = getString(app, "FrontendURL")
		out.ServerURL = getString(app, "ServerURL")
		if v := getInt(app, "RateLimitPerMinute"); v != 0 {
			out.RateLimitPerMinute = v
		}
		if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
		if list := getStringSlice(app, "AdminEmails"); len(list) > 0 {
			out.AdminEmails = list
		}
		out.FanoutIncludeMembers = getBool(app, "FanoutIncludeMembers")
		out.FeedRequireAuth = getBool(app, "FeedRequireAuth")
		out.UploadsSelfDestructEnabled = getBool(app, "UploadsSelfDestructEnabled")
		if v := getInt(app, "UploadsSelfDestructMinutes"); v != 0 {
			out.UploadsSelfDestructMinutes = v
		}
		out.GinMode = getString(app, "GinMode")
	}

	if db, ok := raw["database"].(map[string]any); ok {
		out.DatabaseURI = getString(db, "URI")
		out.DBHost = getString(db, "Host")
		out.DBPort = getString(db, "Port")
		out.DBUser = getString(db, "User")
		out.DBPassword = getString(db, "Password")
		out.DBName = getString(db, "Name")
	}

	if rd, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rd, "Host")
		out.RedisPort = getInt(rd, "Port")
		out.RedisDB = getInt(rd, "DB")
		out.RedisPassword = getString(rd, "Password")
	}

	if sm, ok := raw["smtp"].(map[string]any); ok {
		out.SMTPHost = getString(sm, "Host")
		out.SMTPPort = getInt(sm, "Port")
		out.SMTPUsername = getString(sm, "Username")
		out.SMTPPassword = getString(sm, "Password")
		out.SMTPFrom = getString(sm, "From")
		out.SMTPFromName = getString(sm, "FromName")
		out.SMTPTLS = getBool(sm, "TLS")
	}

	if lg, ok := raw["logging"].(map[string]any); ok {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}

	return nil
}

func applyEnvOverrides(c *AppConfig) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(dst *bool, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "1" || strings.EqualFold(v, "true")
		}
	}
	setList := func(dst *[]string, key string) {
		if v := os.Getenv(key); v != "" {
			parts := strings.Split(v, ",")
			res := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					res = append(res, p)
				}
			}
			*dst = res
		}
	}

	setString(&c.AppPort, "PORT")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.FrontendURL, "FRONTEND_URL")
	setString(&c.ServerURL, "SERVER_URL")
	setString(&c.DatabaseURI, "DATABASE_URI")
	setString(&c.DBHost, "DB_HOST")
	setString(&c.DBPort, "DB_PORT")
	setString(&c.DBUser, "DB_USER")
	setString(&c.DBPassword, "DB_PASSWORD")
	setString(&c.DBName, "DB_NAME")
	setString(&c.RedisHost, "REDIS_HOST")
	setInt(&c.RedisPort, "REDIS_PORT")
	setInt(&c.RedisDB, "REDIS_DB")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setString(&c.SMTPHost, "SMTP_HOST")
	setInt(&c.SMTPPort, "SMTP_PORT")
	setString(&c.SMTPUsername, "SMTP_USERNAME")
	setString(&c.SMTPPassword, "SMTP_PASSWORD")
	setString(&c.SMTPFrom, "SMTP_FROM")
	setString(&c.SMTPFromName, "SMTP_FROM_NAME")
	setBool(&c.SMTPTLS, "SMTP_TLS")
	setInt(&c.RateLimitPerMinute, "RATE_LIMIT_PER_MINUTE")
	setList(&c.AllowedOrigins, "ALLOWED_ORIGINS")
	setList(&c.AdminEmails, "ADMIN_EMAILS")
	setBool(&c.FanoutIncludeMembers, "FANOUT_INCLUDE_MEMBERS")
	setBool(&c.FeedRequireAuth, "FEED_REQUIRE_AUTH")
	setBool(&c.UploadsSelfDestructEnabled, "UPLOADS_SELF_DESTRUCT")
	setInt(&c.UploadsSelfDestructMinutes, "UPLOADS_SELF_DESTRUCT_MINUTES")
	setString(&c.GinMode, "GIN_MODE")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogPath, "LOG_PATH")
}
