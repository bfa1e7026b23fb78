package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Registrar RegistrarConfig
	Sync      SyncConfig
	Reports   ReportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RegistrarConfig describes how to reach and sign requests to the
// university registrar roster service.
type RegistrarConfig struct {
	CourseEndpoint string
	RosterEndpoint string
	SignPrefix     string
	SignSuffix     string
	Semester       string
	Provider       string
	Timeout        time.Duration
}

// SyncConfig governs the reconciliation engine.
type SyncConfig struct {
	Enabled         bool
	Interval        time.Duration
	TeacherRoleID   string
	DefaultRoleID   string
	MatchNameStrict bool
	UnenrolAll      bool
	LockTTL         time.Duration
}

// ReportsConfig toggles the sync status report export endpoints.
type ReportsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: splitAndTrim(v.GetString("JWT_AUDIENCE")),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Registrar = RegistrarConfig{
		CourseEndpoint: v.GetString("REGISTRAR_COURSE_ENDPOINT"),
		RosterEndpoint: v.GetString("REGISTRAR_ROSTER_ENDPOINT"),
		SignPrefix:     v.GetString("REGISTRAR_SIGN_PREFIX"),
		SignSuffix:     v.GetString("REGISTRAR_SIGN_SUFFIX"),
		Semester:       v.GetString("REGISTRAR_SEMESTER"),
		Provider:       v.GetString("REGISTRAR_IDENTITY_PROVIDER"),
		Timeout:        parseDuration(v.GetString("REGISTRAR_TIMEOUT"), 30*time.Second),
	}

	cfg.Sync = SyncConfig{
		Enabled:         v.GetBool("SYNC_ENABLED"),
		Interval:        parseDuration(v.GetString("SYNC_INTERVAL"), time.Hour),
		TeacherRoleID:   v.GetString("SYNC_TEACHER_ROLE_ID"),
		DefaultRoleID:   v.GetString("SYNC_DEFAULT_ROLE_ID"),
		MatchNameStrict: v.GetBool("SYNC_MATCH_NAME_STRICT"),
		UnenrolAll:      v.GetBool("SYNC_UNENROL_ALL"),
		LockTTL:         parseDuration(v.GetString("SYNC_LOCK_TTL"), 5*time.Minute),
	}

	cfg.Reports = ReportsConfig{
		Enabled: v.GetBool("ENABLE_REPORTS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "roster_sync")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "sma-roster-sync")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("REGISTRAR_COURSE_ENDPOINT", "http://localhost:9090/registrar/courses")
	v.SetDefault("REGISTRAR_ROSTER_ENDPOINT", "http://localhost:9090/registrar/roster")
	v.SetDefault("REGISTRAR_SIGN_PREFIX", "")
	v.SetDefault("REGISTRAR_SIGN_SUFFIX", "")
	v.SetDefault("REGISTRAR_SEMESTER", "")
	v.SetDefault("REGISTRAR_IDENTITY_PROVIDER", "cas")
	v.SetDefault("REGISTRAR_TIMEOUT", "30s")

	v.SetDefault("SYNC_ENABLED", true)
	v.SetDefault("SYNC_INTERVAL", "1h")
	v.SetDefault("SYNC_TEACHER_ROLE_ID", "")
	v.SetDefault("SYNC_DEFAULT_ROLE_ID", "")
	v.SetDefault("SYNC_MATCH_NAME_STRICT", true)
	v.SetDefault("SYNC_UNENROL_ALL", false)
	v.SetDefault("SYNC_LOCK_TTL", "5m")

	v.SetDefault("ENABLE_REPORTS", false)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
