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

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Program  ProgramConfig
	Calendar CalendarConfig
	Imports  ImportsConfig
	Swaps    SwapsConfig
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
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ProgramConfig captures the residency program's duty-hour rules.
// Defaults follow the local ACGME overrides: 100h in any rolling 7-day
// window, 80h per Saturday-anchored week, blocks change on Saturday.
type ProgramConfig struct {
	MaxRolling7DayHours float64
	MaxWeeklyHours      float64
	BlockChangeWeekday  time.Weekday
	BlockLengthDays     int
}

// CalendarConfig tunes the ICS subscription feed.
type CalendarConfig struct {
	Enabled  bool
	CacheTTL time.Duration
	ProdID   string
}

// ImportsConfig bounds Excel schedule imports.
type ImportsConfig struct {
	Enabled bool
	MaxRows int
}

// SwapsConfig toggles the swap workflow endpoints.
type SwapsConfig struct {
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
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Program = ProgramConfig{
		MaxRolling7DayHours: v.GetFloat64("PROGRAM_MAX_7D_HOURS"),
		MaxWeeklyHours:      v.GetFloat64("PROGRAM_MAX_WEEKLY_HOURS"),
		BlockChangeWeekday:  time.Weekday(v.GetInt("PROGRAM_BLOCK_CHANGE_WEEKDAY")),
		BlockLengthDays:     v.GetInt("PROGRAM_BLOCK_LENGTH_DAYS"),
	}

	cfg.Calendar = CalendarConfig{
		Enabled:  v.GetBool("ENABLE_CALENDAR_FEED"),
		CacheTTL: parseDuration(v.GetString("CALENDAR_CACHE_TTL"), 15*time.Minute),
		ProdID:   v.GetString("CALENDAR_PROD_ID"),
	}

	cfg.Imports = ImportsConfig{
		Enabled: v.GetBool("ENABLE_EXCEL_IMPORT"),
		MaxRows: v.GetInt("IMPORT_MAX_ROWS"),
	}

	cfg.Swaps = SwapsConfig{
		Enabled: v.GetBool("ENABLE_SWAPS"),
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
	v.SetDefault("DB_NAME", "rota")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "rota-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PROGRAM_MAX_7D_HOURS", 100.0)
	v.SetDefault("PROGRAM_MAX_WEEKLY_HOURS", 80.0)
	v.SetDefault("PROGRAM_BLOCK_CHANGE_WEEKDAY", int(time.Saturday))
	v.SetDefault("PROGRAM_BLOCK_LENGTH_DAYS", 7)

	v.SetDefault("ENABLE_CALENDAR_FEED", true)
	v.SetDefault("CALENDAR_CACHE_TTL", "15m")
	v.SetDefault("CALENDAR_PROD_ID", "-//MedRota//Rota API//EN")

	v.SetDefault("ENABLE_EXCEL_IMPORT", true)
	v.SetDefault("IMPORT_MAX_ROWS", 500)

	v.SetDefault("ENABLE_SWAPS", true)
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
