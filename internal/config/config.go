package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	NATSSubjectBase        string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	SimilarityOracleURL    string
	SimilarityOracleKey    string
	RendererURL            string
	RendererKey            string
	SimilarityThreshold    float64
	MaxPlagiarismAttempts  int
	DashboardCacheTTL      time.Duration
	MaxUploadMB            int
	PlagiarismRatePerMin   int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("THESIS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Thesis Review API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.subject_base", "thesis")
	v.SetDefault("cloudinary.folder", "thesis-review")
	v.SetDefault("similarity.threshold", 15.0)
	v.SetDefault("plagiarism.max_attempts", 3)
	v.SetDefault("plagiarism.rate_per_min", 2)
	v.SetDefault("dashboard.cache_ttl", "5m")
	v.SetDefault("max_upload_mb", 25)

	ttlString := v.GetString("dashboard.cache_ttl")
	if ttlString == "" {
		ttlString = "5m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid dashboard cache ttl: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		NATSSubjectBase:        v.GetString("nats.subject_base"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		SimilarityOracleURL:    v.GetString("similarity.oracle_url"),
		SimilarityOracleKey:    v.GetString("similarity.oracle_key"),
		RendererURL:            v.GetString("renderer.url"),
		RendererKey:            v.GetString("renderer.key"),
		SimilarityThreshold:    v.GetFloat64("similarity.threshold"),
		MaxPlagiarismAttempts:  v.GetInt("plagiarism.max_attempts"),
		PlagiarismRatePerMin:   v.GetInt("plagiarism.rate_per_min"),
		DashboardCacheTTL:      ttl,
		MaxUploadMB:            v.GetInt("max_upload_mb"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 15.0
	}

	if cfg.MaxPlagiarismAttempts <= 0 {
		cfg.MaxPlagiarismAttempts = 3
	}

	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 25
	}

	return cfg, nil
}
