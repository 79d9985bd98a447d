// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
//
// The upstream credentials are deliberately optional: a missing credential is
// a configuration state the aggregator handles (fallback/degraded data), not
// a startup failure. A portfolio site must come up even when its tokens are
// absent or revoked.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	GithubToken    string `mapstructure:"GITHUB_TOKEN"`
	GithubUsername string `mapstructure:"GITHUB_USERNAME"`
	VercelToken    string `mapstructure:"VERCEL_TOKEN"`

	FeaturedProjects []string `mapstructure:"FEATURED_PROJECTS"`
	MaxProjects      int      `mapstructure:"MAX_PROJECTS"`

	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	UserProfileTTL time.Duration `mapstructure:"TTL_USER_PROFILE"`
	RepositoryTTL  time.Duration `mapstructure:"TTL_REPOSITORIES"`
	DeploymentTTL  time.Duration `mapstructure:"TTL_DEPLOYMENTS"`
	StatsTTL       time.Duration `mapstructure:"TTL_COMPUTED_STATS"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("GITHUB_TOKEN", "")
	viper.SetDefault("GITHUB_USERNAME", "")
	viper.SetDefault("VERCEL_TOKEN", "")
	viper.SetDefault("FEATURED_PROJECTS", "")
	viper.SetDefault("MAX_PROJECTS", 50)
	viper.SetDefault("REQUEST_TIMEOUT", "10s")
	viper.SetDefault("TTL_USER_PROFILE", "1h")
	viper.SetDefault("TTL_REPOSITORIES", "30m")
	viper.SetDefault("TTL_DEPLOYMENTS", "5m")
	viper.SetDefault("TTL_COMPUTED_STATS", "30m")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.MaxProjects <= 0 {
		return nil, errors.New("MAX_PROJECTS must be a positive integer")
	}
	if cfg.RequestTimeout <= 0 {
		return nil, errors.New("REQUEST_TIMEOUT must be a positive duration")
	}
	for name, ttl := range map[string]time.Duration{
		"TTL_USER_PROFILE":   cfg.UserProfileTTL,
		"TTL_REPOSITORIES":   cfg.RepositoryTTL,
		"TTL_DEPLOYMENTS":    cfg.DeploymentTTL,
		"TTL_COMPUTED_STATS": cfg.StatsTTL,
	} {
		if ttl <= 0 {
			return nil, errors.New(name + " must be a positive duration")
		}
	}

	return &cfg, nil
}
