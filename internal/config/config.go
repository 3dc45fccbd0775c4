package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string   `mapstructure:"PORT"`
	Env               string   `mapstructure:"ENV"`
	DatabaseURL       string   `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32    `mapstructure:"DB_MIN_CONNS"`
	MLLPAddr          string   `mapstructure:"MLLP_ADDR"`
	MLLPEnabled       bool     `mapstructure:"MLLP_ENABLED"`
	AuthSecret        string   `mapstructure:"AUTH_SECRET"`
	SendingApp        string   `mapstructure:"SENDING_APP"`
	SendingFacility   string   `mapstructure:"SENDING_FACILITY"`
	ReceivingApp      string   `mapstructure:"RECEIVING_APP"`
	ReceivingFacility string   `mapstructure:"RECEIVING_FACILITY"`
	CORSOrigins       []string `mapstructure:"CORS_ORIGINS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MLLP_ADDR", ":2575")
	v.SetDefault("MLLP_ENABLED", true)
	v.SetDefault("SENDING_APP", "HL7BRIDGE")
	v.SetDefault("SENDING_FACILITY", "HL7BRIDGE")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("MLLP_ADDR")
	v.BindEnv("MLLP_ENABLED")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("SENDING_APP")
	v.BindEnv("SENDING_FACILITY")
	v.BindEnv("RECEIVING_APP")
	v.BindEnv("RECEIVING_FACILITY")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the gateway is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Production requires a
// real JWT signing secret; development falls back to an unauthenticated mode.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.IsProduction() && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required in production")
	}
	if c.MLLPEnabled && c.MLLPAddr == "" {
		return fmt.Errorf("MLLP_ADDR is required when MLLP_ENABLED is true")
	}
	return nil
}
