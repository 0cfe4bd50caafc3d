package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// JWT configuration for the API principal middleware
	JWT JWTConfig `mapstructure:"jwt"`

	// Authorization policy configuration
	Policy PolicyConfig `mapstructure:"policy"`

	// Admin principal bootstrapped as approver and provider
	AdminPrincipal string `mapstructure:"admin_principal"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`

	// RateLimitPerMinute is the per-principal request budget; zero
	// disables rate limiting.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

// PolicyConfig holds the multi-signature approval policy. Thresholds are
// resolved once at proposal creation; changing them never affects
// proposals already created.
type PolicyConfig struct {
	StandardSignatures  int `mapstructure:"standard_signatures"`
	EmergencySignatures int `mapstructure:"emergency_signatures"`
	ResearchSignatures  int `mapstructure:"research_signatures"`
	LegalSignatures     int `mapstructure:"legal_signatures"`
	InsuranceSignatures int `mapstructure:"insurance_signatures"`

	// ProposalDeadlineHours is the window during which a pending proposal
	// can still collect approvals before it may be marked expired.
	ProposalDeadlineHours int `mapstructure:"proposal_deadline_hours"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/medledger")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Override with environment variables
	overrideWithEnv(&config)

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)
	viper.SetDefault("server.rate_limit_per_minute", 120)

	// JWT defaults
	viper.SetDefault("jwt.issuer", "medledger")
	viper.SetDefault("jwt.audience", "medledger-clients")

	// Approval policy defaults
	viper.SetDefault("policy.standard_signatures", 3)
	viper.SetDefault("policy.emergency_signatures", 2)
	viper.SetDefault("policy.research_signatures", 4)
	viper.SetDefault("policy.legal_signatures", 2)
	viper.SetDefault("policy.insurance_signatures", 3)
	viper.SetDefault("policy.proposal_deadline_hours", 168) // 7 days

	// Logging defaults
	viper.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if jwtSecret := os.Getenv("JWT_SECRET_KEY"); jwtSecret != "" {
		config.JWT.SecretKey = jwtSecret
	}

	if admin := os.Getenv("ADMIN_PRINCIPAL"); admin != "" {
		config.AdminPrincipal = admin
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.JWT.SecretKey == "" {
		return fmt.Errorf("JWT secret key is required")
	}

	if config.AdminPrincipal == "" {
		return fmt.Errorf("admin principal is required")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	for name, v := range map[string]int{
		"standard":  config.Policy.StandardSignatures,
		"emergency": config.Policy.EmergencySignatures,
		"research":  config.Policy.ResearchSignatures,
		"legal":     config.Policy.LegalSignatures,
		"insurance": config.Policy.InsuranceSignatures,
	} {
		if v <= 0 {
			return fmt.Errorf("signature requirement for %s access must be positive", name)
		}
	}

	if config.Policy.ProposalDeadlineHours <= 0 {
		return fmt.Errorf("proposal deadline must be positive")
	}

	return nil
}
