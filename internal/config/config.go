package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	MongoDB     MongoDBConfig
	JWT         JWTConfig
	Loyalty     LoyaltyConfig
	USSD        USSDConfig
	Messaging   MessagingConfig
	MobileMoney MobileMoneyConfig
	Security    SecurityConfig
	LogLevel    string
	LogFormat   string
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port            string
	AllowedHosts    []string
	Mode            string
	ShutdownTimeout time.Duration
}

// StorageConfig selects the ledger store driver: "mongodb" or "memory"
type StorageConfig struct {
	Driver string
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// JWTConfig holds JWT-specific configuration
type JWTConfig struct {
	Secret    string
	ExpiresIn time.Duration
	Issuer    string
}

// LoyaltyConfig holds the points and credit policy
type LoyaltyConfig struct {
	PointsPerUnit    float64
	RewardPoints     float64
	RewardName       string
	MinTransactions  int64
	MinSpend         float64
	CreditPercentage float64
	MaxCreditLimit   float64
	Currency         string
}

// USSDConfig holds session menu settings
type USSDConfig struct {
	ServiceName    string
	BackToken      string
	HomeToken      string
	MinPhoneLength int
}

// MessagingConfig holds outbound SMS/WhatsApp settings
type MessagingConfig struct {
	Username    string
	APIKey      string
	SMSURL      string
	WhatsAppURL string
	SenderID    string
	CountryCode string
	Mock        bool
	MaxRetries  int
	Timeout     time.Duration
	Workers     int
	QueueSize   int
}

// MobileMoneyConfig holds loan repayment checkout settings
type MobileMoneyConfig struct {
	BaseURL     string
	Username    string
	APIKey      string
	ProductName string
	Mock        bool
}

// SecurityConfig holds PIN hashing settings
type SecurityConfig struct {
	PINCost int
}

// Load loads configuration from a .env file, an optional config.yaml and environment variables.
// Extra search paths for config.yaml may be given.
func Load(paths ...string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindAliases(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "mongodb":
		if c.MongoDB.URI == "" {
			return errors.New("config: MongoDB.URI is required for the mongodb storage driver")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: unknown server mode %q", c.Server.Mode)
	}
	if c.USSD.BackToken == c.USSD.HomeToken {
		return errors.New("config: USSD back and home tokens must differ")
	}
	if c.Messaging.Workers < 1 {
		return errors.New("config: Messaging.Workers must be at least 1")
	}
	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "8080")
	v.SetDefault("Server.AllowedHosts", []string{"*"})
	v.SetDefault("Server.Mode", "release")
	v.SetDefault("Server.ShutdownTimeout", 5*time.Second)

	v.SetDefault("Storage.Driver", "mongodb")
	v.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	v.SetDefault("MongoDB.Database", "kulapay")
	v.SetDefault("MongoDB.Timeout", 10*time.Second)

	v.SetDefault("JWT.Secret", "")
	v.SetDefault("JWT.ExpiresIn", 24*time.Hour)
	v.SetDefault("JWT.Issuer", "kulapay")

	v.SetDefault("Loyalty.PointsPerUnit", 0.1)
	v.SetDefault("Loyalty.RewardPoints", 50.0)
	v.SetDefault("Loyalty.RewardName", "Mandazi")
	v.SetDefault("Loyalty.MinTransactions", 5)
	v.SetDefault("Loyalty.MinSpend", 500.0)
	v.SetDefault("Loyalty.CreditPercentage", 0.2)
	v.SetDefault("Loyalty.MaxCreditLimit", 300.0)
	v.SetDefault("Loyalty.Currency", "KES")

	v.SetDefault("USSD.ServiceName", "KulaPay")
	v.SetDefault("USSD.BackToken", "0")
	v.SetDefault("USSD.HomeToken", "00")
	v.SetDefault("USSD.MinPhoneLength", 10)

	v.SetDefault("Messaging.Username", "")
	v.SetDefault("Messaging.APIKey", "")
	v.SetDefault("Messaging.SMSURL", "https://api.africastalking.com/version1/messaging")
	v.SetDefault("Messaging.WhatsAppURL", "https://api.africastalking.com/version1/whatsapp/message")
	v.SetDefault("Messaging.SenderID", "")
	v.SetDefault("Messaging.CountryCode", "254")
	v.SetDefault("Messaging.Mock", true)
	v.SetDefault("Messaging.MaxRetries", 2)
	v.SetDefault("Messaging.Timeout", 10*time.Second)
	v.SetDefault("Messaging.Workers", 4)
	v.SetDefault("Messaging.QueueSize", 256)

	v.SetDefault("MobileMoney.BaseURL", "https://payments.africastalking.com")
	v.SetDefault("MobileMoney.Username", "")
	v.SetDefault("MobileMoney.APIKey", "")
	v.SetDefault("MobileMoney.ProductName", "KulaPay")
	v.SetDefault("MobileMoney.Mock", true)

	v.SetDefault("Security.PINCost", 10)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "json")
}

// bindAliases maps the Africa's Talking variable names used by existing deployments.
func bindAliases(v *viper.Viper) {
	_ = v.BindEnv("Messaging.Username", "MESSAGING_USERNAME", "AT_USERNAME")
	_ = v.BindEnv("Messaging.APIKey", "MESSAGING_APIKEY", "AT_API_KEY")
	_ = v.BindEnv("MobileMoney.Username", "MOBILEMONEY_USERNAME", "AT_USERNAME")
	_ = v.BindEnv("MobileMoney.APIKey", "MOBILEMONEY_APIKEY", "AT_API_KEY")
	_ = v.BindEnv("JWT.Secret", "JWT_SECRET")
	_ = v.BindEnv("Server.Port", "SERVER_PORT", "PORT")
}
