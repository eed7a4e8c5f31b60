package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names an optional YAML configuration file. Values from the
// file override the environment; ${VAR} references inside the file expand
// from the environment before parsing.
const ConfigPathEnv = "LEADMAIL_CONFIG_PATH"

const (
	defaultListenAddr       = ":8080"
	defaultLogLevel         = "INFO"
	defaultAllowedOrigin    = "https://growpixel.webflow.io"
	defaultAdminEmail       = "info@growpixel.co"
	defaultFromName         = "GrowPixel Chatbot"
	defaultSMTPPort         = 465
	defaultMaxUploadBytes   = 10 << 20
	defaultConnTimeoutSec   = 10
	defaultSendTimeoutSec   = 30
	defaultShutdownGraceSec = 5
)

// Config carries every runtime setting for the intake service. It is
// constructed once at startup and passed down explicitly; nothing reads
// the environment mid-request.
type Config struct {
	ListenAddr     string
	LogLevel       string
	AllowedOrigin  string
	MaxUploadBytes int64

	AdminEmail string
	FromName   string

	SMTPHost     string
	SMTPPort     int
	SMTPSecure   bool
	SMTPUsername string
	SMTPPassword string

	ConnectionTimeoutSec int
	SendTimeoutSec       int
	ShutdownGraceSec     int
}

// fileConfig mirrors the optional YAML configuration file.
type fileConfig struct {
	Server struct {
		ListenAddr     string `yaml:"listenAddr"`
		LogLevel       string `yaml:"logLevel"`
		AllowedOrigin  string `yaml:"allowedOrigin"`
		MaxUploadBytes int64  `yaml:"maxUploadBytes"`
	} `yaml:"server"`
	SMTP struct {
		Host                 string `yaml:"host"`
		Port                 int    `yaml:"port"`
		Secure               *bool  `yaml:"secure"`
		Username             string `yaml:"username"`
		Password             string `yaml:"password"`
		FromName             string `yaml:"fromName"`
		ConnectionTimeoutSec int    `yaml:"connectionTimeoutSec"`
		SendTimeoutSec       int    `yaml:"sendTimeoutSec"`
	} `yaml:"smtp"`
	Lead struct {
		AdminEmail string `yaml:"adminEmail"`
	} `yaml:"lead"`
}

// LoadConfig assembles the configuration from defaults, environment
// variables, and the optional YAML file, then validates required values.
func LoadConfig() (Config, error) {
	configuration := Config{
		ListenAddr:           envOrDefault("LISTEN_ADDR", defaultListenAddr),
		LogLevel:             envOrDefault("LOG_LEVEL", defaultLogLevel),
		AllowedOrigin:        envOrDefault("ALLOWED_ORIGIN", defaultAllowedOrigin),
		MaxUploadBytes:       defaultMaxUploadBytes,
		AdminEmail:           firstEnvOrDefault(defaultAdminEmail, "ADMIN_EMAIL", "RECEIVER_EMAIL"),
		FromName:             envOrDefault("FROM_NAME", defaultFromName),
		SMTPHost:             strings.TrimSpace(os.Getenv("SMTP_HOST")),
		SMTPPort:             defaultSMTPPort,
		SMTPSecure:           true,
		SMTPUsername:         firstEnvOrDefault("", "SMTP_USER", "EMAIL_USER"),
		SMTPPassword:         firstEnvOrDefault("", "SMTP_PASS", "EMAIL_PASS"),
		ConnectionTimeoutSec: defaultConnTimeoutSec,
		SendTimeoutSec:       defaultSendTimeoutSec,
		ShutdownGraceSec:     defaultShutdownGraceSec,
	}

	var parseErrors []string
	applyEnvInt("SMTP_PORT", &configuration.SMTPPort, &parseErrors)
	applyEnvInt64("MAX_UPLOAD_BYTES", &configuration.MaxUploadBytes, &parseErrors)
	applyEnvInt("CONNECTION_TIMEOUT_SEC", &configuration.ConnectionTimeoutSec, &parseErrors)
	applyEnvInt("SEND_TIMEOUT_SEC", &configuration.SendTimeoutSec, &parseErrors)
	if rawSecure := strings.TrimSpace(os.Getenv("SMTP_SECURE")); rawSecure != "" {
		configuration.SMTPSecure = parseTruthy(rawSecure)
	}
	if len(parseErrors) > 0 {
		return Config{}, fmt.Errorf("configuration errors: %s", strings.Join(parseErrors, ", "))
	}

	if configPath := strings.TrimSpace(os.Getenv(ConfigPathEnv)); configPath != "" {
		if fileError := applyConfigFile(configPath, &configuration); fileError != nil {
			return Config{}, fileError
		}
	}

	if validationError := configuration.validate(); validationError != nil {
		return Config{}, validationError
	}
	return configuration, nil
}

func (configuration Config) validate() error {
	var missing []string
	if configuration.SMTPHost == "" {
		missing = append(missing, "SMTP_HOST")
	}
	if configuration.SMTPUsername == "" {
		missing = append(missing, "SMTP_USER")
	}
	if configuration.SMTPPassword == "" {
		missing = append(missing, "SMTP_PASS")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	if configuration.SMTPPort <= 0 || configuration.SMTPPort > 65535 {
		return fmt.Errorf("invalid SMTP_PORT: %d", configuration.SMTPPort)
	}
	return nil
}

func applyConfigFile(configPath string, configuration *Config) error {
	rawContents, readError := os.ReadFile(configPath)
	if readError != nil {
		return fmt.Errorf("reading config file %s: %w", configPath, readError)
	}
	expandedContents := os.ExpandEnv(string(rawContents))

	var parsed fileConfig
	if unmarshalError := yaml.Unmarshal([]byte(expandedContents), &parsed); unmarshalError != nil {
		return fmt.Errorf("parsing config file %s: %w", configPath, unmarshalError)
	}

	overrideString(&configuration.ListenAddr, parsed.Server.ListenAddr)
	overrideString(&configuration.LogLevel, parsed.Server.LogLevel)
	overrideString(&configuration.AllowedOrigin, parsed.Server.AllowedOrigin)
	if parsed.Server.MaxUploadBytes > 0 {
		configuration.MaxUploadBytes = parsed.Server.MaxUploadBytes
	}
	overrideString(&configuration.SMTPHost, parsed.SMTP.Host)
	if parsed.SMTP.Port > 0 {
		configuration.SMTPPort = parsed.SMTP.Port
	}
	if parsed.SMTP.Secure != nil {
		configuration.SMTPSecure = *parsed.SMTP.Secure
	}
	overrideString(&configuration.SMTPUsername, parsed.SMTP.Username)
	overrideString(&configuration.SMTPPassword, parsed.SMTP.Password)
	overrideString(&configuration.FromName, parsed.SMTP.FromName)
	if parsed.SMTP.ConnectionTimeoutSec > 0 {
		configuration.ConnectionTimeoutSec = parsed.SMTP.ConnectionTimeoutSec
	}
	if parsed.SMTP.SendTimeoutSec > 0 {
		configuration.SendTimeoutSec = parsed.SMTP.SendTimeoutSec
	}
	overrideString(&configuration.AdminEmail, parsed.Lead.AdminEmail)

	return nil
}

func envOrDefault(environmentKey, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(environmentKey))
	if value == "" {
		return defaultValue
	}
	return value
}

// firstEnvOrDefault returns the first non-empty value among the given
// environment keys, falling back to the default.
func firstEnvOrDefault(defaultValue string, environmentKeys ...string) string {
	for _, environmentKey := range environmentKeys {
		if value := strings.TrimSpace(os.Getenv(environmentKey)); value != "" {
			return value
		}
	}
	return defaultValue
}

func applyEnvInt(environmentKey string, destination *int, parseErrors *[]string) {
	rawValue := strings.TrimSpace(os.Getenv(environmentKey))
	if rawValue == "" {
		return
	}
	parsedValue, conversionError := strconv.Atoi(rawValue)
	if conversionError != nil {
		*parseErrors = append(*parseErrors, fmt.Sprintf("invalid integer for %s: %v", environmentKey, conversionError))
		return
	}
	*destination = parsedValue
}

func applyEnvInt64(environmentKey string, destination *int64, parseErrors *[]string) {
	rawValue := strings.TrimSpace(os.Getenv(environmentKey))
	if rawValue == "" {
		return
	}
	parsedValue, conversionError := strconv.ParseInt(rawValue, 10, 64)
	if conversionError != nil {
		*parseErrors = append(*parseErrors, fmt.Sprintf("invalid integer for %s: %v", environmentKey, conversionError))
		return
	}
	*destination = parsedValue
}

func parseTruthy(rawValue string) bool {
	switch strings.ToLower(strings.TrimSpace(rawValue)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func overrideString(destination *string, candidate string) {
	if trimmed := strings.TrimSpace(candidate); trimmed != "" {
		*destination = trimmed
	}
}
