package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Database configuration
	DatabaseURL string

	// NATS configuration
	NATSURL string

	// Solana configuration
	SolanaRPCURL string

	// On-chain addresses
	OrderProgramID    solana.PublicKey // the RWA order program emitting order events
	SASProgramID      solana.PublicKey // Solana Attestation Service program
	CredentialAddress solana.PublicKey // issuer credential PDA
	SchemaAddress     solana.PublicKey // KYC schema PDA
	ConfigAddress     solana.PublicKey // order program config PDA
	AssetMint         solana.PublicKey // RWA asset mint (e.g. sLQD)
	USDCMint          solana.PublicKey // stable-asset mint used for payouts

	// Issuer signing key (authorizes mint/burn/payout and pays fees)
	IssuerKey solana.PrivateKey

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Polling configuration
	PollInterval  time.Duration
	LookbackLimit int
	EventFilterJQ string // optional jq expression gating which events settle
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	// Solana configuration
	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	// On-chain addresses
	cfg.OrderProgramID = parsePublicKey("ORDER_PROGRAM_ID", &errs)
	cfg.SASProgramID = parsePublicKey("SAS_PROGRAM_ID", &errs)
	cfg.CredentialAddress = parsePublicKey("CREDENTIAL_ADDRESS", &errs)
	cfg.SchemaAddress = parsePublicKey("SCHEMA_ADDRESS", &errs)
	cfg.ConfigAddress = parsePublicKey("CONFIG_ADDRESS", &errs)
	cfg.AssetMint = parsePublicKey("ASSET_MINT", &errs)
	cfg.USDCMint = parsePublicKey("USDC_MINT", &errs)

	// Issuer keypair, stored as a JSON byte array (solana-keygen format)
	issuerRaw := os.Getenv("ISSUER_KEYPAIR")
	if issuerRaw == "" {
		errs = append(errs, fmt.Errorf("ISSUER_KEYPAIR is required"))
	} else {
		key, err := parseKeypairJSON(issuerRaw)
		if err != nil {
			errs = append(errs, fmt.Errorf("ISSUER_KEYPAIR: %w", err))
		} else {
			cfg.IssuerKey = key
		}
	}

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "rwa-settlement")

	// Polling configuration
	pollInterval, err := parseDuration("POLL_INTERVAL", "15s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.PollInterval = pollInterval
	}

	lookback, err := parseInt("LOOKBACK_LIMIT", 5)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.LookbackLimit = lookback
	}

	// Optional event filter (jq expression over the decoded event)
	cfg.EventFilterJQ = os.Getenv("EVENT_FILTER_JQ")

	if cfg.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be at least 1 second"))
	}
	if cfg.LookbackLimit < 1 {
		errs = append(errs, fmt.Errorf("LOOKBACK_LIMIT must be at least 1"))
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for process initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}
	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}
	if c.OrderProgramID.IsZero() {
		errs = append(errs, fmt.Errorf("OrderProgramID is required"))
	}
	if c.SASProgramID.IsZero() {
		errs = append(errs, fmt.Errorf("SASProgramID is required"))
	}
	if c.CredentialAddress.IsZero() {
		errs = append(errs, fmt.Errorf("CredentialAddress is required"))
	}
	if c.SchemaAddress.IsZero() {
		errs = append(errs, fmt.Errorf("SchemaAddress is required"))
	}
	if c.ConfigAddress.IsZero() {
		errs = append(errs, fmt.Errorf("ConfigAddress is required"))
	}
	if c.AssetMint.IsZero() {
		errs = append(errs, fmt.Errorf("AssetMint is required"))
	}
	if c.USDCMint.IsZero() {
		errs = append(errs, fmt.Errorf("USDCMint is required"))
	}
	if len(c.IssuerKey) == 0 {
		errs = append(errs, fmt.Errorf("IssuerKey is required"))
	}
	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}
	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}
	if c.PollInterval < time.Second {
		errs = append(errs, fmt.Errorf("PollInterval must be at least 1 second"))
	}
	if c.LookbackLimit < 1 {
		errs = append(errs, fmt.Errorf("LookbackLimit must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// parseKeypairJSON parses a solana keypair from its JSON byte-array form,
// i.e. the format written by solana-keygen: [12,34,...] with 64 entries.
func parseKeypairJSON(raw string) (solana.PrivateKey, error) {
	var bytes []byte
	if err := json.Unmarshal([]byte(raw), &bytes); err != nil {
		return nil, fmt.Errorf("invalid keypair JSON: %w", err)
	}
	if len(bytes) != 64 {
		return nil, fmt.Errorf("invalid keypair length: got %d bytes, want 64", len(bytes))
	}
	return solana.PrivateKey(bytes), nil
}

// parsePublicKey reads and parses a base58 public key from an environment variable.
// A missing or malformed value is appended to errs.
func parsePublicKey(key string, errs *[]error) solana.PublicKey {
	value := os.Getenv(key)
	if value == "" {
		*errs = append(*errs, fmt.Errorf("%s is required", key))
		return solana.PublicKey{}
	}
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid public key %q: %w", key, value, err))
		return solana.PublicKey{}
	}
	return pk
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
