// internal/infra/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Guard store kinds accepted by CLAIM_GUARD.
const (
	GuardNone      = "none"
	GuardMemory    = "memory"
	GuardBolt      = "bolt"
	GuardFirestore = "firestore"
	GuardPostgres  = "postgres"
)

const (
	DefaultRPCURL       = "https://api.mainnet-beta.solana.com"
	DefaultDecimals     = 6
	DefaultClaimAmount  = 1
	DefaultPort         = "8080"
	DefaultNATSSubject  = "tokenclaim.events"
	DefaultMaxBodyBytes = 16 << 10
)

// ErrInvalid wraps every Validate and parse failure.
var ErrInvalid = errors.New("config: invalid")

// Config holds the process settings. Values come from an optional YAML file
// (CONFIG_FILE) overridden by environment variables.
type Config struct {
	Port               string   `yaml:"port"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	MaxBodyBytes       int64    `yaml:"max_body_bytes"`
	LogLevel           string   `yaml:"log_level"`
	LogFormat          string   `yaml:"log_format"`

	// ledger
	RPCURL            string `yaml:"rpc_url"`
	Commitment        string `yaml:"commitment"`
	PaymentCommitment string `yaml:"payment_commitment"`

	// token
	TokenMint         string `yaml:"token_mint"`
	TokenDecimals     uint8  `yaml:"token_decimals"`
	AmountInBaseUnits uint64 `yaml:"amount_in_base_units"`

	// treasury key sources, first non-empty wins: inline JSON, file, Secret Manager.
	// The inline secret is env-only.
	TreasurySecret     string `yaml:"-"`
	TreasurySecretFile string `yaml:"treasury_secret_file"`
	TreasurySecretName string `yaml:"treasury_secret_name"`

	// paid sale
	TreasurySOLAddress    string `yaml:"treasury_sol_address"`
	PriceLamportsPerToken uint64 `yaml:"price_lamports_per_token"`

	// guard / replay store
	ClaimGuard               string        `yaml:"claim_guard"`
	ClaimGuardTTL            time.Duration `yaml:"claim_guard_ttl"`
	BoltPath                 string        `yaml:"bolt_path"`
	FirestoreProjectID       string        `yaml:"firestore_project_id"`
	FirestoreCredentialsFile string        `yaml:"firestore_credentials_file"`
	DatabaseURL              string        `yaml:"-"`

	// events
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
}

func defaults() *Config {
	return &Config{
		Port:              DefaultPort,
		MaxBodyBytes:      DefaultMaxBodyBytes,
		LogLevel:          "info",
		LogFormat:         "json",
		RPCURL:            DefaultRPCURL,
		TokenDecimals:     DefaultDecimals,
		AmountInBaseUnits: DefaultClaimAmount,
		ClaimGuard:        GuardNone,
		BoltPath:          "tokenclaim.db",
		NATSSubject:       DefaultNATSSubject,
	}
}

// Load reads CONFIG_FILE (if set) and then the environment.
func Load() (*Config, error) {
	cfg := defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.Port = getenvDefault("PORT", c.Port)
	c.LogLevel = getenvDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getenvDefault("LOG_FORMAT", c.LogFormat)
	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		c.CORSAllowedOrigins = splitCSV(v)
	}

	c.RPCURL = getenvDefault("RPC_URL", c.RPCURL)
	c.Commitment = getenvDefault("COMMITMENT", c.Commitment)
	c.PaymentCommitment = getenvDefault("PAYMENT_COMMITMENT", c.PaymentCommitment)

	c.TokenMint = getenvDefault("TOKEN_MINT", c.TokenMint)
	c.TreasurySecret = getenvDefault("TREASURY_SECRET", c.TreasurySecret)
	c.TreasurySecretFile = getenvDefault("TREASURY_SECRET_FILE", c.TreasurySecretFile)
	c.TreasurySecretName = getenvDefault("TREASURY_SECRET_NAME", c.TreasurySecretName)
	c.TreasurySOLAddress = getenvDefault("TREASURY_SOL_ADDRESS", c.TreasurySOLAddress)

	c.ClaimGuard = strings.ToLower(getenvDefault("CLAIM_GUARD", c.ClaimGuard))
	c.BoltPath = getenvDefault("BOLT_PATH", c.BoltPath)
	c.FirestoreProjectID = getenvDefault("FIRESTORE_PROJECT_ID", getenvDefault("GCP_PROJECT_ID", c.FirestoreProjectID))
	c.FirestoreCredentialsFile = getenvDefault("FIRESTORE_CREDENTIALS_FILE", c.FirestoreCredentialsFile)
	c.DatabaseURL = getenvDefault("DATABASE_URL", c.DatabaseURL)

	c.NATSURL = getenvDefault("NATS_URL", c.NATSURL)
	c.NATSSubject = getenvDefault("NATS_SUBJECT", c.NATSSubject)

	var errs []error
	if v, ok := lookup("TOKEN_DECIMALS"); ok {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			errs = append(errs, fmt.Errorf("TOKEN_DECIMALS=%q", v))
		}
		c.TokenDecimals = uint8(n)
	}
	if v, ok := lookup("AMOUNT_IN_BASE_UNITS"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("AMOUNT_IN_BASE_UNITS=%q", v))
		}
		c.AmountInBaseUnits = n
	}
	if v, ok := lookup("PRICE_LAMPORTS_PER_TOKEN"); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("PRICE_LAMPORTS_PER_TOKEN=%q", v))
		}
		c.PriceLamportsPerToken = n
	}
	if v, ok := lookup("MAX_BODY_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("MAX_BODY_BYTES=%q", v))
		}
		c.MaxBodyBytes = n
	}
	if v, ok := lookup("CLAIM_GUARD_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("CLAIM_GUARD_TTL=%q", v))
		}
		c.ClaimGuardTTL = d
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Validate reports settings the claim engine cannot run without. The server
// still boots on a validation error and answers SERVER_MISCONFIGURED.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.TokenMint) == "" {
		problems = append(problems, "TOKEN_MINT is empty")
	}
	if !c.HasTreasurySecret() {
		problems = append(problems, "no treasury secret (TREASURY_SECRET, TREASURY_SECRET_FILE or TREASURY_SECRET_NAME)")
	}
	if c.AmountInBaseUnits == 0 {
		problems = append(problems, "AMOUNT_IN_BASE_UNITS must be positive")
	}
	switch c.ClaimGuard {
	case "", GuardNone, GuardMemory:
	case GuardBolt:
		if strings.TrimSpace(c.BoltPath) == "" {
			problems = append(problems, "BOLT_PATH is empty")
		}
	case GuardFirestore:
		if strings.TrimSpace(c.FirestoreProjectID) == "" {
			problems = append(problems, "FIRESTORE_PROJECT_ID is empty")
		}
	case GuardPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			problems = append(problems, "DATABASE_URL is empty")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown CLAIM_GUARD %q", c.ClaimGuard))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) HasTreasurySecret() bool {
	return strings.TrimSpace(c.TreasurySecret) != "" ||
		strings.TrimSpace(c.TreasurySecretFile) != "" ||
		strings.TrimSpace(c.TreasurySecretName) != ""
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

// splitCSV parses "a,b,c" / "a, b, c" (empty items are removed).
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
