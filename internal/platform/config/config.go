// Package config loads process configuration from an optional YAML file and
// environment overrides.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-yaml/yaml"
)

// Config is the complete server configuration. Empty DSNs select in-memory
// backends.
type Config struct {
	Server   Server         `yaml:"server"`
	Log      Log            `yaml:"log"`
	Database Database       `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    Kafka          `yaml:"kafka"`
	DNS      DNS            `yaml:"dns"`
	Thor     Thor           `yaml:"thor"`
	Anchor   Anchor         `yaml:"anchor"`
	Storage  Storage        `yaml:"storage"`
	Tracing  Tracing        `yaml:"tracing"`
	Callback LedgerCallback `yaml:"callback"`
	Limits   RateLimit      `yaml:"rateLimit"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Database struct {
	URL    string `yaml:"url"`
	Driver string `yaml:"driver"` // pgx or postgres (lib/pq)
}

// RedisConfig configures the anchor claim store.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"poolSize"`
	MinIdleConns int           `yaml:"minIdleConns"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	ClaimTTL     time.Duration `yaml:"claimTTL"`
}

type Kafka struct {
	Brokers           []string `yaml:"brokers"`
	ClientID          string   `yaml:"clientID"`
	ConsumerGroup     string   `yaml:"consumerGroup"`
	Partitions        int32    `yaml:"partitions"`
	ReplicationFactor int16    `yaml:"replicationFactor"`
}

// DNS configures the attestation checker and its resolver.
type DNS struct {
	DoHURL        string        `yaml:"dohURL"`
	Nameserver    string        `yaml:"nameserver"` // host:port, used when DoHURL is empty
	Retries       int           `yaml:"retries"`
	Backoff       time.Duration `yaml:"backoff"`
	LookupTimeout time.Duration `yaml:"lookupTimeout"`
	TotalTimeout  time.Duration `yaml:"totalTimeout"`
	RateLimit     float64       `yaml:"rateLimit"`
	Burst         int           `yaml:"burst"`
	CacheTTL      time.Duration `yaml:"cacheTTL"`
}

type Thor struct {
	NodeURL     string `yaml:"nodeURL"`
	ChainTag    uint8  `yaml:"chainTag"`
	PrivateKey  string `yaml:"privateKey"`
	ExplorerURL string `yaml:"explorerURL"`
	Expiration  uint32 `yaml:"expiration"`
}

type Anchor struct {
	Recipient    string        `yaml:"recipient"`
	Comment      string        `yaml:"comment"`
	FeeCap       string        `yaml:"feeCap"` // wei, decimal or 0x-hex
	PollInterval time.Duration `yaml:"pollInterval"`
	MaxPending   time.Duration `yaml:"maxPending"`
}

type Storage struct {
	IPFSAPIURL string `yaml:"ipfsAPIURL"`
	// InMemory keeps stored content in process when no IPFS node is configured.
	InMemory bool `yaml:"inMemory"`
}

type Tracing struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"serviceName"`
}

// RateLimit bounds requests per client IP within one window.
type RateLimit struct {
	Disabled bool          `yaml:"disabled"`
	Write    int           `yaml:"write"`
	Read     int           `yaml:"read"`
	Window   time.Duration `yaml:"window"`
}

// LedgerCallback secures the anchor confirmation callback.
type LedgerCallback struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

const (
	DefaultAddr        = ":8080"
	DefaultDoHURL      = "https://dns.google/resolve"
	DefaultThorNodeURL = "https://testnet.vecha.in"
	DefaultChainTag    = 0x27
	DefaultExplorerURL = "https://explore-testnet.vechain.org/transactions/"
	DefaultRecipient   = "0x0000000000000000000000000000000000000000"
	DefaultAuditGroup  = "arkv-audit-materializer"
	DefaultIssuer      = "arkv-ledger"
	DefaultExpiration  = 720

	// BlockInterval is the ledger's block time. Transaction lifetimes are
	// counted in blocks.
	BlockInterval = 10 * time.Second
	// pendingMargin is added to the transaction lifetime so the watcher
	// fails a transaction only after the ledger can no longer include it.
	pendingMargin = 10 * time.Minute
)

// Load reads the YAML file named by ARKV_CONFIG when set, applies
// environment overrides and fills defaults.
func Load() (Config, error) {
	var cfg Config
	if path := os.Getenv("ARKV_CONFIG"); path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = fileCfg
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile decodes a YAML configuration file without defaults.
func LoadFile(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}

	str("ARKV_ADDR", &c.Server.Addr)
	dur("ARKV_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("DATABASE_URL", &c.Database.URL)
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("REDIS_URL", &c.Redis.URL)
	dur("REDIS_CLAIM_TTL", &c.Redis.ClaimTTL)
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	str("KAFKA_CLIENT_ID", &c.Kafka.ClientID)
	str("KAFKA_CONSUMER_GROUP", &c.Kafka.ConsumerGroup)

	str("DNS_DOH_URL", &c.DNS.DoHURL)
	str("DNS_NAMESERVER", &c.DNS.Nameserver)
	integer("DNS_RETRIES", &c.DNS.Retries)
	dur("DNS_BACKOFF", &c.DNS.Backoff)
	dur("DNS_LOOKUP_TIMEOUT", &c.DNS.LookupTimeout)
	dur("DNS_TOTAL_TIMEOUT", &c.DNS.TotalTimeout)
	integer("DNS_BURST", &c.DNS.Burst)
	dur("DNS_CACHE_TTL", &c.DNS.CacheTTL)
	if v, ok := lookup("DNS_RATE_LIMIT"); ok && v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("DNS_RATE_LIMIT: %v", err))
		} else {
			c.DNS.RateLimit = rps
		}
	}

	str("THOR_NODE_URL", &c.Thor.NodeURL)
	str("THOR_PRIVATE_KEY", &c.Thor.PrivateKey)
	str("THOR_EXPLORER_URL", &c.Thor.ExplorerURL)
	if v, ok := lookup("THOR_EXPIRATION"); ok && v != "" {
		blocks, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Sprintf("THOR_EXPIRATION: %v", err))
		} else {
			c.Thor.Expiration = uint32(blocks)
		}
	}
	if v, ok := lookup("THOR_CHAIN_TAG"); ok && v != "" {
		tag, err := strconv.ParseUint(v, 0, 8)
		if err != nil {
			errs = append(errs, fmt.Sprintf("THOR_CHAIN_TAG: %v", err))
		} else {
			c.Thor.ChainTag = uint8(tag)
		}
	}

	str("ANCHOR_RECIPIENT", &c.Anchor.Recipient)
	str("ANCHOR_COMMENT", &c.Anchor.Comment)
	str("ANCHOR_FEE_CAP", &c.Anchor.FeeCap)
	dur("ANCHOR_POLL_INTERVAL", &c.Anchor.PollInterval)
	dur("ANCHOR_MAX_PENDING", &c.Anchor.MaxPending)

	str("IPFS_API_URL", &c.Storage.IPFSAPIURL)
	if v, ok := lookup("STORAGE_IN_MEMORY"); ok && v != "" {
		c.Storage.InMemory = v == "true"
	}
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	if v, ok := lookup("RATE_LIMIT_DISABLED"); ok && v != "" {
		c.Limits.Disabled = v == "true"
	}
	integer("RATE_LIMIT_WRITE", &c.Limits.Write)
	integer("RATE_LIMIT_READ", &c.Limits.Read)
	str("LEDGER_CALLBACK_SECRET", &c.Callback.Secret)
	str("LEDGER_CALLBACK_ISSUER", &c.Callback.Issuer)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "pgx"
	}
	if c.Redis.PoolSize <= 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.DialTimeout <= 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout <= 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout <= 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}
	if c.Kafka.ClientID == "" {
		c.Kafka.ClientID = "arkv"
	}
	if c.Kafka.ConsumerGroup == "" {
		c.Kafka.ConsumerGroup = DefaultAuditGroup
	}
	if c.Kafka.Partitions <= 0 {
		c.Kafka.Partitions = 3
	}
	if c.Kafka.ReplicationFactor <= 0 {
		c.Kafka.ReplicationFactor = 1
	}
	if c.DNS.DoHURL == "" && c.DNS.Nameserver == "" {
		c.DNS.DoHURL = DefaultDoHURL
	}
	if c.DNS.Retries <= 0 {
		c.DNS.Retries = 2
	}
	if c.DNS.CacheTTL <= 0 {
		c.DNS.CacheTTL = 5 * time.Minute
	}
	if c.Thor.NodeURL == "" {
		c.Thor.NodeURL = DefaultThorNodeURL
	}
	if c.Thor.ChainTag == 0 {
		c.Thor.ChainTag = DefaultChainTag
	}
	if c.Thor.ExplorerURL == "" {
		c.Thor.ExplorerURL = DefaultExplorerURL
	}
	if c.Thor.Expiration == 0 {
		c.Thor.Expiration = DefaultExpiration
	}
	if c.Anchor.Recipient == "" {
		c.Anchor.Recipient = DefaultRecipient
	}
	if c.Anchor.FeeCap == "" {
		c.Anchor.FeeCap = "0"
	}
	if c.Anchor.PollInterval <= 0 {
		c.Anchor.PollInterval = 10 * time.Second
	}
	if c.Anchor.MaxPending <= 0 {
		c.Anchor.MaxPending = c.TxLifetime() + pendingMargin
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "arkv"
	}
	if c.Limits.Write == 0 {
		c.Limits.Write = 10
	}
	if c.Limits.Read == 0 {
		c.Limits.Read = 120
	}
	if c.Limits.Window <= 0 {
		c.Limits.Window = time.Minute
	}
	if c.Callback.Issuer == "" {
		c.Callback.Issuer = DefaultIssuer
	}
}

// Validate rejects values that would only fail later at wiring time.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "pgx", "postgres":
	default:
		return fmt.Errorf("database driver must be pgx or postgres, got %q", c.Database.Driver)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be json or text, got %q", c.Log.Format)
	}
	if _, err := c.FeeCap(); err != nil {
		return err
	}
	if c.DNS.Retries < 0 {
		return fmt.Errorf("dns retries must not be negative")
	}
	if c.Anchor.MaxPending < c.TxLifetime() {
		return fmt.Errorf("anchor max pending %s is shorter than the transaction lifetime %s (%d blocks)",
			c.Anchor.MaxPending, c.TxLifetime(), c.Thor.Expiration)
	}
	return nil
}

// TxLifetime is how long a submitted transaction may still be included in
// a block.
func (c Config) TxLifetime() time.Duration {
	return time.Duration(c.Thor.Expiration) * BlockInterval
}

// FeeCap returns the anchor fee cap in wei.
func (c Config) FeeCap() (*big.Int, error) {
	s := strings.TrimSpace(c.Anchor.FeeCap)
	if s == "" {
		return new(big.Int), nil
	}
	wei, ok := new(big.Int).SetString(s, 0)
	if !ok || wei.Sign() < 0 {
		return nil, fmt.Errorf("invalid anchor fee cap %q", c.Anchor.FeeCap)
	}
	return wei, nil
}

// UsesPostgres reports whether durable stores are configured.
func (c Config) UsesPostgres() bool {
	return c.Database.URL != ""
}

// UsesKafka reports whether audit events are relayed through Kafka.
func (c Config) UsesKafka() bool {
	return len(c.Kafka.Brokers) > 0
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
