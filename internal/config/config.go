package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/polygonid/attestation-bridge/internal/log"
)

const (
	// EnclaveAuthorityURL is the vsock-forwarded loopback address of the authority inside an enclave.
	EnclaveAuthorityURL = "https://localhost:8443"

	TransportRedis = "redis" // TransportRedis reads from a redis stream
	TransportKafka = "kafka" // TransportKafka reads from a kafka topic

	ExecutorProxy = "proxy" // ExecutorProxy sends ledger commands to the ledger proxy
	ExecutorCLI   = "cli"   // ExecutorCLI runs the ledger CLI as a local process

	CacheProviderMemory = "memory" // CacheProviderMemory keeps the credential in process memory
	CacheProviderRedis  = "redis"  // CacheProviderRedis shares the credential between workers through redis
)

// Configuration holds the project configuration
type Configuration struct {
	Authority       Authority       `envPrefix:"GOVT_API_"`
	Queue           Queue           `envPrefix:"QUEUE_"`
	Redis           Redis           `envPrefix:"REDIS_"`
	Kafka           Kafka           `envPrefix:"KAFKA_"`
	Ledger          Ledger          `envPrefix:"SUI_"`
	KeyStore        KeyStore        `envPrefix:"KEY_STORE_"`
	CredentialCache CredentialCache `envPrefix:"CREDENTIAL_CACHE_"`
	Database        Database
	Worker          Worker `envPrefix:"WORKER_"`
	Events          Events `envPrefix:"EVENTS_"`
	Log             Log    `envPrefix:"LOG_"`
	StatusPort      int    `env:"STATUS_PORT" envDefault:"8080"`
	ProxyPort       int    `env:"PROXY_PORT" envDefault:"9999"`
	EnclaveMode     bool   `env:"ENCLAVE_MODE" envDefault:"false"`
}

// Authority holds the verification authority endpoints and credentials
type Authority struct {
	BaseURL     string        `env:"BASE_URL" envDefault:"https://api.sandbox.co.in"`
	AuthURL     string        `env:"AUTH_URL" envDefault:"https://api.sandbox.co.in/authenticate"`
	APIKey      string        `env:"KEY"`
	APISecret   string        `env:"SECRET"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"60s"`
	AuthTimeout time.Duration `env:"AUTH_TIMEOUT" envDefault:"30s"`
	RetryMax    int           `env:"RETRY_MAX" envDefault:"0"`
	// InsecureSkipVerify is only set by enclave mode, never from the environment.
	InsecureSkipVerify bool `env:"-"`
}

// Queue holds the consumer settings shared by every transport
type Queue struct {
	Transport    string        `env:"TRANSPORT" envDefault:"redis"`
	ConsumerName string        `env:"CONSUMER_NAME"`
	BatchSize    int64         `env:"BATCH_SIZE" envDefault:"10"`
	Block        time.Duration `env:"BLOCK" envDefault:"1s"`
	// RedeliverAfter is how long a message may stay unacknowledged before it is handed out again.
	RedeliverAfter time.Duration `env:"REDELIVER_AFTER" envDefault:"5m"`
	MaxDeliveries  int64         `env:"MAX_DELIVERIES" envDefault:"5"`
}

// Redis holds the connection and stream settings
type Redis struct {
	URL              string `env:"URL" envDefault:"redis://localhost:6379/0"`
	Username         string `env:"USERNAME" envDefault:"default"`
	Password         string `env:"PASSWORD"`
	StreamName       string `env:"STREAM_NAME" envDefault:"verification_stream"`
	ConsumerGroup    string `env:"CONSUMER_GROUP" envDefault:"attestation_processors"`
	DeadLetterStream string `env:"DEAD_LETTER_STREAM"`
}

// Kafka holds the alternative kafka transport settings
type Kafka struct {
	Brokers         []string `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic           string   `env:"TOPIC" envDefault:"verified-user-data"`
	Group           string   `env:"GROUP" envDefault:"attestation_processors"`
	DeadLetterTopic string   `env:"DEAD_LETTER_TOPIC"`
}

// Ledger holds the ledger package identifiers and the command executor settings
type Ledger struct {
	PackageID        string        `env:"PACKAGE_ID"`
	RegistryID       string        `env:"REGISTRY_ID"`
	CapID            string        `env:"CAP_ID"`
	ClockID          string        `env:"CLOCK_ID" envDefault:"0x0000000000000000000000000000000000000000000000000000000000000006"`
	GasBudget        string        `env:"GAS_BUDGET" envDefault:"10000000"`
	RecordType       string        `env:"RECORD_TYPE" envDefault:"::did_registry::UserDID"`
	Executor         string        `env:"EXECUTOR" envDefault:"proxy"`
	ProxyURL         string        `env:"PROXY_URL" envDefault:"http://localhost:9999"`
	CLIPath          string        `env:"CLI_PATH" envDefault:"sui"`
	CommandTimeout   time.Duration `env:"COMMAND_TIMEOUT" envDefault:"2m"`
	RegisterRejected bool          `env:"REGISTER_REJECTED" envDefault:"true"`
}

// KeyStore tells which attestation key type is used and where it is persisted
type KeyStore struct {
	Type string `env:"TYPE" envDefault:"ED25519"`
	Path string `env:"PATH"`
}

// CredentialCache selects where the authority credential is cached
type CredentialCache struct {
	Provider string `env:"PROVIDER" envDefault:"memory"`
}

// Database has the database configuration
// URL: The database connection string. Empty means the in-memory journal.
type Database struct {
	URL string `env:"DATABASE_URL"`
}

// Worker holds the consumer loop timings
type Worker struct {
	IdlePoll       time.Duration `env:"IDLE_POLL" envDefault:"1s"`
	ErrorBackoff   time.Duration `env:"ERROR_BACKOFF" envDefault:"5s"`
	ReportInterval time.Duration `env:"REPORT_INTERVAL" envDefault:"10s"`
}

// Events configures the result events publication
type Events struct {
	Enabled bool   `env:"ENABLED" envDefault:"false"`
	Topic   string `env:"TOPIC" envDefault:"verificationCompleted"`
}

// Log holds runtime configurations
//
// Level: The minimum level to log -4 debug, 0 info, 4 warn, 8 error
// Mode: 1 JSON, 2 text
type Log struct {
	Level int `env:"LEVEL" envDefault:"-4"`
	Mode  int `env:"MODE" envDefault:"2"`
}

// Load reads the optional env file and parses the environment into a Configuration.
func Load(ctx context.Context, envFile string) (*Configuration, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			log.Warn(ctx, "cannot load env file", "file", envFile, "err", err)
		}
	}
	cfg := &Configuration{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// Sanitize validates the configuration and fills derived values.
func (c *Configuration) Sanitize(ctx context.Context) error {
	if c.EnclaveMode {
		log.Info(ctx, "enclave mode: routing authority calls through the local proxy", "url", EnclaveAuthorityURL)
		c.Authority.BaseURL = EnclaveAuthorityURL
		c.Authority.AuthURL = EnclaveAuthorityURL + "/authenticate"
		c.Authority.InsecureSkipVerify = true
	}

	if c.Authority.APIKey == "" || c.Authority.APISecret == "" {
		return fmt.Errorf("GOVT_API_KEY and GOVT_API_SECRET are required")
	}
	if _, err := url.ParseRequestURI(c.Authority.BaseURL); err != nil {
		return fmt.Errorf("invalid GOVT_API_BASE_URL: %w", err)
	}
	c.Authority.BaseURL = strings.TrimSuffix(c.Authority.BaseURL, "/")

	if err := c.sanitizeLedger(); err != nil {
		return err
	}

	switch c.Queue.Transport {
	case TransportRedis:
		if c.Redis.StreamName == "" || c.Redis.ConsumerGroup == "" {
			return fmt.Errorf("REDIS_STREAM_NAME and REDIS_CONSUMER_GROUP are required")
		}
		if c.Redis.DeadLetterStream == "" {
			c.Redis.DeadLetterStream = c.Redis.StreamName + ":dead"
		}
	case TransportKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return fmt.Errorf("KAFKA_BROKERS and KAFKA_TOPIC are required")
		}
		if c.Kafka.DeadLetterTopic == "" {
			c.Kafka.DeadLetterTopic = c.Kafka.Topic + ".dead"
		}
	default:
		return fmt.Errorf("unknown QUEUE_TRANSPORT %q", c.Queue.Transport)
	}

	if c.Queue.BatchSize <= 0 {
		return fmt.Errorf("QUEUE_BATCH_SIZE must be positive")
	}
	if c.Queue.ConsumerName == "" {
		c.Queue.ConsumerName = defaultConsumerName()
	}

	if c.CredentialCache.Provider != CacheProviderMemory && c.CredentialCache.Provider != CacheProviderRedis {
		return fmt.Errorf("unknown CREDENTIAL_CACHE_PROVIDER %q", c.CredentialCache.Provider)
	}
	return nil
}

// SanitizeProxy validates the subset used by the ledger proxy.
func (c *Configuration) SanitizeProxy() error {
	if c.ProxyPort <= 0 {
		return fmt.Errorf("PROXY_PORT must be positive")
	}
	if c.Ledger.CLIPath == "" {
		return fmt.Errorf("SUI_CLI_PATH is required")
	}
	return nil
}

func (c *Configuration) sanitizeLedger() error {
	l := c.Ledger
	if l.PackageID == "" || l.RegistryID == "" || l.CapID == "" || l.ClockID == "" {
		return fmt.Errorf("SUI_PACKAGE_ID, SUI_REGISTRY_ID, SUI_CAP_ID and SUI_CLOCK_ID are required")
	}
	switch l.Executor {
	case ExecutorProxy:
		if _, err := url.ParseRequestURI(l.ProxyURL); err != nil {
			return fmt.Errorf("invalid SUI_PROXY_URL: %w", err)
		}
		c.Ledger.ProxyURL = strings.TrimSuffix(l.ProxyURL, "/")
	case ExecutorCLI:
		if l.CLIPath == "" {
			return fmt.Errorf("SUI_CLI_PATH is required")
		}
	default:
		return fmt.Errorf("unknown SUI_EXECUTOR %q", l.Executor)
	}
	return nil
}

func defaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}
