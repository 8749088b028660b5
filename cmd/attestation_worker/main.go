package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/polygonid/attestation-bridge/internal/api"
	"github.com/polygonid/attestation-bridge/internal/buildinfo"
	"github.com/polygonid/attestation-bridge/internal/config"
	"github.com/polygonid/attestation-bridge/internal/core/ports"
	"github.com/polygonid/attestation-bridge/internal/core/services"
	"github.com/polygonid/attestation-bridge/internal/db"
	"github.com/polygonid/attestation-bridge/internal/gateways"
	"github.com/polygonid/attestation-bridge/internal/health"
	"github.com/polygonid/attestation-bridge/internal/kms"
	"github.com/polygonid/attestation-bridge/internal/log"
	"github.com/polygonid/attestation-bridge/internal/metrics"
	"github.com/polygonid/attestation-bridge/internal/redis"
	"github.com/polygonid/attestation-bridge/internal/repositories"
	"github.com/polygonid/attestation-bridge/pkg/cache"
	httpclient "github.com/polygonid/attestation-bridge/pkg/http"
	"github.com/polygonid/attestation-bridge/pkg/pubsub"
	"github.com/polygonid/attestation-bridge/pkg/queue"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envFile := flag.String("env", ".env", "optional env file")
	flag.Parse()

	cfg, err := config.Load(context.Background(), *envFile)
	if err != nil {
		log.Error(context.Background(), "cannot load config", "err", err)
		os.Exit(1)
	}

	// Context with log
	ctx := log.NewContext(context.Background(), cfg.Log.Level, cfg.Log.Mode, os.Stdout)
	if err := cfg.Sanitize(ctx); err != nil {
		log.Error(ctx, "invalid configuration", "err", err)
		os.Exit(1)
	}
	log.Info(ctx, "starting attestation worker", "revision", buildinfo.Revision(), "go", buildinfo.GoVersion(), "transport", cfg.Queue.Transport)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error(ctx, "attestation worker stopped", "err", err)
		os.Exit(1)
	}
	log.Info(ctx, "attestation worker stopped")
}

func run(ctx context.Context, cfg *config.Configuration) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var checks []health.Check

	var rdb *goredis.Client
	if cfg.Queue.Transport == config.TransportRedis || cfg.CredentialCache.Provider == config.CacheProviderRedis || cfg.Events.Enabled {
		var err error
		rdb, err = redis.Open(ctx, cfg.Redis.URL, cfg.Redis.Username, cfg.Redis.Password)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()
		checks = append(checks, health.Check{Name: "redis", Ping: redis.Pinger{Client: rdb}})
	}

	stream, err := newStream(cfg, rdb)
	if err != nil {
		return err
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Warn(ctx, "closing queue", "err", err)
		}
	}()

	credentials, err := cache.NewCacheClient(ctx, *cfg, rdb)
	if err != nil {
		return err
	}

	authConn := httpclient.NewRetryClient(ctx, httpclient.Options{
		RetryMax:           cfg.Authority.RetryMax,
		Timeout:            cfg.Authority.AuthTimeout,
		InsecureSkipVerify: cfg.Authority.InsecureSkipVerify,
	})
	verifyConn := httpclient.NewRetryClient(ctx, httpclient.Options{
		RetryMax:           cfg.Authority.RetryMax,
		Timeout:            cfg.Authority.Timeout,
		InsecureSkipVerify: cfg.Authority.InsecureSkipVerify,
	})
	tokens := gateways.NewTokenManager(authConn, gateways.AuthorityCredentials{
		AuthURL:   cfg.Authority.AuthURL,
		APIKey:    cfg.Authority.APIKey,
		APISecret: cfg.Authority.APISecret,
	}, credentials, m)
	authority := gateways.NewAuthority(verifyConn, cfg.Authority.BaseURL, cfg.Authority.APIKey, tokens, m)

	executor := newLedgerExecutor(ctx, cfg)
	checks = append(checks, health.Check{Name: "ledger", Ping: executor})
	committer := gateways.NewLedgerCommitter(executor, cfg.Ledger, m)

	keyStore, err := kms.Open(cfg.KeyStore.Path)
	if err != nil {
		return fmt.Errorf("opening key store: %w", err)
	}
	keyID, err := keyStore.LoadOrCreateKey(ctx, kms.KeyType(strings.ToUpper(cfg.KeyStore.Type)))
	if err != nil {
		return fmt.Errorf("loading attestation key: %w", err)
	}
	signer := services.NewAttestationSigner(keyStore, keyID)
	log.Info(ctx, "attestation key ready", "keyID", keyID.ID)

	journal, closeJournal, err := newJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeJournal()
	checks = append(checks, health.Check{Name: "journal", Ping: journal})

	var publisher pubsub.Publisher
	if cfg.Events.Enabled {
		publisher = pubsub.NewRedis(rdb)
	}

	pipeline := services.NewPipeline(services.NewVerification(authority), signer, committer, journal, publisher, m, services.PipelineConfig{
		RegisterRejected: cfg.Ledger.RegisterRejected,
		EventsTopic:      cfg.Events.Topic,
	})
	tracker := services.NewThroughputTracker()
	consumer := services.NewQueueConsumer(stream, pipeline, tracker, m, services.ConsumerConfig{
		IdlePoll:       cfg.Worker.IdlePoll,
		ErrorBackoff:   cfg.Worker.ErrorBackoff,
		ReportInterval: cfg.Worker.ReportInterval,
		MaxDeliveries:  int(cfg.Queue.MaxDeliveries),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.StatusPort),
		Handler:           api.NewServer(health.New(checks...), signer, reg, tracker).Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info(ctx, fmt.Sprintf("status server started on port:%d", cfg.StatusPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "starting status server", "err", err)
		}
	}()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			log.Warn(ctx, "shutting down status server", "err", err)
		}
	}()

	return consumer.Run(ctx)
}

func newStream(cfg *config.Configuration, rdb *goredis.Client) (queue.Stream, error) {
	if cfg.Queue.Transport == config.TransportKafka {
		return queue.NewKafkaStream(queue.KafkaConfig{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          cfg.Kafka.Topic,
			Group:          cfg.Kafka.Group,
			ClientID:       cfg.Queue.ConsumerName,
			Count:          int(cfg.Queue.BatchSize),
			Block:          cfg.Queue.Block,
			DeadLetter:     cfg.Kafka.DeadLetterTopic,
			RedeliverAfter: cfg.Queue.RedeliverAfter,
		})
	}
	return queue.NewRedisStream(rdb, queue.RedisStreamConfig{
		Stream:       cfg.Redis.StreamName,
		Group:        cfg.Redis.ConsumerGroup,
		Consumer:     cfg.Queue.ConsumerName,
		Count:        cfg.Queue.BatchSize,
		Block:        cfg.Queue.Block,
		DeadLetter:   cfg.Redis.DeadLetterStream,
		ClaimMinIdle: cfg.Queue.RedeliverAfter,
	}), nil
}

func newLedgerExecutor(ctx context.Context, cfg *config.Configuration) ports.LedgerExecutor {
	if cfg.Ledger.Executor == config.ExecutorCLI {
		log.Info(ctx, "ledger commands run through the local CLI", "path", cfg.Ledger.CLIPath)
		return gateways.NewCLIExecutor(cfg.Ledger.CLIPath, cfg.Ledger.CommandTimeout)
	}
	log.Info(ctx, "ledger commands sent to the ledger proxy", "url", cfg.Ledger.ProxyURL)
	conn := httpclient.NewRetryClient(ctx, httpclient.Options{Timeout: cfg.Ledger.CommandTimeout})
	return gateways.NewProxyExecutor(conn, cfg.Ledger.ProxyURL)
}

func newJournal(ctx context.Context, cfg *config.Configuration) (ports.AttestationRepository, func(), error) {
	if cfg.Database.URL == "" {
		log.Warn(ctx, "DATABASE_URL not set, attestation journal kept in memory")
		return repositories.NewAttestationMemory(), func() {}, nil
	}
	storage, err := db.NewStorage(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	return repositories.NewAttestation(storage), func() { _ = storage.Close(ctx) }, nil
}
