package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"arkv/internal/anchoring"
	anchormetrics "arkv/internal/anchoring/metrics"
	anchormemory "arkv/internal/anchoring/store/memory"
	anchorredis "arkv/internal/anchoring/store/redis"
	"arkv/internal/attestation"
	attestationmetrics "arkv/internal/attestation/metrics"
	"arkv/internal/attestation/resolver"
	httpapi "arkv/internal/http"
	"arkv/internal/index"
	indexmemory "arkv/internal/index/store/memory"
	indexpostgres "arkv/internal/index/store/postgres"
	"arkv/internal/ledger/thor"
	"arkv/internal/notary"
	notaryhandler "arkv/internal/notary/handler"
	notarymetrics "arkv/internal/notary/metrics"
	"arkv/internal/platform/config"
	"arkv/internal/platform/httpserver"
	"arkv/internal/platform/kafka"
	kafkaconsumer "arkv/internal/platform/kafka/consumer"
	"arkv/internal/platform/kafka/producer"
	"arkv/internal/platform/logger"
	"arkv/internal/platform/metrics"
	"arkv/internal/platform/postgres"
	platformredis "arkv/internal/platform/redis"
	"arkv/internal/platform/tracing"
	"arkv/internal/ratelimit"
	ratelimitmemory "arkv/internal/ratelimit/store/memory"
	ratelimitredis "arkv/internal/ratelimit/store/redis"
	"arkv/internal/storage/ipfs"
	storagememory "arkv/internal/storage/memory"
	auditconsumer "arkv/pkg/platform/audit/consumer"
	auditpublisher "arkv/pkg/platform/audit/publisher"
	"arkv/pkg/platform/audit/relay"
	auditmemory "arkv/pkg/platform/audit/store/memory"
	auditpostgres "arkv/pkg/platform/audit/store/postgres"
	"arkv/pkg/platform/circuit"
	"arkv/pkg/platform/middleware/ledgerauth"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("arkv stopped", "error", err)
		os.Exit(1)
	}
}

// app holds the wired collaborators and the background loops to run.
type app struct {
	router  http.Handler
	loops   []func(context.Context) error
	closers []func()
	health  map[string]httpapi.HealthCheck
	notary  *notary.Service
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	a, err := wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if err := checkHealth(ctx, a.health); err != nil {
		return err
	}

	state := a.notary.Probe(ctx)
	log.Info("signing provider probed",
		"available", state.Available,
		"signer", state.SignerAddress,
		"reason", state.Reason,
	)

	srv := httpserver.New(cfg.Server.Addr, a.router)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	for _, loop := range a.loops {
		g.Go(func() error {
			if err := loop(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	log.Info("starting arkv", "addr", cfg.Server.Addr)
	return g.Wait()
}

// checkHealth runs every dependency check concurrently before serving.
func checkHealth(ctx context.Context, checks map[string]httpapi.HealthCheck) error {
	g, gctx := errgroup.WithContext(ctx)
	for name, check := range checks {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(gctx, 5*time.Second)
			defer cancel()
			if err := check(checkCtx); err != nil {
				return fmt.Errorf("%s unhealthy: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func wire(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{health: map[string]httpapi.HealthCheck{}}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	var db *sql.DB
	if cfg.UsesPostgres() {
		var err error
		db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { db.Close() })
		a.health["postgres"] = db.PingContext
		log.Info("postgres connected", "driver", cfg.Database.Driver)
	}

	// Verification index
	var indexStore index.Store = indexmemory.New()
	if db != nil {
		indexStore = indexpostgres.New(db)
	}
	idx, err := index.New(indexStore, index.WithLogger(log))
	if err != nil {
		return nil, err
	}

	// Audit trail
	auditor, err := wireAudit(ctx, cfg, db, a, log)
	if err != nil {
		return nil, err
	}

	// Anchoring
	var anchorStore anchoring.Store = anchormemory.New()
	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		a.closers = append(a.closers, func() { rc.Close() })
		a.health["redis"] = rc.Health
		anchorStore = anchorredis.New(rc.Client, anchorredis.WithClaimTTL(cfg.Redis.ClaimTTL))
	}
	if rc == nil && db != nil {
		log.Warn("anchor claims are kept in memory while records are durable; pending anchors are not watched after a restart",
			"hint", "set REDIS_URL")
	}
	anchorMetrics := anchormetrics.New()
	anchorOpts := []anchoring.Option{
		anchoring.WithLogger(log),
		anchoring.WithMetrics(anchorMetrics),
		anchoring.WithRecipient(common.HexToAddress(cfg.Anchor.Recipient)),
	}
	if cfg.Anchor.Comment != "" {
		anchorOpts = append(anchorOpts, anchoring.WithComment(cfg.Anchor.Comment))
	}
	coordinator, err := anchoring.New(anchorStore, anchorOpts...)
	if err != nil {
		return nil, err
	}

	node := thor.NewClient(cfg.Thor.NodeURL, nil)
	opts := []notary.Option{
		notary.WithLogger(log),
		notary.WithMetrics(notarymetrics.New()),
		notary.WithNetwork(node, cfg.Thor.ChainTag),
		notary.WithExplorerURL(cfg.Thor.ExplorerURL),
		notary.WithAuditor(auditor),
	}
	if cfg.Thor.PrivateKey != "" {
		feeCap, err := cfg.FeeCap()
		if err != nil {
			return nil, err
		}
		signer, err := thor.NewLocalSigner(node, cfg.Thor.PrivateKey,
			thor.WithFeeCap(feeCap),
			thor.WithExpiration(cfg.Thor.Expiration),
			thor.WithSignerLogger(log),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, notary.WithSigner(signer))
	} else {
		log.Warn("no signer key configured; notarization is disabled until one is provided")
	}

	// Content storage
	switch {
	case cfg.Storage.IPFSAPIURL != "":
		opts = append(opts, notary.WithContentStore(ipfs.New(cfg.Storage.IPFSAPIURL, nil)))
	case cfg.Storage.InMemory:
		opts = append(opts, notary.WithContentStore(storagememory.New()))
	}

	// Domain attestation
	var txt attestation.Resolver
	if cfg.DNS.DoHURL != "" {
		txt = resolver.NewDoH(cfg.DNS.DoHURL, nil)
	} else {
		txt = resolver.NewSystem(cfg.DNS.Nameserver)
	}
	checkerOpts := []attestation.Option{
		attestation.WithLogger(log),
		attestation.WithMetrics(attestationmetrics.New()),
		attestation.WithRetries(cfg.DNS.Retries),
		attestation.WithLookupTimeout(cfg.DNS.LookupTimeout),
		attestation.WithTotalTimeout(cfg.DNS.TotalTimeout),
		attestation.WithPositiveCache(cfg.DNS.CacheTTL),
		attestation.WithBreaker(circuit.New("dns")),
	}
	if cfg.DNS.Backoff > 0 {
		checkerOpts = append(checkerOpts, attestation.WithBackoff(cfg.DNS.Backoff))
	}
	if cfg.DNS.RateLimit > 0 {
		checkerOpts = append(checkerOpts, attestation.WithRateLimit(cfg.DNS.RateLimit, cfg.DNS.Burst))
	}
	checker, err := attestation.New(txt, checkerOpts...)
	if err != nil {
		return nil, err
	}

	svc, err := notary.New(coordinator, idx, checker, opts...)
	if err != nil {
		return nil, err
	}
	a.notary = svc

	watcher, err := anchoring.NewWatcher(coordinator, node, svc,
		anchoring.WithPollInterval(cfg.Anchor.PollInterval),
		anchoring.WithMaxPending(cfg.Anchor.MaxPending),
		anchoring.WithWatcherLogger(log),
		anchoring.WithWatcherMetrics(anchorMetrics),
	)
	if err != nil {
		return nil, err
	}
	a.loops = append(a.loops, watcher.Run)

	var callbackAuth func(http.Handler) http.Handler
	if cfg.Callback.Secret != "" {
		auth, err := ledgerauth.New(cfg.Callback.Secret, cfg.Callback.Issuer)
		if err != nil {
			return nil, err
		}
		callbackAuth = ledgerauth.Require(auth, log)
	}

	limiter, sweep, err := wireRateLimit(cfg.Limits, rc, log)
	if err != nil {
		return nil, err
	}
	if sweep != nil {
		a.loops = append(a.loops, sweep)
	}

	a.router = httpapi.NewRouter(httpapi.Config{
		Notary:       notaryhandler.New(svc, log),
		CallbackAuth: callbackAuth,
		RateLimit:    limiter,
		Metrics:      metrics.New(),
		Health:       a.health,
		Logger:       log,
	})
	ok = true
	return a, nil
}

// wireAudit picks the audit store. With postgres the outbox is relayed to
// Kafka and materialized back by the consumer; without it events stay in memory.
func wireAudit(ctx context.Context, cfg config.Config, db *sql.DB, a *app, log *slog.Logger) (*auditpublisher.Publisher, error) {
	if db == nil {
		return auditpublisher.NewPublisher(auditmemory.NewInMemoryStore(), auditpublisher.WithLogger(log)), nil
	}

	outbox := auditpostgres.New(db)
	pub := auditpublisher.NewPublisher(outbox,
		auditpublisher.WithAsyncBuffer(1024),
		auditpublisher.WithLogger(log),
	)
	a.closers = append(a.closers, pub.Close)

	if !cfg.UsesKafka() {
		log.Warn("kafka not configured; audit outbox rows will not be relayed")
		return pub, nil
	}

	if err := kafka.EnsureTopics(ctx, cfg.Kafka.Brokers, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor, kafka.AuditTopic); err != nil {
		return nil, err
	}
	prod, err := producer.New(cfg.Kafka.Brokers, cfg.Kafka.ClientID)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, prod.Close)
	a.health["kafka"] = prod.Ping

	rel := relay.New(outbox, prod, kafka.AuditTopic, relay.WithLogger(log))
	a.loops = append(a.loops, rel.Run)

	cons, err := kafkaconsumer.New(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, []string{kafka.AuditTopic},
		kafkaconsumer.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, cons.Close)
	router := auditconsumer.NewRouter(log).
		Register(kafka.AuditTopic, auditconsumer.NewMaterializer(outbox, log))
	a.loops = append(a.loops, func(ctx context.Context) error {
		return cons.Run(ctx, router)
	})
	return pub, nil
}

// wireRateLimit shares windows through Redis when it is configured and keeps
// limiting in process memory while Redis is failing.
func wireRateLimit(cfg config.RateLimit, rc *platformredis.Client, log *slog.Logger) (*ratelimit.Middleware, func(context.Context) error, error) {
	if cfg.Disabled {
		log.Info("rate limiting disabled")
		return nil, nil, nil
	}
	limits := map[ratelimit.EndpointClass]ratelimit.Limit{
		ratelimit.ClassWrite: {Requests: cfg.Write, Window: cfg.Window},
		ratelimit.ClassRead:  {Requests: cfg.Read, Window: cfg.Window},
	}

	local := ratelimitmemory.New()
	var (
		primary ratelimit.BucketStore = local
		opts                          = []ratelimit.LimiterOption{ratelimit.WithLogger(log)}
	)
	if rc != nil {
		primary = ratelimitredis.New(rc.Client)
		opts = append(opts, ratelimit.WithFallback(local, circuit.New("ratelimit")))
	}
	limiter, err := ratelimit.NewLimiter(primary, limits, opts...)
	if err != nil {
		return nil, nil, err
	}

	sweep := func(ctx context.Context) error {
		ticker := time.NewTicker(cfg.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				local.Sweep()
			}
		}
	}
	return ratelimit.NewMiddleware(limiter, log), sweep, nil
}
