// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"motocredito-workers/internal/api"
	awsutil "motocredito-workers/internal/common/aws"
	"motocredito-workers/internal/common/camunda"
	"motocredito-workers/internal/common/config"
	"motocredito-workers/internal/common/database"
	"motocredito-workers/internal/common/logger"
	"motocredito-workers/internal/common/observability"
	"motocredito-workers/internal/common/storage"
	"motocredito-workers/internal/engine/expediente"
	"motocredito-workers/internal/engine/statemachine"
	"motocredito-workers/internal/engine/workflow"
	"motocredito-workers/internal/models"
	"motocredito-workers/internal/notify"
	"motocredito-workers/internal/report"
	"motocredito-workers/internal/repository"
	"motocredito-workers/internal/search"

	at "motocredito-workers/internal/workers/credito/apply-transition"
	ae "motocredito-workers/internal/workers/credito/assemble-expediente"
	csa "motocredito-workers/internal/workers/credito/check-sla-alerts"
	ec "motocredito-workers/internal/workers/credito/evaluate-credit"
	ns "motocredito-workers/internal/workers/credito/notify-solicitud"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(logger.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})
	defer func() { _ = zapLog.Sync() }()
	log := logger.NewZapAdapter(zapLog)

	log.Info("starting worker manager", map[string]interface{}{"version": cfg.App.Version})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		log.Warn("otel metrics exporter unavailable", map[string]interface{}{"error": err.Error()})
	}

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(ctx, func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	log.Info("PostgreSQL connected", nil)

	// --- Redis ---
	redis := database.NewRedis(cfg.Database.Redis)
	err = retryWithBackoff(ctx, func() error { return redis.Ping(ctx) }, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	log.Info("Redis connected", nil)

	// --- Elasticsearch (optional) ---
	var indexer *search.Indexer
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Fatal("elasticsearch client failed", zap.Error(err))
		}
		if err := esClient.Ping(ctx); err != nil {
			log.Warn("elasticsearch not reachable, indexing will be retried per expediente", map[string]interface{}{"error": err.Error()})
		}
		indexer = search.NewIndexer(esClient.Client, cfg.Database.Elasticsearch.Index, log)
	}

	// --- MinIO ---
	blobs, err := storage.NewBlobStore(cfg.Storage)
	if err != nil {
		zapLog.Fatal("blob store failed", zap.Error(err))
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		log.Warn("could not ensure bucket", map[string]interface{}{"bucket": cfg.Storage.Bucket, "error": err.Error()})
	}

	// --- AWS SES / SNS ---
	var (
		emailSender notify.EmailSender
		smsSender   notify.SMSSender
	)
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		awsCfg, err := awsutil.LoadConfig(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("aws config failed", zap.Error(err))
		}
		if cfg.Notifications.Email.Enabled {
			emailSender = awsutil.NewSESClient(awsCfg)
		}
		if cfg.Notifications.SMS.Enabled {
			smsSender = awsutil.NewSNSClient(awsCfg)
		}
	}

	// --- Zeebe ---
	zeebeClient, err := camunda.Connect(ctx, camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: cfg.Camunda.Plaintext,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	}, log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	log.Info("Zeebe client connected", nil)

	// --- Engine ---
	def := workflow.Default()
	gateway := repository.NewPostgresGateway(pg.DB)
	events := repository.NewRedisEventBus(redis.Client)

	notifier := notify.NewNotifier(notify.Config{
		EmailEnabled:      cfg.Notifications.Email.Enabled,
		FromEmail:         cfg.Notifications.Email.FromEmail,
		SMSEnabled:        cfg.Notifications.SMS.Enabled,
		SMSSenderID:       cfg.Notifications.SMS.SenderID,
		PriorityThreshold: models.Prioridad(cfg.Notifications.SMS.PriorityThreshold),
	}, gateway, emailSender, smsSender, log)

	followUps := statemachine.NewFollowUpDispatcher(
		def,
		camunda.NewDocumentRequester(zeebeClient, time.Hour, log),
		notifier,
		events,
		cfg.Engine.FollowUpTimeoutDuration(),
		log,
	)

	machineOpts := []statemachine.Option{
		statemachine.WithFollowUps(followUps),
		statemachine.WithLockTTL(cfg.Engine.LockTTLDuration()),
	}
	if len(cfg.Engine.Roles) > 0 {
		machineOpts = append(machineOpts, statemachine.WithAuthorizer(statemachine.NewRoleAuthorizer(cfg.Engine.Roles)))
	}
	machine := statemachine.NewMachine(def, gateway, repository.NewRedisLocker(redis.Client), log, machineOpts...)

	aggOpts := []expediente.Option{expediente.WithPresigner(blobs, cfg.Engine.PresignTTLDuration())}
	if obs != nil {
		aggOpts = append(aggOpts, expediente.WithTracer(obs.Tracer()))
	}
	aggregator := expediente.NewAggregator(def, gateway, log, aggOpts...)
	exporter := report.NewExporter(aggregator, blobs, cfg.Engine.PresignTTLDuration(), log)

	// --- Workers ---
	var workerIndex ae.Index
	var apiIndex api.ExpedienteIndex
	if indexer != nil {
		workerIndex = indexer
		apiIndex = indexer
	}

	var workers []worker.JobWorker
	register := func(taskType string, handler camunda.HandlerFunc) {
		if w := camunda.StartWorker(zeebeClient, taskType, config.GetWorkerConfig(cfg, taskType), handler, log, obs); w != nil {
			workers = append(workers, w)
		}
	}

	aggTimeout := cfg.Engine.AggregationTimeoutDuration()

	atHandler := at.NewHandler(at.LoadConfig(config.GetWorkerConfig(cfg, at.TaskType)), machine, log)
	register(at.TaskType, atHandler.Handle)

	aeCfg := ae.LoadConfig(config.GetWorkerConfig(cfg, ae.TaskType))
	aeCfg.Timeout = boundTimeout(aeCfg.Timeout, aggTimeout)
	aeHandler := ae.NewHandler(aeCfg, aggregator, workerIndex, log)
	register(ae.TaskType, aeHandler.Handle)

	ecCfg := ec.LoadConfig(config.GetWorkerConfig(cfg, ec.TaskType))
	ecCfg.Timeout = boundTimeout(ecCfg.Timeout, aggTimeout)
	ecHandler := ec.NewHandler(ecCfg, aggregator, gateway, log)
	register(ec.TaskType, ecHandler.Handle)

	csaHandler := csa.NewHandler(csa.LoadConfig(config.GetWorkerConfig(cfg, csa.TaskType)), gateway, notifier, log)
	register(csa.TaskType, csaHandler.Handle)

	nsHandler := ns.NewHandler(ns.LoadConfig(config.GetWorkerConfig(cfg, ns.TaskType)), notifier, log)
	register(ns.TaskType, nsHandler.Handle)

	log.Info("workers registered", map[string]interface{}{"count": len(workers)})

	// --- HTTP API ---
	var server *http.Server
	if cfg.HTTP.Enabled {
		checks := map[string]api.CheckFunc{
			"postgres": pg.Ping,
			"redis":    redis.Ping,
		}
		if esClient != nil {
			checks["elasticsearch"] = esClient.Ping
		}
		server = &http.Server{
			Addr: cfg.HTTP.Address,
			Handler: api.NewRouter(api.Dependencies{
				Gateway:     gateway,
				Expedientes: aggregator,
				Transitions: machine,
				Reports:     exporter,
				Index:       apiIndex,
				Events:      events,
				Checks:      checks,
				MetricsPath: cfg.HTTP.MetricsPath,
				Version:     cfg.App.Version,
				Logger:      log,
			}),
			ReadTimeout:  config.GetDuration(cfg.HTTP.ReadTimeout),
			WriteTimeout: config.GetDuration(cfg.HTTP.WriteTimeout),
		}
		go func() {
			log.Info("HTTP server listening", map[string]interface{}{"address": cfg.HTTP.Address})
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("HTTP server failed", map[string]interface{}{"error": err.Error()})
				stop()
			}
		}()
	}

	// --- Graceful Shutdown ---
	<-ctx.Done()
	log.Info("shutdown signal received, stopping workers", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
	}
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("error shutting down HTTP server", map[string]interface{}{"error": err.Error()})
		}
	}
	followUps.Wait()

	if err := zeebeClient.Close(); err != nil {
		log.Error("error closing Zeebe client", map[string]interface{}{"error": err.Error()})
	}
	if obs != nil {
		if err := obs.Shutdown(shutdownCtx); err != nil {
			log.Warn("error shutting down observability", map[string]interface{}{"error": err.Error()})
		}
	}

	log.Info("worker manager stopped gracefully", nil)
}

// boundTimeout caps a worker timeout by the engine-wide aggregation timeout.
func boundTimeout(timeout, limit time.Duration) time.Duration {
	if limit > 0 && limit < timeout {
		return limit
	}
	return timeout
}
