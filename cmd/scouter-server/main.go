// Command scouter-server runs the ingestion, archival, and drift-evaluation
// surfaces of Scouter as a single long-lived process: it accepts records
// over whichever transports are configured, writes them to the hot store,
// periodically archives aged rows to object storage, and evaluates due
// drift profiles on a worker pool, dispatching alerts as it finds them.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/smtp"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/scouter-ml/scouter/internal/alert"
	"github.com/scouter-ml/scouter/internal/archive"
	"github.com/scouter-ml/scouter/internal/config"
	"github.com/scouter-ml/scouter/internal/consumer"
	"github.com/scouter-ml/scouter/internal/httpapi"
	"github.com/scouter-ml/scouter/internal/logging"
	"github.com/scouter-ml/scouter/internal/metrics"
	"github.com/scouter-ml/scouter/internal/objstore"
	"github.com/scouter-ml/scouter/internal/reader"
	"github.com/scouter-ml/scouter/internal/registry"
	"github.com/scouter-ml/scouter/internal/scheduler"
	"github.com/scouter-ml/scouter/internal/storage"
	"github.com/scouter-ml/scouter/internal/types"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "scouter-server",
		Short: "Run the Scouter ingestion, archival, and drift-evaluation server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to an optional YAML config overlay")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("scouter-server: loading config: %w", err)
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("scouter-server: building logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	m := metrics.New()

	pool, err := pgxpool.New(ctx, cfg.Database.ConnectionURI)
	if err != nil {
		return fmt.Errorf("scouter-server: connecting hot store (pgx): %w", err)
	}
	defer pool.Close()

	sqlxDB, err := sqlx.Connect("pgx", cfg.Database.ConnectionURI)
	if err != nil {
		return fmt.Errorf("scouter-server: connecting hot store (sqlx): %w", err)
	}
	defer sqlxDB.Close()
	sqlxDB.SetMaxOpenConns(cfg.Database.MaxConnections)

	if _, err := sqlxDB.ExecContext(ctx, storage.Schema); err != nil {
		return fmt.Errorf("scouter-server: applying schema: %w", err)
	}

	store, err := buildObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		return fmt.Errorf("scouter-server: building object store: %w", err)
	}

	writer := storage.NewRecordWriter(pool)
	reg := registry.New(sqlxDB)
	retention := time.Duration(cfg.Database.RetentionPeriod) * 24 * time.Hour
	rd := reader.New(sqlxDB, store, retention)
	arch := archive.New(sqlxDB, store, log, retention, cfg.Scheduler.ArchiveBatchSize, m)
	dispatcher := alert.New(reg, log, buildSinks(cfg.Alert, log)).WithMetrics(m)
	sched := scheduler.New(reg, rd, dispatcher, m, log, cfg.Scheduler.NumWorkers)

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: httpapi.New(writer, log, []byte(cfg.Server.JWTSecret)),
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	group.Go(func() error {
		sched.Run(gctx)
		return nil
	})

	group.Go(func() error {
		runArchiveLoop(gctx, arch, cfg.Scheduler.ArchiveInterval, log)
		return nil
	})

	if len(cfg.Kafka.Brokers) > 0 {
		group.Go(func() error {
			return runKafkaConsumer(gctx, cfg.Kafka, writer, log)
		})
	}

	if cfg.RabbitMQ.Address != "" {
		group.Go(func() error {
			return runRabbitMQConsumer(gctx, cfg.RabbitMQ, writer, log)
		})
	}

	if cfg.Redis.Address != "" {
		group.Go(func() error {
			return consumer.NewRedisConsumer(cfg.Redis.Address, cfg.Redis.Channel, writer, log).Run(gctx)
		})
	}

	return group.Wait()
}

func buildObjectStore(ctx context.Context, cfg config.ObjectStoreSettings) (objstore.Store, error) {
	switch cfg.StorageType {
	case config.StorageAws:
		return objstore.NewAws(ctx, cfg.Bucket, cfg.Region)
	case config.StorageGoogle:
		return objstore.NewGoogle(ctx, cfg.Bucket)
	case config.StorageAzure:
		cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
		if err != nil {
			return nil, fmt.Errorf("building azure credential: %w", err)
		}
		return objstore.NewAzure(cfg.StorageURI, cfg.Bucket, *cred)
	default:
		return objstore.NewLocal(cfg.StorageRoot)
	}
}

func buildSinks(cfg config.AlertSettings, log *zap.Logger) map[alert.DispatchType]alert.Sink {
	sinks := map[alert.DispatchType]alert.Sink{
		alert.DispatchConsole: alert.NewConsoleSink(log),
	}
	if cfg.SlackWebhookURL != "" {
		sinks[alert.DispatchSlack] = alert.NewSlackSink(cfg.SlackWebhookURL, nil)
	}
	if cfg.OpsGenieAPIKey != "" {
		sinks[alert.DispatchOpsGenie] = alert.NewOpsGenieSink(cfg.OpsGenieAPIKey, nil)
	}
	if cfg.SMTPAddr != "" {
		var auth smtp.Auth
		if cfg.SMTPUsername != "" {
			host := smtpHost(cfg.SMTPAddr)
			auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, host)
		}
		sinks[alert.DispatchEmail] = alert.NewEmailSink(cfg.SMTPAddr, cfg.SMTPFrom, cfg.SMTPTo, auth)
	}
	return sinks
}

func smtpHost(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}

func runArchiveLoop(ctx context.Context, arch *archive.Archiver, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, rt := range []types.RecordType{types.RecordSpc, types.RecordPsi, types.RecordCustom} {
				if err := arch.RunOnce(ctx, rt); err != nil {
					log.Error("archiver pass failed", zap.String("record_type", string(rt)), zap.Error(err))
				}
			}
		}
	}
}

func runKafkaConsumer(ctx context.Context, cfg config.KafkaSettings, sink consumer.RecordSink, log *zap.Logger) error {
	scfg := sarama.NewConfig()
	switch cfg.OffsetReset {
	case "latest":
		scfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	default:
		scfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	}

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, scfg)
	if err != nil {
		return fmt.Errorf("kafka: new consumer group: %w", err)
	}
	defer group.Close()

	handler := consumer.NewKafkaConsumer(sink, log)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := group.Consume(ctx, cfg.Topics, handler); err != nil {
			log.Error("kafka: consume session ended", zap.Error(err))
		}
	}
}

func runRabbitMQConsumer(ctx context.Context, cfg config.RabbitMQSettings, sink consumer.RecordSink, log *zap.Logger) error {
	conn, err := amqp.Dial(cfg.Address)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}

	c, err := consumer.NewRabbitMQConsumer(ch, cfg.Queue, cfg.ConsumerTag, cfg.PrefetchCount, sink, log)
	if err != nil {
		return fmt.Errorf("rabbitmq: building consumer: %w", err)
	}
	return c.Run(ctx)
}
