// Package config loads Scouter's runtime configuration from environment
// variables (and an optional YAML file) into a typed Settings tree, the way
// the teacher's comp/core/config loads DD_-prefixed environment variables
// through a Viper instance. Scouter uses the SCOUTER_ prefix instead.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/DataDog/viper"
)

// StorageType enumerates the object-store backends the Archiver can target.
type StorageType string

const (
	StorageLocal  StorageType = "Local"
	StorageAws    StorageType = "Aws"
	StorageGoogle StorageType = "Google"
	StorageAzure  StorageType = "Azure"
)

// KafkaSettings configures the Kafka transport and consumer.
type KafkaSettings struct {
	Brokers          []string
	Topics           []string
	GroupID          string
	NumWorkers       int
	Username         string
	Password         string
	SecurityProtocol string
	SASLMechanism    string
	OffsetReset      string
	CertLocation     string
}

// RabbitMQSettings configures the RabbitMQ transport and consumer.
type RabbitMQSettings struct {
	Address       string
	Queue         string
	ConsumerTag   string
	PrefetchCount int
	NumConsumers  int
}

// RedisSettings configures the Redis pub/sub transport and consumer.
type RedisSettings struct {
	Address      string
	Channel      string
	NumConsumers int
}

// HTTPSettings configures the HTTP transport client.
type HTTPSettings struct {
	ServerURI string
	Username  string
	Password  string
	AuthToken string
	Timeout   time.Duration
}

// DatabaseSettings configures the hot-store connection pool.
type DatabaseSettings struct {
	ConnectionURI   string
	MaxConnections  int
	RetentionPeriod int // days
}

// ObjectStoreSettings configures the archival object store.
type ObjectStoreSettings struct {
	StorageRoot      string
	StorageURI       string
	StorageType      StorageType
	Region           string
	Bucket           string
	AzureAccountName string
	AzureAccountKey  string
}

// ServerSettings configures the HTTP listen address of scouter-server.
type ServerSettings struct {
	ListenAddr string
	JWTSecret  string
}

// AlertSettings configures the outbound alert sinks available to the
// Alert Dispatcher, beyond the always-available console sink.
type AlertSettings struct {
	SlackWebhookURL string
	OpsGenieAPIKey  string
	SMTPAddr        string
	SMTPFrom        string
	SMTPTo          []string
	SMTPUsername    string
	SMTPPassword    string
}

// SchedulerSettings configures the Drift Scheduler's worker pool and the
// Archiver's batch cadence.
type SchedulerSettings struct {
	NumWorkers       int
	ArchiveBatchSize int
	ArchiveInterval  time.Duration
}

// Settings is the fully resolved configuration tree for a scouter-server
// process.
type Settings struct {
	Kafka       KafkaSettings
	RabbitMQ    RabbitMQSettings
	Redis       RedisSettings
	HTTP        HTTPSettings
	Database    DatabaseSettings
	ObjectStore ObjectStoreSettings
	Server      ServerSettings
	Alert       AlertSettings
	Scheduler   SchedulerSettings
	LogLevel    string
}

// Load builds Settings from environment variables prefixed SCOUTER_, with
// an optional YAML config file overlay at path (ignored if empty or
// missing).
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("scouter")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		}
	}

	s := &Settings{
		Kafka: KafkaSettings{
			Brokers:          v.GetStringSlice("kafka.brokers"),
			Topics:           v.GetStringSlice("kafka.topics"),
			GroupID:          v.GetString("kafka.group_id"),
			NumWorkers:       v.GetInt("kafka.num_workers"),
			Username:         v.GetString("kafka.username"),
			Password:         v.GetString("kafka.password"),
			SecurityProtocol: v.GetString("kafka.security_protocol"),
			SASLMechanism:    v.GetString("kafka.sasl_mechanism"),
			OffsetReset:      v.GetString("kafka.offset_reset"),
			CertLocation:     v.GetString("kafka.cert_location"),
		},
		RabbitMQ: RabbitMQSettings{
			Address:       v.GetString("rabbitmq.address"),
			Queue:         v.GetString("rabbitmq.queue"),
			ConsumerTag:   v.GetString("rabbitmq.consumer_tag"),
			PrefetchCount: v.GetInt("rabbitmq.prefetch_count"),
			NumConsumers:  v.GetInt("rabbitmq.num_consumers"),
		},
		Redis: RedisSettings{
			Address:      v.GetString("redis.address"),
			Channel:      v.GetString("redis.channel"),
			NumConsumers: v.GetInt("redis.num_consumers"),
		},
		HTTP: HTTPSettings{
			ServerURI: v.GetString("http.server_uri"),
			Username:  v.GetString("http.username"),
			Password:  v.GetString("http.password"),
			AuthToken: v.GetString("http.auth_token"),
			Timeout:   v.GetDuration("http.timeout"),
		},
		Database: DatabaseSettings{
			ConnectionURI:   v.GetString("database.connection_uri"),
			MaxConnections:  v.GetInt("database.max_connections"),
			RetentionPeriod: v.GetInt("database.retention_period"),
		},
		ObjectStore: ObjectStoreSettings{
			StorageRoot:      v.GetString("objectstore.storage_root"),
			StorageURI:       v.GetString("objectstore.storage_uri"),
			StorageType:      StorageType(v.GetString("objectstore.storage_type")),
			Region:           v.GetString("objectstore.region"),
			Bucket:           v.GetString("objectstore.bucket"),
			AzureAccountName: v.GetString("objectstore.azure_account_name"),
			AzureAccountKey:  v.GetString("objectstore.azure_account_key"),
		},
		Server: ServerSettings{
			ListenAddr: v.GetString("server.listen_addr"),
			JWTSecret:  v.GetString("server.jwt_secret"),
		},
		Alert: AlertSettings{
			SlackWebhookURL: v.GetString("alert.slack_webhook_url"),
			OpsGenieAPIKey:  v.GetString("alert.opsgenie_api_key"),
			SMTPAddr:        v.GetString("alert.smtp_addr"),
			SMTPFrom:        v.GetString("alert.smtp_from"),
			SMTPTo:          v.GetStringSlice("alert.smtp_to"),
			SMTPUsername:    v.GetString("alert.smtp_username"),
			SMTPPassword:    v.GetString("alert.smtp_password"),
		},
		Scheduler: SchedulerSettings{
			NumWorkers:       v.GetInt("scheduler.num_workers"),
			ArchiveBatchSize: v.GetInt("scheduler.archive_batch_size"),
			ArchiveInterval:  v.GetDuration("scheduler.archive_interval"),
		},
		LogLevel: v.GetString("log_level"),
	}

	return s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("kafka.num_workers", 4)
	v.SetDefault("kafka.offset_reset", "earliest")
	v.SetDefault("rabbitmq.prefetch_count", 10)
	v.SetDefault("rabbitmq.num_consumers", 2)
	v.SetDefault("redis.num_consumers", 2)
	v.SetDefault("http.timeout", 60*time.Second)
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.retention_period", 30)
	v.SetDefault("objectstore.storage_type", "Local")
	v.SetDefault("objectstore.storage_root", "./scouter-archive")
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("scheduler.num_workers", 4)
	v.SetDefault("scheduler.archive_batch_size", 1000)
	v.SetDefault("scheduler.archive_interval", 10*time.Minute)
	v.SetDefault("log_level", "info")
}
