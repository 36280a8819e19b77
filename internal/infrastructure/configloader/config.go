// Package configloader 负责加载并规整服务运行时配置。
// 配置来源：YAML 配置文件 + .env 文件 + 环境变量覆盖。
package configloader

import (
	"fmt"
	"time"
)

// RuntimeConfig 聚合服务的全部强类型配置片段。
type RuntimeConfig struct {
	Database      DatabaseConfig      `json:"database"`
	Storage       StorageConfig       `json:"storage"`
	Messaging     MessagingConfig     `json:"messaging"`
	Janitor       JanitorConfig       `json:"janitor"`
	Observability ObservabilityConfig `json:"observability"`
}

// DatabaseConfig 描述 PostgreSQL 连接池参数。
// 时间类字段以秒为单位，避免配置解析依赖额外的 Duration 编解码。
type DatabaseConfig struct {
	DSN                      string            `json:"dsn"`
	Schema                   string            `json:"schema"`
	MaxConns                 int32             `json:"max_conns"`
	MinConns                 int32             `json:"min_conns"`
	MaxConnLifetimeSeconds   int               `json:"max_conn_lifetime_seconds"`
	MaxConnIdleTimeSeconds   int               `json:"max_conn_idle_time_seconds"`
	HealthCheckPeriodSeconds int               `json:"health_check_period_seconds"`
	PreparedStatements       bool              `json:"prepared_statements"`
	Transaction              TransactionConfig `json:"transaction"`
}

// TransactionConfig 描述 txmanager 的事务缺省参数。
type TransactionConfig struct {
	DefaultIsolation      string `json:"default_isolation"`
	DefaultTimeoutSeconds int    `json:"default_timeout_seconds"`
	LockTimeoutSeconds    int    `json:"lock_timeout_seconds"`
	MaxRetries            int    `json:"max_retries"`
}

// StorageConfig 描述对象存储与签名 URL 参数。
type StorageConfig struct {
	Bucket               string `json:"bucket"`
	SignerServiceAccount string `json:"signer_service_account"`
	SignedURLTTLSeconds  int    `json:"signed_url_ttl_seconds"`
	MaxUploadBytes       int64  `json:"max_upload_bytes"`
}

// MessagingConfig 描述 Pub/Sub、Outbox 与 Inbox 配置。
type MessagingConfig struct {
	PubSub PubSubConfig `json:"pubsub"`
	Outbox OutboxConfig `json:"outbox"`
	Inbox  InboxConfig  `json:"inbox"`
}

// PubSubConfig 描述 Pub/Sub 连接参数。
// Storage* 字段指向 GCS 通知所用的 topic/subscription，
// 顶层 Topic 为领域事件的发布目标。
type PubSubConfig struct {
	ProjectID           string `json:"project_id"`
	TopicID             string `json:"topic_id"`
	StorageTopicID      string `json:"storage_topic_id"`
	StorageSubscription string `json:"storage_subscription"`
	EmulatorEndpoint    string `json:"emulator_endpoint"`
	EnableLogging       *bool  `json:"enable_logging"`
	EnableMetrics       *bool  `json:"enable_metrics"`
}

// OutboxConfig 描述 Outbox 发布任务的调度参数。
type OutboxConfig struct {
	BatchSize              int   `json:"batch_size"`
	TickIntervalSeconds    int   `json:"tick_interval_seconds"`
	InitialBackoffSeconds  int   `json:"initial_backoff_seconds"`
	MaxBackoffSeconds      int   `json:"max_backoff_seconds"`
	MaxAttempts            int   `json:"max_attempts"`
	PublishTimeoutSeconds  int   `json:"publish_timeout_seconds"`
	Workers                int   `json:"workers"`
	LockTTLSeconds         int   `json:"lock_ttl_seconds"`
	LoggingEnabled         *bool `json:"logging_enabled"`
	MetricsEnabled         *bool `json:"metrics_enabled"`
}

// InboxConfig 描述存储通知消费侧的参数。
type InboxConfig struct {
	SourceService  string `json:"source_service"`
	MaxConcurrency int    `json:"max_concurrency"`
}

// JanitorConfig 描述过期预约清理任务的参数。
type JanitorConfig struct {
	ReservationTTLSeconds int   `json:"reservation_ttl_seconds"`
	SweepIntervalSeconds  int   `json:"sweep_interval_seconds"`
	BatchLimit            int32 `json:"batch_limit"`
}

// ObservabilityConfig 描述链路追踪与指标导出配置。
type ObservabilityConfig struct {
	Tracing TracingConfig `json:"tracing"`
	Metrics MetricsConfig `json:"metrics"`
}

// TracingConfig 为 OTel tracing 的精简配置。
type TracingConfig struct {
	Enabled       bool    `json:"enabled"`
	Exporter      string  `json:"exporter"`
	Endpoint      string  `json:"endpoint"`
	Insecure      bool    `json:"insecure"`
	SamplingRatio float64 `json:"sampling_ratio"`
	Required      bool    `json:"required"`
}

// MetricsConfig 为 OTel metrics 的精简配置。
type MetricsConfig struct {
	Enabled         bool   `json:"enabled"`
	Exporter        string `json:"exporter"`
	Endpoint        string `json:"endpoint"`
	Insecure        bool   `json:"insecure"`
	IntervalSeconds int    `json:"interval_seconds"`
	Required        bool   `json:"required"`
}

// 配置缺省值。
const (
	defaultSchema            = "catalog"
	defaultSignedURLTTL      = 30 * time.Minute
	defaultMaxUploadBytes    = int64(8) << 30 // 8 GiB
	defaultReservationTTL    = 24 * time.Hour
	defaultSweepInterval     = 10 * time.Minute
	defaultJanitorBatchLimit = int32(100)
	defaultInboxSource       = "gcs"
	defaultInboxConcurrency  = 4
)

// fillDefaults 为缺省字段补齐默认值。
func fillDefaults(cfg *RuntimeConfig) {
	if cfg.Database.Schema == "" {
		cfg.Database.Schema = defaultSchema
	}
	if cfg.Storage.SignedURLTTLSeconds <= 0 {
		cfg.Storage.SignedURLTTLSeconds = int(defaultSignedURLTTL.Seconds())
	}
	if cfg.Storage.MaxUploadBytes <= 0 {
		cfg.Storage.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.Janitor.ReservationTTLSeconds <= 0 {
		cfg.Janitor.ReservationTTLSeconds = int(defaultReservationTTL.Seconds())
	}
	if cfg.Janitor.SweepIntervalSeconds <= 0 {
		cfg.Janitor.SweepIntervalSeconds = int(defaultSweepInterval.Seconds())
	}
	if cfg.Janitor.BatchLimit <= 0 {
		cfg.Janitor.BatchLimit = defaultJanitorBatchLimit
	}
	if cfg.Messaging.Inbox.SourceService == "" {
		cfg.Messaging.Inbox.SourceService = defaultInboxSource
	}
	if cfg.Messaging.Inbox.MaxConcurrency <= 0 {
		cfg.Messaging.Inbox.MaxConcurrency = defaultInboxConcurrency
	}
}

// validate 对关键字段做显式校验，启动期尽早失败。
func validate(cfg *RuntimeConfig) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required (set DATABASE_URL)")
	}
	if cfg.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	if cfg.Database.MaxConns < 0 || cfg.Database.MinConns < 0 {
		return fmt.Errorf("database pool sizes must be non-negative")
	}
	if cfg.Database.MinConns > cfg.Database.MaxConns && cfg.Database.MaxConns > 0 {
		return fmt.Errorf("database.min_conns cannot exceed database.max_conns")
	}
	return nil
}

// SignedURLTTL 返回签名 URL 有效期。
func (s StorageConfig) SignedURLTTL() time.Duration {
	return time.Duration(s.SignedURLTTLSeconds) * time.Second
}

// ReservationTTL 返回预约有效期。
func (j JanitorConfig) ReservationTTL() time.Duration {
	return time.Duration(j.ReservationTTLSeconds) * time.Second
}

// SweepInterval 返回清扫周期。
func (j JanitorConfig) SweepInterval() time.Duration {
	return time.Duration(j.SweepIntervalSeconds) * time.Second
}
