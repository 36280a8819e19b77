package configloader

import (
	"time"

	"github.com/bionicotaku/lingo-services-ingestion/internal/infrastructure/logger"

	"github.com/bionicotaku/lingo-utils/gcpubsub"
	obswire "github.com/bionicotaku/lingo-utils/observability"
	outboxcfg "github.com/bionicotaku/lingo-utils/outbox/config"
	lpublisher "github.com/bionicotaku/lingo-utils/outbox/publisher"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/wire"
)

// ProviderSet 暴露配置衍生的依赖，供 Wire 图引用。
var ProviderSet = wire.NewSet(
	ProvideLoader,
	ProvideRuntimeConfig,
	ProvideServiceMetadata,
	ProvideDatabaseConfig,
	ProvideStorageConfig,
	ProvideJanitorConfig,
	ProvideTxManagerConfig,
	ProvideOutboxConfig,
	ProvideLoggerConfig,
	ProvideObservabilityConfig,
)

// ProvideLoader 从运行参数构建配置加载器。
func ProvideLoader(params Params) (*Loader, error) {
	return Build(params)
}

// ProvideRuntimeConfig 暴露强类型运行时配置。
func ProvideRuntimeConfig(l *Loader) *RuntimeConfig {
	if l == nil {
		return nil
	}
	return l.Config
}

// ProvideServiceMetadata 暴露解析完成的服务元信息。
func ProvideServiceMetadata(l *Loader) ServiceMetadata {
	if l == nil {
		return ServiceMetadata{}
	}
	return l.Service
}

// ProvideDatabaseConfig 返回数据库配置片段。
func ProvideDatabaseConfig(cfg *RuntimeConfig) DatabaseConfig {
	if cfg == nil {
		return DatabaseConfig{}
	}
	return cfg.Database
}

// ProvideStorageConfig 返回对象存储配置片段。
func ProvideStorageConfig(cfg *RuntimeConfig) StorageConfig {
	if cfg == nil {
		return StorageConfig{}
	}
	return cfg.Storage
}

// ProvideJanitorConfig 返回清理任务配置片段。
func ProvideJanitorConfig(cfg *RuntimeConfig) JanitorConfig {
	if cfg == nil {
		return JanitorConfig{}
	}
	return cfg.Janitor
}

// ProvideTxManagerConfig 将事务配置转换为 txmanager 期望的结构。
func ProvideTxManagerConfig(cfg *RuntimeConfig) txmanager.Config {
	if cfg == nil {
		return txmanager.Config{}
	}
	tx := cfg.Database.Transaction
	return txmanager.Config{
		DefaultIsolation: tx.DefaultIsolation,
		DefaultTimeout:   secondsToDuration(tx.DefaultTimeoutSeconds),
		LockTimeout:      secondsToDuration(tx.LockTimeoutSeconds),
		MaxRetries:       tx.MaxRetries,
	}
}

// ProvideOutboxConfig 将 Outbox/Inbox 配置转换为共享库期望的结构。
// Schema 与数据库 schema 对齐，outbox/inbox 表与业务表同库同 schema。
func ProvideOutboxConfig(cfg *RuntimeConfig) outboxcfg.Config {
	if cfg == nil {
		return outboxcfg.Config{}
	}
	ob := cfg.Messaging.Outbox
	in := cfg.Messaging.Inbox
	return outboxcfg.Config{
		Schema: cfg.Database.Schema,
		Publisher: lpublisher.Config{
			BatchSize:      ob.BatchSize,
			TickInterval:   secondsToDuration(ob.TickIntervalSeconds),
			InitialBackoff: secondsToDuration(ob.InitialBackoffSeconds),
			MaxBackoff:     secondsToDuration(ob.MaxBackoffSeconds),
			MaxAttempts:    ob.MaxAttempts,
			PublishTimeout: secondsToDuration(ob.PublishTimeoutSeconds),
			Workers:        ob.Workers,
			LockTTL:        secondsToDuration(ob.LockTTLSeconds),
			LoggingEnabled: ob.LoggingEnabled,
			MetricsEnabled: ob.MetricsEnabled,
		},
		Inbox: outboxcfg.InboxConfig{
			SourceService:  in.SourceService,
			MaxConcurrency: in.MaxConcurrency,
		},
	}
}

// ProvideEventPubSubConfig 返回领域事件发布所用的 Pub/Sub 配置。
func ProvideEventPubSubConfig(cfg *RuntimeConfig) gcpubsub.Config {
	if cfg == nil {
		return gcpubsub.Config{}
	}
	ps := cfg.Messaging.PubSub
	return gcpubsub.Config{
		ProjectID:        ps.ProjectID,
		TopicID:          ps.TopicID,
		EnableLogging:    ps.EnableLogging,
		EnableMetrics:    ps.EnableMetrics,
		EmulatorEndpoint: ps.EmulatorEndpoint,
	}
}

// ProvideStoragePubSubConfig 返回订阅 GCS 对象通知所用的 Pub/Sub 配置。
func ProvideStoragePubSubConfig(cfg *RuntimeConfig) gcpubsub.Config {
	if cfg == nil {
		return gcpubsub.Config{}
	}
	ps := cfg.Messaging.PubSub
	return gcpubsub.Config{
		ProjectID:        ps.ProjectID,
		TopicID:          ps.StorageTopicID,
		SubscriptionID:   ps.StorageSubscription,
		EnableLogging:    ps.EnableLogging,
		EnableMetrics:    ps.EnableMetrics,
		EmulatorEndpoint: ps.EmulatorEndpoint,
	}
}

// ProvideLoggerConfig 从服务元信息构建日志配置。
func ProvideLoggerConfig(meta ServiceMetadata) logger.Config {
	return logger.Config{
		Service: meta.Name,
		Version: meta.Version,
		HostID:  meta.InstanceID,
		Env:     meta.Environment,
	}
}

// ProvideObservabilityConfig 将精简的可观测性配置展开为 observability 包的规范化结构。
func ProvideObservabilityConfig(cfg *RuntimeConfig) obswire.ObservabilityConfig {
	if cfg == nil {
		return obswire.ObservabilityConfig{}
	}
	obs := cfg.Observability
	out := obswire.ObservabilityConfig{}
	if obs.Tracing.Enabled {
		out.Tracing = &obswire.TracingConfig{
			Enabled:       obs.Tracing.Enabled,
			Exporter:      obs.Tracing.Exporter,
			Endpoint:      obs.Tracing.Endpoint,
			Insecure:      obs.Tracing.Insecure,
			SamplingRatio: obs.Tracing.SamplingRatio,
			Required:      obs.Tracing.Required,
		}
	}
	if obs.Metrics.Enabled {
		out.Metrics = &obswire.MetricsConfig{
			Enabled:  obs.Metrics.Enabled,
			Exporter: obs.Metrics.Exporter,
			Endpoint: obs.Metrics.Endpoint,
			Insecure: obs.Metrics.Insecure,
			Interval: secondsToDuration(obs.Metrics.IntervalSeconds),
			Required: obs.Metrics.Required,
		}
	}
	return out
}

func secondsToDuration(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
