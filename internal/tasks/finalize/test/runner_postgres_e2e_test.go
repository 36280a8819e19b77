package finalize_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/pstest"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/bionicotaku/lingo-services-ingestion/internal/models/po"
	"github.com/bionicotaku/lingo-services-ingestion/internal/repositories"
	"github.com/bionicotaku/lingo-services-ingestion/internal/services"
	"github.com/bionicotaku/lingo-services-ingestion/internal/tasks/finalize"
	"github.com/bionicotaku/lingo-utils/gcpubsub"
	outboxcfg "github.com/bionicotaku/lingo-utils/outbox/config"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/docker/go-connections/nat"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testBucket = "ingestion-raw-test"

// statUnavailable 兜底 ObjectInspector：通知总是携带对象属性，不应触达实时 Stat。
type statUnavailable struct{}

func (statUnavailable) Stat(context.Context, string, string) (*services.ObjectStat, error) {
	return nil, services.ErrObjectNotFound
}

type finalizeRunnerEnv struct {
	ctx       context.Context
	pool      *pgxpool.Pool
	entryRepo *repositories.EntryRepository
	publisher gcpubsub.Publisher
	cleanup   func()
}

func newFinalizeRunnerEnv(t *testing.T) *finalizeRunnerEnv {
	t.Helper()

	ctx := context.Background()

	dsn, terminate := startPostgres(ctx, t)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	applyMigrations(ctx, t, pool)

	logger := log.NewStdLogger(io.Discard)

	entryRepo := repositories.NewEntryRepository(pool, logger)
	inboxRepo := repositories.NewInboxRepository(pool, logger, outboxcfg.Config{Schema: "catalog"})
	outboxRepo := repositories.NewOutboxRepository(pool, logger, outboxcfg.Config{Schema: "catalog"})

	txMgr, err := txmanager.NewManager(pool, txmanager.Config{}, txmanager.Dependencies{Logger: logger})
	require.NoError(t, err)

	finalizeSvc, err := services.NewFinalizeService(entryRepo, outboxRepo, statUnavailable{}, txMgr, testBucket, logger)
	require.NoError(t, err)

	server := pstest.NewServer()

	projectID := "test-project"
	topicID := "gcs.object-finalize"
	subscriptionID := "ingestion.object-finalize"

	topicName := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err = server.GServer.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)

	subscriptionName := fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subscriptionID)
	_, err = server.GServer.CreateSubscription(ctx, &pubsubpb.Subscription{Name: subscriptionName, Topic: topicName})
	require.NoError(t, err)

	enableMetrics := true
	component, componentCleanup, err := gcpubsub.NewComponent(ctx, gcpubsub.Config{
		ProjectID:        projectID,
		TopicID:          topicID,
		SubscriptionID:   subscriptionID,
		EnableLogging:    boolPtr(false),
		EnableMetrics:    &enableMetrics,
		EmulatorEndpoint: server.Addr,
	}, gcpubsub.Dependencies{Logger: logger})
	require.NoError(t, err)

	publisher := gcpubsub.ProvidePublisher(component)
	subscriber := gcpubsub.ProvideSubscriber(component)

	runner, err := finalize.NewRunner(finalize.RunnerParams{
		Subscriber: subscriber,
		InboxRepo:  inboxRepo,
		Finalize:   finalizeSvc,
		TxManager:  txMgr,
		Bucket:     testBucket,
		Logger:     logger,
		Config: outboxcfg.InboxConfig{
			SourceService:  "gcs",
			MaxConcurrency: 4,
		},
	})
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runner.Run(runCtx)
	}()

	cleanup := func() {
		cancel()
		select {
		case runErr := <-errCh:
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				t.Fatalf("finalize runner stopped with error: %v", runErr)
			}
		case <-time.After(time.Second):
			t.Fatalf("finalize runner did not stop in time")
		}
		componentCleanup()
		_ = server.Close()
		terminate()
		pool.Close()
	}

	return &finalizeRunnerEnv{
		ctx:       ctx,
		pool:      pool,
		entryRepo: entryRepo,
		publisher: publisher,
		cleanup:   cleanup,
	}
}

func (e *finalizeRunnerEnv) Shutdown() {
	if e != nil && e.cleanup != nil {
		e.cleanup()
	}
}

func insertPendingEntry(ctx context.Context, t *testing.T, repo *repositories.EntryRepository, mode po.TrustMode, declared *string, declaredSize *int64) *po.Entry {
	t.Helper()
	entryID := uuid.New()
	pendingKey := fmt.Sprintf("raw_media/%s/%s", entryID, uuid.New())
	entry := &po.Entry{
		EntryID:    entryID,
		Source:     po.SourceUpload,
		Status:     po.StatusDraft,
		Visibility: po.VisibilityUnlisted,
		AccessTier: po.TierFree,
		Title:      "Runner Test",
		Upload: &po.UploadBinding{
			PendingObjectKey: &pendingKey,
			TrustMode:        &mode,
			DeclaredChecksum: declared,
			DeclaredFileSize: declaredSize,
		},
	}
	_, err := repo.Insert(ctx, nil, entry)
	require.NoError(t, err)
	return entry
}

func publishFinalizeNotification(ctx context.Context, t *testing.T, publisher gcpubsub.Publisher, objectName, generation, md5Base64 string, size int64) {
	t.Helper()
	payload := map[string]any{
		"bucket":      testBucket,
		"name":        objectName,
		"generation":  generation,
		"size":        fmt.Sprintf("%d", size),
		"contentType": "video/mp4",
		"md5Hash":     md5Base64,
		"crc32c":      "AAAAAA==",
		"etag":        "etag-" + generation,
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	attrs := map[string]string{
		"event_type":       "OBJECT_FINALIZE",
		"event_id":         fmt.Sprintf("%s/%s#%s", testBucket, objectName, generation),
		"bucketId":         testBucket,
		"objectId":         objectName,
		"objectGeneration": generation,
		"schema_version":   "v1",
	}

	_, err = publisher.Publish(ctx, gcpubsub.Message{Data: data, Attributes: attrs})
	require.NoError(t, err)
}

type entryRow struct {
	Status           string
	PendingObjectKey string
	HostedKey        string
	VerifiedChecksum string
	MimeType         string
	Deleted          bool
}

func waitForEntryRow(ctx context.Context, t *testing.T, pool *pgxpool.Pool, entryID uuid.UUID, timeout time.Duration, predicate func(entryRow) bool) *entryRow {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		row := pool.QueryRow(ctx, `select status, pending_object_key, hosted_key, verified_checksum, mime_type, deleted_at from catalog.entries where entry_id = $1`, entryID)
		var status string
		var pending, hosted, verified, mime pgtype.Text
		var deletedAt pgtype.Timestamptz
		err := row.Scan(&status, &pending, &hosted, &verified, &mime, &deletedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			t.Fatalf("scan entry row: %v", err)
		}
		item := entryRow{
			Status:           status,
			PendingObjectKey: pending.String,
			HostedKey:        hosted.String,
			VerifiedChecksum: verified.String,
			MimeType:         mime.String,
			Deleted:          deletedAt.Valid,
		}
		if predicate == nil || predicate(item) {
			return &item
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

func countEntryEvents(ctx context.Context, t *testing.T, pool *pgxpool.Pool, entryID uuid.UUID, eventType string) int64 {
	t.Helper()
	row := pool.QueryRow(ctx, `select count(*) from catalog.outbox_events where event_type = $1 and aggregate_id = $2`, eventType, entryID)
	var count int64
	require.NoError(t, row.Scan(&count))
	return count
}

func TestFinalizeRunner_ObjectFinalizePromotesEntry(t *testing.T) {
	env := newFinalizeRunnerEnv(t)
	defer env.Shutdown()

	ctx := env.ctx
	md5Hex := "d41d8cd98f00b204e9800998ecf8427e"
	md5B64 := "1B2M2Y8AsgTpgAmY7PhCfg=="
	size := int64(4 * 1024 * 1024)

	entry := insertPendingEntry(ctx, t, env.entryRepo, po.TrustModeA, &md5Hex, &size)
	pendingKey := *entry.Upload.PendingObjectKey

	publishFinalizeNotification(ctx, t, env.publisher, pendingKey, "1", md5B64, size)

	row := waitForEntryRow(ctx, t, env.pool, entry.EntryID, 20*time.Second, func(r entryRow) bool {
		return r.HostedKey == pendingKey && r.PendingObjectKey == "" && r.VerifiedChecksum == md5Hex
	})
	require.NotNil(t, row, "entry should be finalized")
	require.Equal(t, "video/mp4", row.MimeType)
	require.Equal(t, string(po.StatusDraft), row.Status)

	require.EqualValues(t, 1, countEntryEvents(ctx, t, env.pool, entry.EntryID, "entry.finalized"))

	// 同一通知重投：inbox 去重或 finalize 冲突跳过，均不得产生第二个事件。
	publishFinalizeNotification(ctx, t, env.publisher, pendingKey, "1", md5B64, size)
	time.Sleep(500 * time.Millisecond)
	require.EqualValues(t, 1, countEntryEvents(ctx, t, env.pool, entry.EntryID, "entry.finalized"))
}

func TestFinalizeRunner_DigestMismatchKeepsPending(t *testing.T) {
	env := newFinalizeRunnerEnv(t)
	defer env.Shutdown()

	ctx := env.ctx
	declared := "d41d8cd98f00b204e9800998ecf8427e"
	size := int64(2 * 1024 * 1024)

	entry := insertPendingEntry(ctx, t, env.entryRepo, po.TrustModeA, &declared, &size)
	pendingKey := *entry.Upload.PendingObjectKey

	// md5("hello")，与声明不符
	publishFinalizeNotification(ctx, t, env.publisher, pendingKey, "3", "XUFAKrxLKna5cZ2REBfFkg==", size)

	// 完整性不符会被 ack，行保持 pending 供重新上传。
	require.Eventually(t, func() bool {
		return countProcessedInbox(ctx, t, env.pool) == 1
	}, 20*time.Second, 50*time.Millisecond, "mismatch notification should be acked")

	row := waitForEntryRow(ctx, t, env.pool, entry.EntryID, 2*time.Second, nil)
	require.NotNil(t, row)
	require.Equal(t, pendingKey, row.PendingObjectKey)
	require.Empty(t, row.HostedKey)
	require.Empty(t, row.VerifiedChecksum)

	require.EqualValues(t, 0, countEntryEvents(ctx, t, env.pool, entry.EntryID, "entry.finalized"))
}

func TestFinalizeRunner_UnknownObjectIsAcked(t *testing.T) {
	env := newFinalizeRunnerEnv(t)
	defer env.Shutdown()

	ctx := env.ctx
	objectName := fmt.Sprintf("raw_media/%s/%s", uuid.New(), uuid.New())

	publishFinalizeNotification(ctx, t, env.publisher, objectName, "7", "1B2M2Y8AsgTpgAmY7PhCfg==", 1)

	require.Eventually(t, func() bool {
		return countProcessedInbox(ctx, t, env.pool) == 1
	}, 20*time.Second, 50*time.Millisecond, "unknown object notification should be acked")
}

// countProcessedInbox 统计已标记 processed 的 inbox 行。
// 行主键是共享库从通知 ID 派生的 uuid，测试侧无法复原，按计数断言。
func countProcessedInbox(ctx context.Context, t *testing.T, pool *pgxpool.Pool) int64 {
	t.Helper()
	var count int64
	require.NoError(t, pool.QueryRow(ctx,
		`select count(*) from catalog.inbox_events where processed_at is not null`).Scan(&count))
	return count
}

func boolPtr(v bool) *bool { return &v }

func startPostgres(ctx context.Context, t *testing.T) (string, func()) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "catalog",
		},
		WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
			return fmt.Sprintf("postgres://postgres:postgres@%s:%s/catalog?sslmode=disable", host, port.Port())
		}).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("skip finalize runner integration: failed to start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/catalog?sslmode=disable", host, port.Port())
	cleanup := func() {
		termCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(termCtx)
	}
	return dsn, cleanup
}

func applyMigrations(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	migrationsDir := findMigrationsDir(t)
	entries, err := os.ReadDir(migrationsDir)
	require.NoError(t, err)

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		paths = append(paths, filepath.Join(migrationsDir, entry.Name()))
	}
	sort.Strings(paths)

	for _, path := range paths {
		sqlBytes, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		_, execErr := pool.Exec(ctx, string(sqlBytes))
		require.NoErrorf(t, execErr, "apply migration %s", filepath.Base(path))
	}
}

func findMigrationsDir(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for dir != "" && dir != "/" {
		candidate := filepath.Join(dir, "migrations")
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}

	t.Fatalf("migrations directory not found from working directory")
	return ""
}
