// Package repositories 提供数据访问层实现，负责与持久化存储交互。
// 该层实现 Service 层定义的 Repository 接口，隔离底层存储细节。
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-ingestion/internal/models/po"

	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// 存储层哨兵错误，由 Service 层映射为对外错误。
var (
	// ErrEntryNotFound 表示条目不存在。
	ErrEntryNotFound = errors.New("entry not found")
	// ErrExternalVideoIDTaken 表示 external_video_id 与某未删除行冲突。
	ErrExternalVideoIDTaken = errors.New("external_video_id already referenced by a live entry")
	// ErrPendingObjectKeyTaken 表示 pending_object_key 与某未决预约冲突。
	ErrPendingObjectKeyTaken = errors.New("pending_object_key already reserved")
)

// 部分唯一索引名称，见 migrations；23505 按索引名映射到对应哨兵。
const (
	constraintExternalVideoID  = "entries_external_video_id_live_key"
	constraintPendingObjectKey = "entries_pending_object_key_live_key"
)

// EntryRepository 封装 catalog.entries 表的访问逻辑。
// 所有方法接受可选的 txmanager.Session；传入时走事务连接。
type EntryRepository struct {
	pool *pgxpool.Pool
	log  *log.Helper
}

// NewEntryRepository 构造 EntryRepository。
func NewEntryRepository(pool *pgxpool.Pool, logger log.Logger) *EntryRepository {
	return &EntryRepository{
		pool: pool,
		log:  log.NewHelper(logger),
	}
}

// dbQuerier 同时被 pgxpool.Pool 与 pgx.Tx 满足。
type dbQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *EntryRepository) querier(sess txmanager.Session) dbQuerier {
	if sess != nil {
		return sess.Tx()
	}
	return r.pool
}

const entryColumns = `
	entry_id, source, status, visibility, access_tier,
	title, description, duration_seconds, thumbnail_ref, tags,
	metadata_completed, legacy_import,
	pending_object_key, hosted_key, trust_mode,
	declared_checksum, declared_file_size, declared_mime_type,
	verified_checksum, mime_type, original_filename,
	external_video_id, external_channel_id, external_playlist_ref,
	published_at, deleted_at, created_at, updated_at`

// Insert 插入新条目。
// 使用 INSERT ... RETURNING 获取数据库生成的时间戳。
func (r *EntryRepository) Insert(ctx context.Context, sess txmanager.Session, entry *po.Entry) (*po.Entry, error) {
	query := `
		INSERT INTO catalog.entries (
			entry_id, source, status, visibility, access_tier,
			title, description, duration_seconds, thumbnail_ref, tags,
			metadata_completed, legacy_import,
			pending_object_key, hosted_key, trust_mode,
			declared_checksum, declared_file_size, declared_mime_type,
			verified_checksum, mime_type, original_filename,
			external_video_id, external_channel_id, external_playlist_ref,
			published_at, deleted_at
		)
		VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12,
			$13, $14, $15,
			$16, $17, $18,
			$19, $20, $21,
			$22, $23, $24,
			$25, $26
		)
		RETURNING created_at, updated_at
	`

	args := flattenEntry(entry)
	err := r.querier(sess).QueryRow(ctx, query, args...).Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return nil, mapped
		}
		r.log.WithContext(ctx).Errorf("insert entry failed: entry_id=%s err=%v", entry.EntryID, err)
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	r.log.WithContext(ctx).Infof("inserted entry: entry_id=%s source=%s", entry.EntryID, entry.Source)
	return entry, nil
}

// Update 整行更新条目，updated_at 由数据库刷新。
// 查询不到时返回 ErrEntryNotFound。
func (r *EntryRepository) Update(ctx context.Context, sess txmanager.Session, entry *po.Entry) (*po.Entry, error) {
	query := `
		UPDATE catalog.entries
		SET
			status = $2, visibility = $3, access_tier = $4,
			title = $5, description = $6, duration_seconds = $7,
			thumbnail_ref = $8, tags = $9,
			metadata_completed = $10, legacy_import = $11,
			pending_object_key = $12, hosted_key = $13, trust_mode = $14,
			declared_checksum = $15, declared_file_size = $16, declared_mime_type = $17,
			verified_checksum = $18, mime_type = $19, original_filename = $20,
			external_video_id = $21, external_channel_id = $22, external_playlist_ref = $23,
			published_at = $24, deleted_at = $25,
			updated_at = now()
		WHERE entry_id = $1
		RETURNING updated_at
	`

	var (
		upload   = entry.Upload
		external = entry.External
	)
	args := []any{
		entry.EntryID,
		entry.Status, entry.Visibility, entry.AccessTier,
		entry.Title, entry.Description, entry.DurationSeconds,
		entry.ThumbnailRef, entry.Tags,
		entry.MetadataCompleted, entry.LegacyImport,
		uploadField(upload, func(u *po.UploadBinding) any { return u.PendingObjectKey }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.HostedKey }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.TrustMode }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.DeclaredChecksum }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.DeclaredFileSize }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.DeclaredMimeType }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.VerifiedChecksum }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.MimeType }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.OriginalFilename }),
		externalVideoID(external),
		externalField(external, func(e *po.ExternalReference) any { return e.ExternalChannelID }),
		externalField(external, func(e *po.ExternalReference) any { return e.ExternalPlaylistRef }),
		entry.PublishedAt, entry.DeletedAt,
	}

	err := r.querier(sess).QueryRow(ctx, query, args...).Scan(&entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		if mapped := mapUniqueViolation(err); mapped != nil {
			return nil, mapped
		}
		r.log.WithContext(ctx).Errorf("update entry failed: entry_id=%s err=%v", entry.EntryID, err)
		return nil, fmt.Errorf("update entry: %w", err)
	}

	return entry, nil
}

// GetByID 根据 entry_id 查询条目。
func (r *EntryRepository) GetByID(ctx context.Context, sess txmanager.Session, entryID uuid.UUID) (*po.Entry, error) {
	query := `SELECT` + entryColumns + `
		FROM catalog.entries
		WHERE entry_id = $1
	`
	return r.getOne(ctx, sess, query, entryID)
}

// GetByIDForUpdate 以行锁读取条目，finalize 等写路径在事务内串行化。
func (r *EntryRepository) GetByIDForUpdate(ctx context.Context, sess txmanager.Session, entryID uuid.UUID) (*po.Entry, error) {
	query := `SELECT` + entryColumns + `
		FROM catalog.entries
		WHERE entry_id = $1
		FOR UPDATE
	`
	return r.getOne(ctx, sess, query, entryID)
}

// GetByPendingObjectKey 按未决预约键查询，存储通知回调用它定位条目。
// 仅匹配未删除且尚未 finalize 的行。
func (r *EntryRepository) GetByPendingObjectKey(ctx context.Context, sess txmanager.Session, pendingKey string) (*po.Entry, error) {
	query := `SELECT` + entryColumns + `
		FROM catalog.entries
		WHERE pending_object_key = $1
		  AND hosted_key IS NULL
		  AND deleted_at IS NULL
	`
	return r.getOne(ctx, sess, query, pendingKey)
}

// ListExpiredPending 返回超过 cutoff 仍未 finalize 的预约行，供清理任务使用。
func (r *EntryRepository) ListExpiredPending(ctx context.Context, sess txmanager.Session, cutoff time.Time, limit int32) ([]*po.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT` + entryColumns + `
		FROM catalog.entries
		WHERE source = 'upload'
		  AND pending_object_key IS NOT NULL
		  AND hosted_key IS NULL
		  AND deleted_at IS NULL
		  AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.querier(sess).Query(ctx, query, cutoff.UTC(), limit)
	if err != nil {
		r.log.WithContext(ctx).Errorf("list expired pending failed: cutoff=%s err=%v", cutoff, err)
		return nil, fmt.Errorf("list expired pending: %w", err)
	}
	defer rows.Close()

	var entries []*po.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			r.log.WithContext(ctx).Errorf("scan entry row failed: %v", err)
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entry rows: %w", err)
	}
	return entries, nil
}

func (r *EntryRepository) getOne(ctx context.Context, sess txmanager.Session, query string, arg any) (*po.Entry, error) {
	row := r.querier(sess).QueryRow(ctx, query, arg)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		r.log.WithContext(ctx).Errorf("query entry failed: %v", err)
		return nil, fmt.Errorf("query entry: %w", err)
	}
	return entry, nil
}

// scanEntry 从行数据装配 tagged union 实体。
func scanEntry(row pgx.Row) (*po.Entry, error) {
	var (
		entry               po.Entry
		pendingObjectKey    *string
		hostedKey           *string
		trustMode           *po.TrustMode
		declaredChecksum    *string
		declaredFileSize    *int64
		declaredMimeType    *string
		verifiedChecksum    *string
		mimeType            *string
		originalFilename    *string
		externalVideoID     *string
		externalChannelID   *string
		externalPlaylistRef *string
	)

	err := row.Scan(
		&entry.EntryID, &entry.Source, &entry.Status, &entry.Visibility, &entry.AccessTier,
		&entry.Title, &entry.Description, &entry.DurationSeconds, &entry.ThumbnailRef, &entry.Tags,
		&entry.MetadataCompleted, &entry.LegacyImport,
		&pendingObjectKey, &hostedKey, &trustMode,
		&declaredChecksum, &declaredFileSize, &declaredMimeType,
		&verifiedChecksum, &mimeType, &originalFilename,
		&externalVideoID, &externalChannelID, &externalPlaylistRef,
		&entry.PublishedAt, &entry.DeletedAt, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	switch entry.Source {
	case po.SourceUpload:
		entry.Upload = &po.UploadBinding{
			PendingObjectKey: pendingObjectKey,
			HostedKey:        hostedKey,
			TrustMode:        trustMode,
			DeclaredChecksum: declaredChecksum,
			DeclaredFileSize: declaredFileSize,
			DeclaredMimeType: declaredMimeType,
			VerifiedChecksum: verifiedChecksum,
			MimeType:         mimeType,
			OriginalFilename: originalFilename,
		}
	case po.SourceExternalReference:
		if externalVideoID != nil {
			entry.External = &po.ExternalReference{
				ExternalVideoID:     *externalVideoID,
				ExternalChannelID:   externalChannelID,
				ExternalPlaylistRef: externalPlaylistRef,
			}
		}
	}
	return &entry, nil
}

// flattenEntry 展开实体为 Insert 的参数列表，与 INSERT 列顺序对应。
func flattenEntry(entry *po.Entry) []any {
	upload := entry.Upload
	external := entry.External
	return []any{
		entry.EntryID, entry.Source, entry.Status, entry.Visibility, entry.AccessTier,
		entry.Title, entry.Description, entry.DurationSeconds, entry.ThumbnailRef, entry.Tags,
		entry.MetadataCompleted, entry.LegacyImport,
		uploadField(upload, func(u *po.UploadBinding) any { return u.PendingObjectKey }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.HostedKey }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.TrustMode }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.DeclaredChecksum }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.DeclaredFileSize }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.DeclaredMimeType }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.VerifiedChecksum }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.MimeType }),
		uploadField(upload, func(u *po.UploadBinding) any { return u.OriginalFilename }),
		externalVideoID(external),
		externalField(external, func(e *po.ExternalReference) any { return e.ExternalChannelID }),
		externalField(external, func(e *po.ExternalReference) any { return e.ExternalPlaylistRef }),
		entry.PublishedAt, entry.DeletedAt,
	}
}

func uploadField(u *po.UploadBinding, pick func(*po.UploadBinding) any) any {
	if u == nil {
		return nil
	}
	return pick(u)
}

func externalField(e *po.ExternalReference, pick func(*po.ExternalReference) any) any {
	if e == nil {
		return nil
	}
	return pick(e)
}

func externalVideoID(e *po.ExternalReference) any {
	if e == nil {
		return nil
	}
	return e.ExternalVideoID
}

// mapUniqueViolation 将 23505 按索引名映射为领域哨兵；非唯一冲突返回 nil。
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch pgErr.ConstraintName {
	case constraintExternalVideoID:
		return ErrExternalVideoIDTaken
	case constraintPendingObjectKey:
		return ErrPendingObjectKeyTaken
	default:
		return fmt.Errorf("unique violation on %s: %w", pgErr.ConstraintName, err)
	}
}
