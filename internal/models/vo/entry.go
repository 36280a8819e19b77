// Package vo 定义视图对象（View Objects），用于向上层传递业务数据。
// VO 对象由 Service 层返回，隔离内部数据结构。
package vo

import (
	"time"

	"github.com/bionicotaku/lingo-services-ingestion/internal/models/po"

	"github.com/google/uuid"
)

// EntryView 封装条目的完整快照，供调用方读取。
type EntryView struct {
	EntryID    uuid.UUID      `json:"entry_id"`
	Source     po.EntrySource `json:"source"`
	Status     po.EntryStatus `json:"status"`
	Visibility po.Visibility  `json:"visibility"`
	AccessTier po.AccessTier  `json:"access_tier"`

	Title             string   `json:"title"`
	Description       *string  `json:"description"`
	DurationSeconds   *int32   `json:"duration_seconds"`
	ThumbnailRef      *string  `json:"thumbnail_ref"`
	Tags              []string `json:"tags"`
	MetadataCompleted bool     `json:"metadata_completed"`
	LegacyImport      bool     `json:"legacy_import"`

	// 上传绑定（仅 source=upload）
	PendingObjectKey *string       `json:"pending_object_key,omitempty"`
	HostedKey        *string       `json:"hosted_key,omitempty"`
	TrustMode        *po.TrustMode `json:"trust_mode,omitempty"`
	VerifiedChecksum *string       `json:"verified_checksum,omitempty"`
	MimeType         *string       `json:"mime_type,omitempty"`

	// 外部引用（仅 source=external_reference）
	ExternalVideoID *string `json:"external_video_id,omitempty"`

	PublishedAt *time.Time `json:"published_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewEntryView 从持久化实体构造 VO。
func NewEntryView(entry *po.Entry) *EntryView {
	if entry == nil {
		return nil
	}
	view := &EntryView{
		EntryID:           entry.EntryID,
		Source:            entry.Source,
		Status:            entry.Status,
		Visibility:        entry.Visibility,
		AccessTier:        entry.AccessTier,
		Title:             entry.Title,
		Description:       entry.Description,
		DurationSeconds:   entry.DurationSeconds,
		ThumbnailRef:      entry.ThumbnailRef,
		Tags:              append([]string(nil), entry.Tags...), // 防御性拷贝
		MetadataCompleted: entry.MetadataCompleted,
		LegacyImport:      entry.LegacyImport,
		PublishedAt:       entry.PublishedAt,
		DeletedAt:         entry.DeletedAt,
		CreatedAt:         entry.CreatedAt,
		UpdatedAt:         entry.UpdatedAt,
	}
	if up := entry.Upload; up != nil {
		view.PendingObjectKey = up.PendingObjectKey
		view.HostedKey = up.HostedKey
		view.TrustMode = up.TrustMode
		view.VerifiedChecksum = up.VerifiedChecksum
		view.MimeType = up.MimeType
	}
	if ext := entry.External; ext != nil {
		id := ext.ExternalVideoID
		view.ExternalVideoID = &id
	}
	return view
}

// ReservationResult 是 Reserve 阶段返回给调用方的结果。
type ReservationResult struct {
	Entry            *EntryView `json:"entry"`
	PendingObjectKey string     `json:"pending_object_key"`
	UploadURL        string     `json:"upload_url"`
	UploadURLExpires time.Time  `json:"upload_url_expires"`
}
