package events

import (
	"errors"
	"time"

	"github.com/bionicotaku/lingo-services-ingestion/internal/models/po"

	"github.com/google/uuid"
)

// Kind 标识领域事件类型。
type Kind int

// 领域事件类型常量。
const (
	// KindUnknown 表示未识别的事件类型。
	KindUnknown Kind = iota
	// KindEntryReserved 表示上传预约已创建。
	KindEntryReserved
	// KindEntryCreated 表示外部引用条目已创建。
	KindEntryCreated
	// KindEntryFinalized 表示上传资产已确认落位。
	KindEntryFinalized
	// KindEntryPublished 表示条目已发布。
	KindEntryPublished
	// KindEntryArchived 表示条目已归档。
	KindEntryArchived
	// KindEntryDeleted 表示条目已软删除。
	KindEntryDeleted
	// KindEntryUpdated 表示条目元数据已更新。
	KindEntryUpdated
)

func (k Kind) String() string {
	switch k {
	case KindEntryReserved:
		return "entry.reserved"
	case KindEntryCreated:
		return "entry.created"
	case KindEntryFinalized:
		return "entry.finalized"
	case KindEntryPublished:
		return "entry.published"
	case KindEntryArchived:
		return "entry.archived"
	case KindEntryDeleted:
		return "entry.deleted"
	case KindEntryUpdated:
		return "entry.updated"
	default:
		return "entry.unknown"
	}
}

const (
	// AggregateTypeEntry 标识目录条目聚合类型，供 Outbox headers / attributes 使用。
	AggregateTypeEntry = "catalog_entry"
	// SchemaVersionV1 描述事件载荷的当前 schema 版本。
	SchemaVersionV1 = "v1"
)

var (
	// ErrNilEntry 在构建事件时条目实体为空。
	ErrNilEntry = errors.New("event builder: entry is nil")
	// ErrInvalidEventID 表示未提供合法的事件 ID。
	ErrInvalidEventID = errors.New("event builder: event id is required")
)

// DomainEvent 表示领域层生成的标准事件，载荷以 JSON 形式入 Outbox。
type DomainEvent struct {
	EventID       uuid.UUID
	Kind          Kind
	AggregateID   uuid.UUID
	AggregateType string
	Version       int64
	OccurredAt    time.Time
	Payload       EntrySnapshot
}

// EntrySnapshot 描述事件载荷中携带的条目快照。
type EntrySnapshot struct {
	EntryID           string   `json:"entry_id"`
	Source            string   `json:"source"`
	Status            string   `json:"status"`
	Visibility        string   `json:"visibility"`
	AccessTier        string   `json:"access_tier"`
	Title             string   `json:"title"`
	MetadataCompleted bool     `json:"metadata_completed"`
	LegacyImport      bool     `json:"legacy_import,omitempty"`
	PendingObjectKey  *string  `json:"pending_object_key,omitempty"`
	HostedKey         *string  `json:"hosted_key,omitempty"`
	TrustMode         *string  `json:"trust_mode,omitempty"`
	VerifiedChecksum  *string  `json:"verified_checksum,omitempty"`
	ExternalVideoID   *string  `json:"external_video_id,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	OccurredAt        string   `json:"occurred_at"`
}

// NewEntryEvent 基于持久化实体构建指定类型的领域事件。
func NewEntryEvent(kind Kind, entry *po.Entry, eventID uuid.UUID, occurredAt time.Time) (*DomainEvent, error) {
	if entry == nil {
		return nil, ErrNilEntry
	}
	if eventID == uuid.Nil {
		return nil, ErrInvalidEventID
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	occurredAt = occurredAt.UTC()

	snapshot := EntrySnapshot{
		EntryID:           entry.EntryID.String(),
		Source:            string(entry.Source),
		Status:            string(entry.Status),
		Visibility:        string(entry.Visibility),
		AccessTier:        string(entry.AccessTier),
		Title:             entry.Title,
		MetadataCompleted: entry.MetadataCompleted,
		LegacyImport:      entry.LegacyImport,
		Tags:              append([]string(nil), entry.Tags...),
		OccurredAt:        occurredAt.Format(time.RFC3339),
	}
	if up := entry.Upload; up != nil {
		snapshot.PendingObjectKey = up.PendingObjectKey
		snapshot.HostedKey = up.HostedKey
		snapshot.VerifiedChecksum = up.VerifiedChecksum
		if up.TrustMode != nil {
			mode := string(*up.TrustMode)
			snapshot.TrustMode = &mode
		}
	}
	if ext := entry.External; ext != nil {
		id := ext.ExternalVideoID
		snapshot.ExternalVideoID = &id
	}

	return &DomainEvent{
		EventID:       eventID,
		Kind:          kind,
		AggregateID:   entry.EntryID,
		AggregateType: AggregateTypeEntry,
		Version:       VersionFromTime(occurredAt),
		OccurredAt:    occurredAt,
		Payload:       snapshot,
	}, nil
}
