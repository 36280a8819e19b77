// Package po 定义面向持久化的数据对象（Persistent Objects），由 Repository 层使用。
// PO 对象映射数据库表结构，不直接暴露给上层业务逻辑。
package po

import (
	"time"

	"github.com/google/uuid"
)

// EntrySource 表示条目的来源类型，创建后不可变更。
type EntrySource string

const (
	SourceUpload            EntrySource = "upload"             // 直接上传的二进制资产
	SourceExternalReference EntrySource = "external_reference" // 外部托管视频的引用
)

// EntryStatus 表示条目的生命周期状态
type EntryStatus string

// 生命周期状态常量定义
const (
	StatusDraft     EntryStatus = "draft"     // 初始状态，上传/补全元数据阶段
	StatusPublished EntryStatus = "published" // 已发布对外可见
	StatusArchived  EntryStatus = "archived"  // 管理员归档
)

// Visibility 表示条目的可见范围。
type Visibility string

const (
	VisibilityPublic     Visibility = "public"
	VisibilityUnlisted   Visibility = "unlisted"
	VisibilityRestricted Visibility = "restricted"
)

// AccessTier 表示访问所需的会员等级。
type AccessTier string

const (
	TierFree    AccessTier = "free"
	TierMember  AccessTier = "member"
	TierPremium AccessTier = "premium"
)

// TrustMode 表示上传条目采用的校验信任协议，预约时选定后不可变更。
type TrustMode string

const (
	// TrustModeA：客户端预先声明摘要，finalize 时服务端逐字节比对。
	TrustModeA TrustMode = "A"
	// TrustModeB：不接受预声明，finalize 时直接采信存储侧计算的摘要。
	TrustModeB TrustMode = "B"
)

// UploadBinding 保存 source=upload 条目专属的绑定与信任字段。
// PendingObjectKey 与 HostedKey 互斥：预约期间只有前者，finalize 后只有后者。
type UploadBinding struct {
	PendingObjectKey *string    // 预约的存储位置令牌，资产确认前有效
	HostedKey        *string    // 资产确认后的最终存储位置
	TrustMode        *TrustMode // 信任协议（A/B）；仅 legacy 回填行允许为空
	DeclaredChecksum *string    // Mode A 下客户端声明的摘要（32 位小写 hex）
	DeclaredFileSize *int64     // 客户端声明的文件大小（字节）
	DeclaredMimeType *string    // 客户端声明的 MIME 类型
	VerifiedChecksum *string    // finalize 时确认的摘要，只会写入一次
	MimeType         *string    // 存储侧确认的 MIME 类型
	OriginalFilename *string    // 原始文件名
}

// ExternalReference 保存 source=external_reference 条目专属的溯源字段。
type ExternalReference struct {
	ExternalVideoID     string  // 提供方分配的视频标识，未删除行内唯一
	ExternalChannelID   *string // 提供方频道标识
	ExternalPlaylistRef *string // 提供方播放列表引用
}

// Entry 表示 catalog.entries 表的数据库实体。
// 以 tagged union 方式建模：共享字段之外，Upload 与 External
// 有且仅有一个非 nil，与 Source 保持一致（不变量 1）。
type Entry struct {
	EntryID    uuid.UUID   // 主键（UUID v4），创建时生成
	Source     EntrySource // 来源类型，不可变更
	Status     EntryStatus // 生命周期状态
	Visibility Visibility  // 可见范围
	AccessTier AccessTier  // 访问等级

	Title             string
	Description       *string
	DurationSeconds   *int32
	ThumbnailRef      *string
	Tags              []string
	MetadataCompleted bool // 发布门槛之一：元数据是否补全

	// LegacyImport 标记历史回填行，创建后任何方向都不可翻转。
	LegacyImport bool

	PublishedAt *time.Time
	DeletedAt   *time.Time // 软删除标记，与 Status 正交
	CreatedAt   time.Time
	UpdatedAt   time.Time // 由 Store 在每次写入时维护

	Upload   *UploadBinding     // 仅 Source=upload 时非 nil
	External *ExternalReference // 仅 Source=external_reference 时非 nil
}

// IsDeleted 判断条目是否已被软删除。
func (e *Entry) IsDeleted() bool {
	return e != nil && e.DeletedAt != nil
}

// IsPendingUpload 判断条目是否处于未决的上传预约状态。
func (e *Entry) IsPendingUpload() bool {
	if e == nil || e.Source != SourceUpload || e.Upload == nil {
		return false
	}
	return e.Upload.PendingObjectKey != nil && e.Upload.HostedKey == nil
}

// Clone 返回条目的深拷贝，供 Guard/Enforcer 在比对前后状态时使用。
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	dup := *e
	dup.Tags = append([]string(nil), e.Tags...)
	dup.Description = clonePtr(e.Description)
	dup.DurationSeconds = clonePtr(e.DurationSeconds)
	dup.ThumbnailRef = clonePtr(e.ThumbnailRef)
	dup.PublishedAt = clonePtr(e.PublishedAt)
	dup.DeletedAt = clonePtr(e.DeletedAt)
	if e.Upload != nil {
		up := UploadBinding{
			PendingObjectKey: clonePtr(e.Upload.PendingObjectKey),
			HostedKey:        clonePtr(e.Upload.HostedKey),
			TrustMode:        clonePtr(e.Upload.TrustMode),
			DeclaredChecksum: clonePtr(e.Upload.DeclaredChecksum),
			DeclaredFileSize: clonePtr(e.Upload.DeclaredFileSize),
			DeclaredMimeType: clonePtr(e.Upload.DeclaredMimeType),
			VerifiedChecksum: clonePtr(e.Upload.VerifiedChecksum),
			MimeType:         clonePtr(e.Upload.MimeType),
			OriginalFilename: clonePtr(e.Upload.OriginalFilename),
		}
		dup.Upload = &up
	}
	if e.External != nil {
		ext := ExternalReference{
			ExternalVideoID:     e.External.ExternalVideoID,
			ExternalChannelID:   clonePtr(e.External.ExternalChannelID),
			ExternalPlaylistRef: clonePtr(e.External.ExternalPlaylistRef),
		}
		dup.External = &ext
	}
	return &dup
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	dup := *v
	return &dup
}
