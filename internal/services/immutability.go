package services

import (
	"github.com/bionicotaku/lingo-services-ingestion/internal/models/po"
)

// GuardImmutableFields 比对持久化状态与提议状态的信任字段，
// 任一不可变字段被改写（任一方向）即整体拒绝更新。
// prev 为 nil 表示插入，此时无可比对，直接放行。
// 在与 Invariant Enforcer 相同的事务内、写入之前执行。
func GuardImmutableFields(prev, next *po.Entry) error {
	if prev == nil || next == nil {
		return nil
	}

	if prev.Source != next.Source {
		return ImmutableFieldError("source")
	}
	if prev.LegacyImport != next.LegacyImport {
		return ImmutableFieldError("legacy_import")
	}

	prevUp, nextUp := prev.Upload, next.Upload
	if prevUp != nil && nextUp != nil {
		if !equalPtr(prevUp.TrustMode, nextUp.TrustMode) {
			// legacy 回填行缺失 trust_mode 时允许一次性补写
			if !(prev.LegacyImport && prevUp.TrustMode == nil) {
				return ImmutableFieldError("upload_mode")
			}
		}
		// 声明字段允许从 null 一次性补写；已有值后改写或清除均拒绝
		if prevUp.DeclaredChecksum != nil && !equalPtr(prevUp.DeclaredChecksum, nextUp.DeclaredChecksum) {
			return ImmutableFieldError("declared_checksum")
		}
		if prevUp.DeclaredFileSize != nil && !equalPtr(prevUp.DeclaredFileSize, nextUp.DeclaredFileSize) {
			return ImmutableFieldError("declared_file_size")
		}
		if prevUp.DeclaredMimeType != nil && !equalPtr(prevUp.DeclaredMimeType, nextUp.DeclaredMimeType) {
			return ImmutableFieldError("declared_mime_type")
		}
	}

	if prev.External != nil && next.External != nil {
		if prev.External.ExternalVideoID != next.External.ExternalVideoID {
			return ImmutableFieldError("external_video_id")
		}
	}

	return nil
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
