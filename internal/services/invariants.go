package services

import (
	"fmt"

	"github.com/bionicotaku/lingo-services-ingestion/internal/models/po"
)

// invariantRule 为一条有序的纯函数规则，对（持久化前状态, 提议状态）求值。
// prev 为 nil 表示插入新行。
type invariantRule struct {
	name  string
	check func(prev, next *po.Entry) error
}

// invariantRules 按固定顺序执行，首条失败即短路。
// 唯一性（externalVideoId / pendingObjectKey）由存储层约束兜底，
// 违反时映射为 ConflictError，不在此处列出。
var invariantRules = []invariantRule{
	{name: "source_shape", check: checkSourceShape},
	{name: "binding_exclusive", check: checkBindingExclusive},
	{name: "trust_declaration", check: checkTrustDeclaration},
	{name: "declared_size", check: checkDeclaredSize},
	{name: "verified_write_once", check: checkVerifiedWriteOnce},
	{name: "visibility_tier", check: checkVisibilityTier},
	{name: "lifecycle_transition", check: checkLifecycleTransition},
	{name: "published_shape", check: checkPublishedShape},
}

// EnforceInvariants 在写入事务内对提议状态执行全部规则。
// 返回的错误均为带 rule 元数据的 ValidationError。
func EnforceInvariants(prev, next *po.Entry) error {
	if next == nil {
		return ValidationError("entry_required", "proposed entry state is nil")
	}
	for _, rule := range invariantRules {
		if err := rule.check(prev, next); err != nil {
			return err
		}
	}
	return nil
}

// checkSourceShape：来源决定 tagged union 的形态，有且仅有一侧存在。
func checkSourceShape(_, next *po.Entry) error {
	switch next.Source {
	case po.SourceUpload:
		if next.Upload == nil {
			return ValidationError("source_shape", "upload entry must carry an upload binding")
		}
		if next.External != nil {
			return ValidationError("source_shape", "upload entry must not carry external reference fields")
		}
	case po.SourceExternalReference:
		if next.External == nil {
			return ValidationError("source_shape", "external entry must carry an external reference")
		}
		if next.External.ExternalVideoID == "" {
			return ValidationError("source_shape", "external_video_id is required")
		}
		if next.Upload != nil {
			return ValidationError("source_shape", "external entry must not carry upload binding fields")
		}
	default:
		return ValidationError("source_shape", fmt.Sprintf("unknown source: %s", string(next.Source)))
	}
	return nil
}

// checkBindingExclusive：pendingObjectKey 与 hostedKey 互斥，
// pending 仅在 draft 状态有效，且 hostedKey 一旦写入，pending 不得重新出现。
func checkBindingExclusive(prev, next *po.Entry) error {
	if next.Source != po.SourceUpload || next.Upload == nil {
		return nil
	}
	up := next.Upload
	if up.PendingObjectKey != nil && up.HostedKey != nil {
		return ValidationError("binding_exclusive", "pending_object_key and hosted_key cannot both be set")
	}
	if up.PendingObjectKey != nil && next.Status != po.StatusDraft {
		return ValidationError("binding_exclusive", "pending_object_key is only valid while the entry is draft")
	}
	if up.PendingObjectKey == nil && up.HostedKey == nil && !next.LegacyImport {
		return ValidationError("binding_exclusive", "upload entry must hold either a pending or a hosted key")
	}
	if prev != nil && prev.Upload != nil && prev.Upload.HostedKey != nil {
		if up.HostedKey == nil {
			return ValidationError("binding_exclusive", "hosted_key cannot be cleared once set")
		}
		if up.PendingObjectKey != nil {
			return ValidationError("binding_exclusive", "pending_object_key cannot reappear after finalize")
		}
	}
	return nil
}

// checkTrustDeclaration：信任协议与摘要声明保持一致；
// 仅 legacy 回填行允许缺失 trust_mode。
func checkTrustDeclaration(_, next *po.Entry) error {
	if next.Source != po.SourceUpload || next.Upload == nil {
		return nil
	}
	up := next.Upload
	if up.TrustMode == nil {
		if !next.LegacyImport {
			return ValidationError("trust_declaration", "trust mode is required for upload entries")
		}
		return nil
	}
	switch *up.TrustMode {
	case po.TrustModeA:
		if up.DeclaredChecksum == nil || !isLowerHex32(*up.DeclaredChecksum) {
			return ValidationError("trust_declaration", "mode A entry must hold a 32-char lowercase hex declared_checksum")
		}
	case po.TrustModeB:
		if up.DeclaredChecksum != nil {
			return ValidationError("trust_declaration", "mode B entry must not hold a declared_checksum")
		}
	default:
		return ValidationError("trust_declaration", fmt.Sprintf("unknown trust mode: %s", string(*up.TrustMode)))
	}
	return nil
}

// checkDeclaredSize：declaredFileSize 存在时必须为正整数。
// 配置上限在预约入口校验，此处兜底绕过预约的写入方。
func checkDeclaredSize(_, next *po.Entry) error {
	if next.Source != po.SourceUpload || next.Upload == nil {
		return nil
	}
	if size := next.Upload.DeclaredFileSize; size != nil && *size <= 0 {
		return ValidationError("declared_size", "declared_file_size must be positive")
	}
	return nil
}

// checkVisibilityTier：可见范围与访问等级的耦合，
// premium 内容不允许无访问控制的链接分享。
func checkVisibilityTier(_, next *po.Entry) error {
	switch next.Visibility {
	case po.VisibilityPublic:
		if next.AccessTier != po.TierFree {
			return ValidationError("visibility_tier", "public entries must be free tier")
		}
	case po.VisibilityUnlisted:
		if next.AccessTier == po.TierPremium {
			return ValidationError("visibility_tier", "unlisted entries cannot be premium tier")
		}
	case po.VisibilityRestricted:
	default:
		return ValidationError("visibility_tier", fmt.Sprintf("unknown visibility: %s", string(next.Visibility)))
	}
	switch next.AccessTier {
	case po.TierFree, po.TierMember, po.TierPremium:
	default:
		return ValidationError("visibility_tier", fmt.Sprintf("unknown access tier: %s", string(next.AccessTier)))
	}
	return nil
}

// checkVerifiedWriteOnce：verified_checksum 只写一次，之后不可改写或清除。
func checkVerifiedWriteOnce(prev, next *po.Entry) error {
	if prev == nil || prev.Upload == nil || prev.Upload.VerifiedChecksum == nil {
		return nil
	}
	if next.Upload == nil || next.Upload.VerifiedChecksum == nil {
		return ValidationError("verified_write_once", "verified_checksum cannot be cleared once set")
	}
	if *next.Upload.VerifiedChecksum != *prev.Upload.VerifiedChecksum {
		return ValidationError("verified_write_once", "verified_checksum cannot be rewritten")
	}
	return nil
}

// checkLifecycleTransition：draft→published→archived 单向推进，
// 软删除与状态正交，不参与此规则。
func checkLifecycleTransition(prev, next *po.Entry) error {
	switch next.Status {
	case po.StatusDraft, po.StatusPublished, po.StatusArchived:
	default:
		return ValidationError("lifecycle_transition", fmt.Sprintf("unknown status: %s", string(next.Status)))
	}
	if prev == nil {
		if next.Status != po.StatusDraft {
			return ValidationError("lifecycle_transition", "new entries must start in draft")
		}
		return nil
	}
	if prev.Status == next.Status {
		return nil
	}
	allowed := map[po.EntryStatus][]po.EntryStatus{
		po.StatusDraft:     {po.StatusPublished, po.StatusArchived},
		po.StatusPublished: {po.StatusArchived},
		po.StatusArchived:  {},
	}
	for _, s := range allowed[prev.Status] {
		if s == next.Status {
			return nil
		}
	}
	return ValidationError("lifecycle_transition", fmt.Sprintf("cannot transition %s -> %s", string(prev.Status), string(next.Status)))
}

// checkPublishedShape：已发布条目必须元数据补全、资产落位（或 legacy 豁免）。
// 发布动作本身由生命周期服务以 PublishGateError 预检，此处兜底终态一致性。
func checkPublishedShape(_, next *po.Entry) error {
	if next.Status != po.StatusPublished {
		return nil
	}
	if !next.MetadataCompleted {
		return ValidationError("published_shape", "published entry must have completed metadata")
	}
	if next.PublishedAt == nil {
		return ValidationError("published_shape", "published entry must carry published_at")
	}
	if next.Source == po.SourceUpload && !next.LegacyImport {
		if next.Upload == nil || next.Upload.HostedKey == nil {
			return ValidationError("published_shape", "published upload entry must have a hosted asset")
		}
		if next.Upload.VerifiedChecksum == nil {
			return ValidationError("published_shape", "published upload entry must have a verified checksum")
		}
	}
	return nil
}
