package services

import (
	"errors"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// 错误 Reason 常量，跨进程边界保持稳定，调用方依赖字符串匹配。
const (
	ReasonValidationFailed  = "ERROR_REASON_VALIDATION_FAILED"
	ReasonConflict          = "ERROR_REASON_CONFLICT"
	ReasonImmutableField    = "ERROR_REASON_IMMUTABLE_FIELD"
	ReasonIntegrityMismatch = "ERROR_REASON_INTEGRITY_MISMATCH"
	ReasonPublishGate       = "ERROR_REASON_PUBLISH_GATE"
	ReasonStorageFailure    = "ERROR_REASON_STORAGE_FAILURE"
	ReasonEntryNotFound     = "ERROR_REASON_ENTRY_NOT_FOUND"
)

// ErrEntryNotFound 为条目不存在（或已软删除后按不存在处理）的标准错误。
var ErrEntryNotFound = kerrors.NotFound(ReasonEntryNotFound, "entry not found")

// ValidationError 表示输入或状态转换违反了某条校验规则。
// rule 写入 metadata 供调用方定位具体规则。
func ValidationError(rule, msg string) *kerrors.Error {
	return kerrors.BadRequest(ReasonValidationFailed, msg).WithMetadata(map[string]string{"rule": rule})
}

// ConflictError 表示唯一性约束或状态竞争导致的冲突。
func ConflictError(msg string) *kerrors.Error {
	return kerrors.Conflict(ReasonConflict, msg)
}

// ImmutableFieldError 表示尝试修改创建后即冻结的信任字段，整个更新被拒绝。
func ImmutableFieldError(field string) *kerrors.Error {
	return kerrors.Conflict(ReasonImmutableField, "immutable field cannot be modified: "+field).
		WithMetadata(map[string]string{"field": field})
}

// IntegrityMismatchError 表示 finalize 阶段实测摘要或大小与声明不符。
// 条目保持 pending 状态，客户端可重新上传后重试。
func IntegrityMismatchError(msg string) *kerrors.Error {
	return kerrors.New(412, ReasonIntegrityMismatch, msg)
}

// PublishGateError 表示条目未满足发布门槛，condition 指明未达成的条件。
func PublishGateError(condition, msg string) *kerrors.Error {
	return kerrors.Conflict(ReasonPublishGate, msg).WithMetadata(map[string]string{"condition": condition})
}

// StorageError 表示对象存储侧的瞬态故障，可重试。
func StorageError(msg string, cause error) *kerrors.Error {
	return kerrors.ServiceUnavailable(ReasonStorageFailure, msg).WithCause(cause)
}

// IsValidation 判断错误是否为校验失败。
func IsValidation(err error) bool { return reasonIs(err, ReasonValidationFailed) }

// IsConflict 判断错误是否为唯一性/状态冲突。
func IsConflict(err error) bool { return reasonIs(err, ReasonConflict) }

// IsImmutableField 判断错误是否为不可变字段修改。
func IsImmutableField(err error) bool { return reasonIs(err, ReasonImmutableField) }

// IsIntegrityMismatch 判断错误是否为完整性校验失败。
func IsIntegrityMismatch(err error) bool { return reasonIs(err, ReasonIntegrityMismatch) }

// IsPublishGate 判断错误是否为发布门槛未满足。
func IsPublishGate(err error) bool { return reasonIs(err, ReasonPublishGate) }

// IsStorageFailure 判断错误是否为存储侧故障。
func IsStorageFailure(err error) bool { return reasonIs(err, ReasonStorageFailure) }

// IsNotFound 判断错误是否为条目不存在。
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) || reasonIs(err, ReasonEntryNotFound)
}

func reasonIs(err error, reason string) bool {
	if err == nil {
		return false
	}
	kerr := kerrors.FromError(err)
	return kerr != nil && kerr.Reason == reason
}
