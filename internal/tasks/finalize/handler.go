package finalize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bionicotaku/lingo-services-ingestion/internal/services"

	"github.com/bionicotaku/lingo-utils/outbox/store"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
)

const gcsObjectFinalizeEvent = "OBJECT_FINALIZE"

// Handler 处理 OBJECT_FINALIZE 事件，将通知携带的对象属性交给 finalize 流程。
type Handler struct {
	svc    *services.FinalizeService
	bucket string
	log    *log.Helper
}

// NewHandler 构造对象落位事件处理器。
func NewHandler(svc *services.FinalizeService, bucket string, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.NewStdLogger(nil)
	}
	return &Handler{
		svc:    svc,
		bucket: bucket,
		log:    log.NewHelper(logger),
	}
}

// Handle 执行 OBJECT_FINALIZE 事件的业务处理。
// 处理运行在 inbox runner 的事务内，finalize 的嵌套事务经由 ctx 合并。
//
// 处理结果分两类：
//   - 成功或可安全跳过（未知对象、重复投递、完整性不符）：返回 nil，消息 ack；
//   - 暂时性失败（存储不可用、数据库错误）：返回 error，等待重投。
//
// 完整性不符属于终态：重投不会改变对象摘要，ack 消息并保留 pending 行，
// 客户端可重新上传同一对象触发新的 OBJECT_FINALIZE。
func (h *Handler) Handle(ctx context.Context, sess txmanager.Session, evt *Event, inboxEvt *store.InboxEvent) error {
	_ = sess
	if evt == nil {
		return fmt.Errorf("finalize: nil event payload")
	}
	if inboxEvt == nil {
		return fmt.Errorf("finalize: missing inbox event metadata")
	}
	if !strings.EqualFold(inboxEvt.EventType, gcsObjectFinalizeEvent) {
		return nil
	}
	if h.svc == nil {
		return fmt.Errorf("finalize: handler not initialized")
	}
	if h.bucket != "" && !strings.EqualFold(evt.Bucket, h.bucket) {
		h.log.WithContext(ctx).Warnf("finalize: notification for unexpected bucket=%s object=%s", evt.Bucket, evt.ObjectName)
		return nil
	}

	observed := &services.ObjectStat{
		MD5Base64:   evt.MD5Base64,
		SizeBytes:   evt.SizeBytes,
		ContentType: evt.ContentType,
	}

	_, err := h.svc.FinalizeByObjectKey(ctx, evt.ObjectName, observed)
	switch {
	case err == nil:
		h.log.WithContext(ctx).Infof("finalize: confirmed object=%s generation=%s size=%d", evt.ObjectName, evt.Generation, evt.SizeBytes)
		return nil
	case services.IsNotFound(err):
		h.log.WithContext(ctx).Warnf("finalize: no pending reservation for object=%s", evt.ObjectName)
		return nil
	case services.IsConflict(err):
		h.log.WithContext(ctx).Debugf("finalize: skip duplicate or stale notification object=%s: %v", evt.ObjectName, err)
		return nil
	case services.IsIntegrityMismatch(err):
		h.log.WithContext(ctx).Errorf("finalize: integrity mismatch object=%s: %v", evt.ObjectName, err)
		return nil
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("finalize: object=%s: %w", evt.ObjectName, err)
	}
}
