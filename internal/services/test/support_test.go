package services_test

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-ingestion/internal/models/events"
	"github.com/bionicotaku/lingo-services-ingestion/internal/models/po"
	"github.com/bionicotaku/lingo-services-ingestion/internal/repositories"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type noopTxManager struct{}

type noopSession struct{}

func (noopSession) Tx() pgx.Tx               { return nil }
func (noopSession) Context() context.Context { return context.Background() }

func (noopTxManager) WithinTx(ctx context.Context, _ txmanager.TxOptions, fn func(context.Context, txmanager.Session) error) error {
	return fn(ctx, noopSession{})
}

func (noopTxManager) WithinReadOnlyTx(ctx context.Context, _ txmanager.TxOptions, fn func(context.Context, txmanager.Session) error) error {
	return fn(ctx, noopSession{})
}

// entryRepoStub 以单条目方式模拟 EntryRepo，记录写入供断言。
type entryRepoStub struct {
	entry     *po.Entry
	expired   []*po.Entry
	insertErr error
	updateErr error
	getErr    error
	inserted  []*po.Entry
	updated   []*po.Entry
}

func (s *entryRepoStub) Insert(_ context.Context, _ txmanager.Session, entry *po.Entry) (*po.Entry, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	s.inserted = append(s.inserted, entry.Clone())
	stored := entry.Clone()
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	return stored, nil
}

func (s *entryRepoStub) Update(_ context.Context, _ txmanager.Session, entry *po.Entry) (*po.Entry, error) {
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	s.updated = append(s.updated, entry.Clone())
	stored := entry.Clone()
	stored.UpdatedAt = time.Now().UTC()
	return stored, nil
}

func (s *entryRepoStub) GetByID(_ context.Context, _ txmanager.Session, entryID uuid.UUID) (*po.Entry, error) {
	return s.lookup(entryID)
}

func (s *entryRepoStub) GetByIDForUpdate(_ context.Context, _ txmanager.Session, entryID uuid.UUID) (*po.Entry, error) {
	return s.lookup(entryID)
}

func (s *entryRepoStub) GetByPendingObjectKey(_ context.Context, _ txmanager.Session, pendingKey string) (*po.Entry, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.entry == nil || s.entry.Upload == nil || s.entry.Upload.PendingObjectKey == nil || *s.entry.Upload.PendingObjectKey != pendingKey {
		return nil, repositories.ErrEntryNotFound
	}
	return s.entry.Clone(), nil
}

func (s *entryRepoStub) ListExpiredPending(_ context.Context, _ txmanager.Session, _ time.Time, _ int32) ([]*po.Entry, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	out := make([]*po.Entry, 0, len(s.expired))
	for _, e := range s.expired {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (s *entryRepoStub) lookup(entryID uuid.UUID) (*po.Entry, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.entry == nil || s.entry.EntryID != entryID {
		return nil, repositories.ErrEntryNotFound
	}
	return s.entry.Clone(), nil
}

// outboxRepoStub 记录入队的领域事件。
type outboxRepoStub struct {
	events []*events.DomainEvent
	err    error
}

func (s *outboxRepoStub) Enqueue(_ context.Context, _ txmanager.Session, event *events.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

// signerStub 返回固定的签名 URL。
type signerStub struct {
	url     string
	expires time.Time
	err     error
	bucket  string
	object  string
}

func (s *signerStub) SignedResumableInitURL(_ context.Context, bucket, objectName, _ string, _ time.Duration) (string, time.Time, error) {
	s.bucket = bucket
	s.object = objectName
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	return s.url, s.expires, nil
}

func ptr[T any](v T) *T {
	return &v
}

const validChecksum = "0123456789abcdef0123456789abcdef"

// md5Base64 将 hex 摘要转成存储属性使用的 base64 形式。
func md5Base64(t *testing.T, hexDigest string) string {
	t.Helper()
	raw, err := hex.DecodeString(hexDigest)
	if err != nil {
		t.Fatalf("decode hex digest: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// pendingUploadEntry 构造一条处于预约状态的上传条目。
func pendingUploadEntry(mode po.TrustMode, declared *string) *po.Entry {
	pendingKey := "raw_media/" + uuid.NewString() + "/" + uuid.NewString()
	return &po.Entry{
		EntryID:    uuid.New(),
		Source:     po.SourceUpload,
		Status:     po.StatusDraft,
		Visibility: po.VisibilityUnlisted,
		AccessTier: po.TierFree,
		Title:      "pending upload",
		CreatedAt:  time.Now().UTC().Add(-time.Hour),
		UpdatedAt:  time.Now().UTC().Add(-time.Hour),
		Upload: &po.UploadBinding{
			PendingObjectKey: &pendingKey,
			TrustMode:        &mode,
			DeclaredChecksum: declared,
		},
	}
}

// finalizedUploadEntry 构造一条已 finalize 的上传条目。
func finalizedUploadEntry(mode po.TrustMode, verified string) *po.Entry {
	hostedKey := "raw_media/" + uuid.NewString() + "/" + uuid.NewString()
	entry := &po.Entry{
		EntryID:    uuid.New(),
		Source:     po.SourceUpload,
		Status:     po.StatusDraft,
		Visibility: po.VisibilityUnlisted,
		AccessTier: po.TierFree,
		Title:      "finalized upload",
		CreatedAt:  time.Now().UTC().Add(-time.Hour),
		UpdatedAt:  time.Now().UTC().Add(-time.Minute),
		Upload: &po.UploadBinding{
			HostedKey:        &hostedKey,
			TrustMode:        &mode,
			VerifiedChecksum: &verified,
		},
	}
	if mode == po.TrustModeA {
		entry.Upload.DeclaredChecksum = &verified
	}
	return entry
}

// externalEntry 构造一条外部引用条目。
func externalEntry(externalID string) *po.Entry {
	return &po.Entry{
		EntryID:    uuid.New(),
		Source:     po.SourceExternalReference,
		Status:     po.StatusDraft,
		Visibility: po.VisibilityUnlisted,
		AccessTier: po.TierFree,
		Title:      "external entry",
		CreatedAt:  time.Now().UTC().Add(-time.Hour),
		UpdatedAt:  time.Now().UTC().Add(-time.Hour),
		External:   &po.ExternalReference{ExternalVideoID: externalID},
	}
}
