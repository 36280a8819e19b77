package services_test

import (
	"testing"

	"github.com/bionicotaku/lingo-services-ingestion/internal/models/po"
	"github.com/bionicotaku/lingo-services-ingestion/internal/services"
	kerrors "github.com/go-kratos/kratos/v2/errors"
)

func assertImmutableField(t *testing.T, err error, field string) {
	t.Helper()
	if !services.IsImmutableField(err) {
		t.Fatalf("expected immutable field error for %s, got %v", field, err)
	}
	kerr := kerrors.FromError(err)
	if kerr.Metadata["field"] != field {
		t.Fatalf("expected field %s, got %s", field, kerr.Metadata["field"])
	}
}

func TestGuardImmutableFields_NilStates(t *testing.T) {
	entry := pendingUploadEntry(po.TrustModeA, ptr(validChecksum))
	if err := services.GuardImmutableFields(nil, entry); err != nil {
		t.Fatalf("insert should bypass the guard: %v", err)
	}
	if err := services.GuardImmutableFields(entry, nil); err != nil {
		t.Fatalf("nil next should bypass the guard: %v", err)
	}
}

func TestGuardImmutableFields_Source(t *testing.T) {
	prev := pendingUploadEntry(po.TrustModeA, ptr(validChecksum))
	next := prev.Clone()
	next.Source = po.SourceExternalReference
	assertImmutableField(t, services.GuardImmutableFields(prev, next), "source")
}

func TestGuardImmutableFields_LegacyImport(t *testing.T) {
	prev := pendingUploadEntry(po.TrustModeA, ptr(validChecksum))
	next := prev.Clone()
	next.LegacyImport = true
	assertImmutableField(t, services.GuardImmutableFields(prev, next), "legacy_import")
}

func TestGuardImmutableFields_UploadFields(t *testing.T) {
	prev := pendingUploadEntry(po.TrustModeA, ptr(validChecksum))
	prev.Upload.DeclaredFileSize = ptr(int64(1024))
	prev.Upload.DeclaredMimeType = ptr("video/mp4")

	mode := prev.Clone()
	mode.Upload.TrustMode = ptr(po.TrustModeB)
	assertImmutableField(t, services.GuardImmutableFields(prev, mode), "upload_mode")

	checksum := prev.Clone()
	checksum.Upload.DeclaredChecksum = ptr("ffffffffffffffffffffffffffffffff")
	assertImmutableField(t, services.GuardImmutableFields(prev, checksum), "declared_checksum")

	size := prev.Clone()
	size.Upload.DeclaredFileSize = ptr(int64(2048))
	assertImmutableField(t, services.GuardImmutableFields(prev, size), "declared_file_size")

	mime := prev.Clone()
	mime.Upload.DeclaredMimeType = ptr("video/webm")
	assertImmutableField(t, services.GuardImmutableFields(prev, mime), "declared_mime_type")
}

func TestGuardImmutableFields_DeclaredFieldsBackfill(t *testing.T) {
	prev := pendingUploadEntry(po.TrustModeB, nil)

	// 声明字段从 null 一次性补写放行
	next := prev.Clone()
	next.Upload.DeclaredFileSize = ptr(int64(4096))
	next.Upload.DeclaredMimeType = ptr("video/mp4")
	if err := services.GuardImmutableFields(prev, next); err != nil {
		t.Fatalf("first-time set of declared fields should pass: %v", err)
	}

	// 已有值后清除同样拒绝
	filled := next
	cleared := filled.Clone()
	cleared.Upload.DeclaredFileSize = nil
	assertImmutableField(t, services.GuardImmutableFields(filled, cleared), "declared_file_size")
}

func TestGuardImmutableFields_LegacyTrustModeBackfill(t *testing.T) {
	prev := pendingUploadEntry(po.TrustModeA, nil)
	prev.LegacyImport = true
	prev.Upload.TrustMode = nil
	prev.Upload.DeclaredChecksum = nil

	next := prev.Clone()
	next.Upload.TrustMode = ptr(po.TrustModeB)
	if err := services.GuardImmutableFields(prev, next); err != nil {
		t.Fatalf("legacy backfill of trust mode should be allowed: %v", err)
	}
}

func TestGuardImmutableFields_ExternalVideoID(t *testing.T) {
	prev := externalEntry("yt-original")
	next := prev.Clone()
	next.External.ExternalVideoID = "yt-other"
	assertImmutableField(t, services.GuardImmutableFields(prev, next), "external_video_id")
}

func TestGuardImmutableFields_AllowsMetadataChanges(t *testing.T) {
	prev := finalizedUploadEntry(po.TrustModeA, validChecksum)
	next := prev.Clone()
	next.Title = "renamed"
	next.Tags = []string{"a", "b"}
	next.MetadataCompleted = true
	if err := services.GuardImmutableFields(prev, next); err != nil {
		t.Fatalf("metadata updates should pass the guard: %v", err)
	}
}
