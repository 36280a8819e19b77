package gcs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/bionicotaku/lingo-services-ingestion/internal/services"
)

// ObjectInspector 通过 GCS 客户端查询对象属性，
// 为 finalize 流程提供服务器端计算的摘要与大小。
type ObjectInspector struct {
	client *storage.Client
	log    *log.Helper
}

// NewObjectInspector 创建 ObjectInspector。
func NewObjectInspector(ctx context.Context, logger log.Logger) (*ObjectInspector, func(), error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("init gcs client: %w", err)
	}
	inspector := &ObjectInspector{
		client: client,
		log:    log.NewHelper(logger),
	}
	cleanup := func() {
		_ = client.Close()
	}
	return inspector, cleanup, nil
}

// Stat 查询对象属性。对象不存在时返回 services.ErrObjectNotFound。
func (i *ObjectInspector) Stat(ctx context.Context, bucket, objectName string) (*services.ObjectStat, error) {
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if objectName == "" {
		return nil, errors.New("object name is required")
	}

	statCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	attrs, err := i.client.Bucket(bucket).Object(objectName).Attrs(statCtx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, services.ErrObjectNotFound
		}
		i.log.WithContext(ctx).Errorf("stat object failed: bucket=%s object=%s err=%v", bucket, objectName, err)
		return nil, fmt.Errorf("stat object: %w", err)
	}

	stat := &services.ObjectStat{
		SizeBytes:   attrs.Size,
		ContentType: attrs.ContentType,
	}
	if len(attrs.MD5) > 0 {
		stat.MD5Base64 = base64.StdEncoding.EncodeToString(attrs.MD5)
	}
	return stat, nil
}

// ProvideObjectInspector 供 Wire 注入使用。
func ProvideObjectInspector(ctx context.Context, logger log.Logger) (*ObjectInspector, func(), error) {
	return NewObjectInspector(ctx, logger)
}
