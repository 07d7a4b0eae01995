package imagestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"studio_backend/internal/feature/generation/domain/entity"
	"studio_backend/internal/feature/generation/usecase"
)

const keyPrefix = "generations/"

// objectAPI はS3クライアントのうち利用する操作だけを表します。
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store は画像をS3互換のバケットに保存し、公開URLを返します。
type S3Store struct {
	api     objectAPI
	bucket  string
	baseURL string
}

var _ usecase.ImageStore = (*S3Store)(nil)

// NewS3Store はデフォルトの認証情報チェーンでS3Storeを生成します。
// endpoint を指定するとMinIOなどS3互換ストレージにパス形式で接続します。
func NewS3Store(ctx context.Context, bucket, region, endpoint, publicBaseURL string) (*S3Store, error) {
	if bucket == "" {
		return nil, errors.New("imagestore: bucket is required")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, bucket, publicBaseURL), nil
}

func newS3Store(api objectAPI, bucket, publicBaseURL string) *S3Store {
	return &S3Store{api: api, bucket: bucket, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Save は generations/<userID>/<uuid>.<ext> に画像を書き込みます。
func (s *S3Store) Save(ctx context.Context, userID string, img *entity.Image) (string, error) {
	contentType := img.MIMEType
	if contentType == "" {
		contentType = entity.DefaultMIMEType
	}
	key := keyPrefix + userID + "/" + uuid.NewString() + extensionFor(contentType)

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("putting %s: %w", key, err)
	}
	return s.baseURL + "/" + key, nil
}

// Discard はSaveが返したURLのオブジェクトを削除します。
func (s *S3Store) Discard(ctx context.Context, imageURL string) error {
	key, ok := strings.CutPrefix(imageURL, s.baseURL+"/")
	if !ok || !strings.HasPrefix(key, keyPrefix) {
		return fmt.Errorf("imagestore: %q was not stored here", imageURL)
	}
	if _, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
