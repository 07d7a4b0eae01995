package di

import (
	"context"
	"time"

	"studio_backend/internal/feature/generation/adapters/gemini"
	"studio_backend/internal/feature/generation/adapters/imagestore"
	"studio_backend/internal/feature/generation/usecase"
	"studio_backend/internal/platform/config"
	infrahttp "studio_backend/internal/platform/http"
)

// vendorTimeoutMargin keeps the HTTP client alive past the workflow deadline,
// so a slow vendor surfaces as the workflow's timeout reason rather than a transport error.
const vendorTimeoutMargin = 10 * time.Second

// vendorClientTimeout returns the HTTP client timeout for the generation timeout in cfg.
func vendorClientTimeout(cfg config.GeminiConfig) time.Duration {
	timeout := cfg.GenerationTimeout
	if timeout <= 0 {
		timeout = usecase.DefaultTimeout
	}
	return timeout + vendorTimeoutMargin
}

// NewImageGenerator creates a Gemini image generator with a dedicated HTTP client.
func NewImageGenerator(ctx context.Context, cfg config.GeminiConfig) (*gemini.GeminiGenerator, error) {
	httpClient := infrahttp.NewHTTPClient(vendorClientTimeout(cfg))
	return gemini.NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model, httpClient)
}

// NewImageStore creates the S3 image store when a bucket is configured.
// Otherwise images are kept inline as data URLs.
func NewImageStore(ctx context.Context, cfg config.ImageStoreConfig) (usecase.ImageStore, error) {
	if cfg.Bucket == "" {
		return imagestore.NewDataURLStore(), nil
	}
	return imagestore.NewS3Store(ctx, cfg.Bucket, cfg.Region, cfg.Endpoint, cfg.PublicBaseURL)
}
