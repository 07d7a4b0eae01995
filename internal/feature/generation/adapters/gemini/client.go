// Package gemini はGoogle Gemini APIを使用した画像生成クライアントを提供します。
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"studio_backend/internal/feature/generation/domain"
	"studio_backend/internal/feature/generation/domain/entity"
	"studio_backend/internal/feature/generation/usecase"
)

const (
	// DefaultModel は画像生成に使用するデフォルトモデルです。
	DefaultModel = "gemini-2.5-flash-image"
)

// GeminiGenerator はGoogle Gemini APIを使用して画像を生成します。
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// GeminiGeneratorがImageGeneratorを実装していることをコンパイル時に検証します。
var _ usecase.ImageGenerator = (*GeminiGenerator)(nil)

// NewGeminiGenerator はAPIキーを使用してGeminiGeneratorの新しいインスタンスを生成します。
// httpClient が nil の場合はSDKのデフォルトを使用します。
func NewGeminiGenerator(ctx context.Context, apiKey, model string, httpClient *http.Client) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	return newGenerator(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}, model)
}

func newGenerator(ctx context.Context, cfg *genai.ClientConfig, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate はプロンプトと任意の参照画像から画像を1枚生成します。
// レスポンスの最初のインライン画像を返し、画像が含まれない場合は domain.ErrNoImageReturned を返します。
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, ratio entity.AspectRatio, reference *entity.Image) (*entity.Image, error) {
	parts := make([]*genai.Part, 0, 2)
	if reference != nil {
		mime := reference.MIMEType
		if mime == "" {
			mime = entity.DefaultMIMEType
		}
		parts = append(parts, genai.NewPartFromBytes(reference.Data, mime))
	}
	parts = append(parts, genai.NewPartFromText(prompt))

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: string(ratio)},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if reference != nil && errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedReferenceImage, apiErr.Message)
		}
		return nil, fmt.Errorf("gemini API request failed: %w", err)
	}

	if img := firstImage(resp); img != nil {
		return img, nil
	}
	return nil, domain.ErrNoImageReturned
}

func firstImage(resp *genai.GenerateContentResponse) *entity.Image {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = entity.DefaultMIMEType
			}
			return &entity.Image{Data: part.InlineData.Data, MIMEType: mime}
		}
	}
	return nil
}
