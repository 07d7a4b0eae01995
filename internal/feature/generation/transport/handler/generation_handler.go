// Package handler はgenerationフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"studio_backend/internal/feature/generation/domain"
	"studio_backend/internal/feature/generation/domain/entity"
	"studio_backend/internal/feature/generation/transport/http/dto"
	"studio_backend/internal/feature/generation/usecase"
	jwtmw "studio_backend/internal/platform/jwt"
)

// MaxBodyBytes は/generateのリクエストボディの上限（12MB）です。
const MaxBodyBytes = 12 << 20

// GenerationUsecase は画像生成のユースケースを定義します。
type GenerationUsecase interface {
	Generate(ctx context.Context, sessionID string, req entity.Request) (*entity.Result, error)
}

// GenerationHandler は画像生成のHTTPリクエストを処理します。
type GenerationHandler struct {
	generation GenerationUsecase
}

// NewGenerationHandler はGenerationHandlerの新しいインスタンスを生成します。
func NewGenerationHandler(generation GenerationUsecase) *GenerationHandler {
	return &GenerationHandler{generation: generation}
}

// Generate は/generateを処理します。成功時は新しい履歴エントリと残高を返します。
func (h *GenerationHandler) Generate(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	req, err := bindRequest(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("generate request too large", "remote_addr", c.ClientIP())
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		if errors.Is(err, domain.ErrUnsupportedReferenceImage) {
			respondError(c, err)
			return
		}
		slog.Warn("generate validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.generation.Generate(c.Request.Context(), jwtmw.SessionID(c), *req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// bindRequest はJSONまたはmultipartのリクエストを entity.Request に変換します。
func bindRequest(c *gin.Context) (*entity.Request, error) {
	var body dto.GenerateReq
	if err := c.ShouldBind(&body); err != nil {
		return nil, err
	}
	req := &entity.Request{Prompt: body.Prompt, AspectRatio: body.AspectRatio}

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		ref, err := readReferenceFile(c)
		if err != nil {
			return nil, err
		}
		req.Reference = ref
		return req, nil
	}

	if body.ReferenceImage != "" {
		ref, err := entity.ParseDataURL(body.ReferenceImage)
		if err != nil {
			return nil, err
		}
		req.Reference = ref
	}
	return req, nil
}

func readReferenceFile(c *gin.Context) (*entity.Image, error) {
	fh, err := c.FormFile("reference")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fh.Size > usecase.MaxReferenceImageSize {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrUnsupportedReferenceImage, usecase.MaxReferenceImageSize)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening reference: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading reference: %w", err)
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		contentType = mimetype.Detect(data).String()
	}
	return &entity.Image{Data: data, MIMEType: contentType}, nil
}
