package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	accounthandler "studio_backend/internal/feature/account/transport/handler"
	"studio_backend/internal/feature/generation/domain"
)

// StatusFor は生成ワークフローのエラーをHTTPステータスと公開メッセージに変換します。
// アカウント由来のエラーはaccountハンドラーの対応に従います。
func StatusFor(err error) (int, string) {
	var genErr *domain.GenerationError
	switch {
	case errors.Is(err, domain.ErrUnsupportedReferenceImage):
		if errors.As(err, &genErr) {
			return http.StatusBadRequest, genErr.Reason
		}
		return http.StatusBadRequest, "unsupported reference image"
	case errors.As(err, &genErr):
		return http.StatusBadGateway, genErr.Reason
	case errors.Is(err, domain.ErrEmptyPrompt):
		return http.StatusBadRequest, "prompt is required"
	case errors.Is(err, domain.ErrUnsupportedAspectRatio):
		return http.StatusBadRequest, "unsupported aspect ratio"
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, "insufficient credits"
	case errors.Is(err, domain.ErrDeductionFailed):
		return http.StatusConflict, "credit could not be deducted; nothing was charged"
	default:
		return accounthandler.StatusFor(err)
	}
}

func respondError(c *gin.Context, err error) {
	status, msg := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("generate failed", "error", err, "remote_addr", c.ClientIP())
	} else {
		slog.Warn("generate failed", "error", err, "remote_addr", c.ClientIP())
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
