package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"studio_backend/internal/feature/account/domain"
)

// StatusFor はドメインエラーをHTTPステータスと公開メッセージに変換します。
// 未知のエラーは 500 と汎用メッセージになります。
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrDuplicateUser):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, domain.ErrNotAuthenticated):
		return http.StatusUnauthorized, "not authenticated"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "admin privileges required"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrPlanNotFound):
		return http.StatusNotFound, "plan not found"
	case errors.Is(err, domain.ErrInvalidPlan):
		return http.StatusBadRequest, "invalid plan"
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "credit balance cannot be negative"
	case errors.Is(err, domain.ErrWeakPassword):
		return http.StatusBadRequest, "password must be at least 8 characters"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// respondError はエラーをログに記録し、対応するステータスで応答します。
func respondError(c *gin.Context, op string, err error) {
	status, msg := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error(op+" failed", "error", err, "remote_addr", c.ClientIP())
	} else {
		slog.Warn(op+" failed", "error", err, "remote_addr", c.ClientIP())
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
