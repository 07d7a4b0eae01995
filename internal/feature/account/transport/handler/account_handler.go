// Package handler はaccountフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"studio_backend/internal/feature/account/domain/entity"
	"studio_backend/internal/feature/account/transport/http/dto"
	jwtmw "studio_backend/internal/platform/jwt"
	"studio_backend/internal/platform/logger"
)

// AccountUsecase はアカウント操作のユースケースを定義します。
// Goの慣例に従い、インターフェースはプロバイダー（usecase）ではなくコンシューマー（handler）が定義します。
type AccountUsecase interface {
	Signup(ctx context.Context, sessionID, email, password, name string) (*entity.User, error)
	Login(ctx context.Context, sessionID, email, password string) (*entity.User, error)
	Logout(ctx context.Context, sessionID string) error
	CurrentUser(ctx context.Context, sessionID string) (*entity.User, error)
	RequireAdmin(ctx context.Context, sessionID string) (*entity.User, error)
	AllUsers(ctx context.Context) ([]entity.User, error)
	SetCredits(ctx context.Context, userID string, amount int) (*entity.User, error)
	Plans(ctx context.Context) ([]entity.Plan, error)
	SavePlan(ctx context.Context, plan entity.Plan) (*entity.Plan, error)
	PurchasePlan(ctx context.Context, sessionID, planID string) (*entity.Purchase, error)
	History(ctx context.Context, userID string) ([]entity.HistoryEntry, error)
	Stats(ctx context.Context) (*entity.Stats, error)
}

// TokenGenerator はセッションIDを運ぶトークンを発行します。
type TokenGenerator interface {
	GenerateToken(sessionID, userID string) (string, error)
}

// AccountHandler はアカウント関連のHTTPリクエストを処理します。
type AccountHandler struct {
	accounts     AccountUsecase
	tokens       TokenGenerator
	newSessionID func() string
}

// NewAccountHandler はAccountHandlerの新しいインスタンスを生成します。
func NewAccountHandler(accounts AccountUsecase, tokens TokenGenerator) *AccountHandler {
	return &AccountHandler{accounts: accounts, tokens: tokens, newSessionID: uuid.NewString}
}

// respondWithToken はユースケースで確立したセッションのトークンとユーザーを返します。
func (h *AccountHandler) respondWithToken(c *gin.Context, status int, sessionID string, user *entity.User) {
	token, err := h.tokens.GenerateToken(sessionID, user.ID)
	if err != nil {
		respondError(c, "token generation", err)
		return
	}
	c.JSON(status, dto.AuthRes{Token: token, User: user})
}

// Signup はユーザー登録APIエンドポイントを処理します。成功時は201とトークンを返します。
func (h *AccountHandler) Signup(c *gin.Context) {
	var req dto.SignupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("signup validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sid := h.newSessionID()
	user, err := h.accounts.Signup(c.Request.Context(), sid, req.Email, req.Password, req.Name)
	if err != nil {
		respondError(c, "signup", err)
		return
	}
	slog.Info("user signup successful", "user_id", user.ID, "remote_addr", c.ClientIP())
	h.respondWithToken(c, http.StatusCreated, sid, user)
}

// Login はユーザーログインAPIエンドポイントを処理します。
func (h *AccountHandler) Login(c *gin.Context) {
	var req dto.LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("login validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sid := h.newSessionID()
	user, err := h.accounts.Login(c.Request.Context(), sid, req.Email, req.Password)
	if err != nil {
		respondError(c, "login", err)
		return
	}
	slog.Info("user login successful", "user_id", user.ID, "session_id", logger.ShortID(sid), "remote_addr", c.ClientIP())
	h.respondWithToken(c, http.StatusOK, sid, user)
}

// Logout はセッションを終了します。以後そのトークンは 401 になります。
func (h *AccountHandler) Logout(c *gin.Context) {
	if err := h.accounts.Logout(c.Request.Context(), jwtmw.SessionID(c)); err != nil {
		respondError(c, "logout", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me は現在のユーザーを返します。
func (h *AccountHandler) Me(c *gin.Context) {
	user, err := h.accounts.CurrentUser(c.Request.Context(), jwtmw.SessionID(c))
	if err != nil {
		respondError(c, "current user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// History は現在のユーザーの生成履歴を新しい順で返します。
func (h *AccountHandler) History(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := h.accounts.CurrentUser(ctx, jwtmw.SessionID(c))
	if err != nil {
		respondError(c, "history", err)
		return
	}
	entries, err := h.accounts.History(ctx, user.ID)
	if err != nil {
		respondError(c, "history", err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// Plans はクレジットプラン一覧を返します。
func (h *AccountHandler) Plans(c *gin.Context) {
	plans, err := h.accounts.Plans(c.Request.Context())
	if err != nil {
		respondError(c, "list plans", err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

// PurchasePlan はプランを購入します。外部決済のプランはリダイレクト先を返します。
func (h *AccountHandler) PurchasePlan(c *gin.Context) {
	var req dto.PurchaseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	purchase, err := h.accounts.PurchasePlan(c.Request.Context(), jwtmw.SessionID(c), req.PlanID)
	if err != nil {
		respondError(c, "purchase plan", err)
		return
	}
	c.JSON(http.StatusOK, purchase)
}

// RequireAdmin は管理者以外のリクエストを拒否するミドルウェアです。
// jwtmw.AuthRequired の後に配置してください。
func (h *AccountHandler) RequireAdmin(c *gin.Context) {
	if _, err := h.accounts.RequireAdmin(c.Request.Context(), jwtmw.SessionID(c)); err != nil {
		respondError(c, "admin check", err)
		return
	}
	c.Next()
}

// ListUsers は全ユーザーを返します（管理者用）。
func (h *AccountHandler) ListUsers(c *gin.Context) {
	users, err := h.accounts.AllUsers(c.Request.Context())
	if err != nil {
		respondError(c, "list users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// SetCredits はユーザーの残高を上書きします（管理者用）。
func (h *AccountHandler) SetCredits(c *gin.Context) {
	var req dto.SetCreditsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := h.accounts.SetCredits(c.Request.Context(), c.Param("id"), *req.Credits)
	if err != nil {
		respondError(c, "set credits", err)
		return
	}
	slog.Info("credits overridden", "user_id", user.ID, "credits", user.Credits)
	c.JSON(http.StatusOK, user)
}

// Stats は集計値を返します（管理者用）。
func (h *AccountHandler) Stats(c *gin.Context) {
	stats, err := h.accounts.Stats(c.Request.Context())
	if err != nil {
		respondError(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// SavePlan はプランを上書きします（管理者用）。
func (h *AccountHandler) SavePlan(c *gin.Context) {
	var req dto.PlanReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := h.accounts.SavePlan(c.Request.Context(), entity.Plan{
		ID:           c.Param("id"),
		Name:         req.Name,
		Credits:      req.Credits,
		Price:        req.Price,
		Popular:      req.Popular,
		ExternalLink: req.ExternalLink,
	})
	if err != nil {
		respondError(c, "save plan", err)
		return
	}
	c.JSON(http.StatusOK, plan)
}
