package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accountdomain "studio_backend/internal/feature/account/domain"
	accountentity "studio_backend/internal/feature/account/domain/entity"
	"studio_backend/internal/feature/generation/domain"
	"studio_backend/internal/feature/generation/domain/entity"
	jwtmw "studio_backend/internal/platform/jwt"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// mockGenerationUsecase is a mock implementation of GenerationUsecase.
type mockGenerationUsecase struct {
	GenerateFunc func(sid string, req entity.Request) (*entity.Result, error)
}

func (m *mockGenerationUsecase) Generate(_ context.Context, sid string, req entity.Request) (*entity.Result, error) {
	return m.GenerateFunc(sid, req)
}

func setupRouter(uc GenerationUsecase) *gin.Engine {
	r := gin.New()
	r.POST("/generate", func(c *gin.Context) {
		c.Set(jwtmw.ContextSessionID, "sid-1")
		c.Next()
	}, NewGenerationHandler(uc).Generate)
	return r
}

func okResult(req entity.Request) *entity.Result {
	return &entity.Result{
		Entry:   accountentity.HistoryEntry{ID: "h1", UserID: "u1", Prompt: req.Prompt, AspectRatio: req.AspectRatio, ImageURL: "data:image/png;base64,AAA"},
		Balance: 4,
	}
}

func TestGenerationHandler_JSON(t *testing.T) {
	var got entity.Request
	var gotSID string
	uc := &mockGenerationUsecase{GenerateFunc: func(sid string, req entity.Request) (*entity.Result, error) {
		got, gotSID = req, sid
		return okResult(req), nil
	}}
	r := setupRouter(uc)

	body := `{"prompt":"a cat","aspectRatio":"16:9","referenceImage":"data:image/jpeg;base64,aGk="}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "sid-1", gotSID)
	assert.Equal(t, "a cat", got.Prompt)
	assert.Equal(t, "16:9", got.AspectRatio)
	require.NotNil(t, got.Reference)
	assert.Equal(t, []byte("hi"), got.Reference.Data)
	assert.Equal(t, "image/jpeg", got.Reference.MIMEType)

	var res struct {
		Entry   accountentity.HistoryEntry `json:"entry"`
		Balance int                        `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 4, res.Balance)
	assert.Equal(t, "h1", res.Entry.ID)
}

func TestGenerationHandler_Multipart(t *testing.T) {
	var got entity.Request
	uc := &mockGenerationUsecase{GenerateFunc: func(sid string, req entity.Request) (*entity.Result, error) {
		got = req
		return okResult(req), nil
	}}
	r := setupRouter(uc)

	pngHeader := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("prompt", "make it blue"))
	require.NoError(t, mw.WriteField("aspectRatio", "9:16"))
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="reference"; filename="ref.png"`)
	h.Set("Content-Type", "application/octet-stream")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(pngHeader)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "make it blue", got.Prompt)
	assert.Equal(t, "9:16", got.AspectRatio)
	require.NotNil(t, got.Reference)
	assert.Equal(t, pngHeader, got.Reference.Data)
	assert.Equal(t, "image/png", got.Reference.MIMEType)
}

func TestGenerationHandler_MultipartWithoutReference(t *testing.T) {
	var got entity.Request
	uc := &mockGenerationUsecase{GenerateFunc: func(sid string, req entity.Request) (*entity.Result, error) {
		got = req
		return okResult(req), nil
	}}
	r := setupRouter(uc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("prompt", "a dog"))
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "a dog", got.Prompt)
	assert.Nil(t, got.Reference)
}

func TestGenerationHandler_BadReferenceDataURL(t *testing.T) {
	called := false
	uc := &mockGenerationUsecase{GenerateFunc: func(sid string, req entity.Request) (*entity.Result, error) {
		called = true
		return nil, nil
	}}
	r := setupRouter(uc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"prompt":"x","referenceImage":"https://example.com/a.png"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"unsupported reference image"}`, w.Body.String())
	assert.False(t, called)
}

func TestGenerationHandler_BodyTooLarge(t *testing.T) {
	uc := &mockGenerationUsecase{GenerateFunc: func(sid string, req entity.Request) (*entity.Result, error) {
		t.Fatal("usecase must not be called")
		return nil, nil
	}}
	r := setupRouter(uc)

	payload := `{"prompt":"x","referenceImage":"data:image/png;base64,` + strings.Repeat("A", MaxBodyBytes) + `"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestGenerationHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"empty prompt", domain.ErrEmptyPrompt, http.StatusBadRequest, "prompt is required"},
		{"aspect ratio", domain.ErrUnsupportedAspectRatio, http.StatusBadRequest, "unsupported aspect ratio"},
		{"no credits", domain.ErrInsufficientCredits, http.StatusPaymentRequired, "insufficient credits"},
		{"not authenticated", accountdomain.ErrNotAuthenticated, http.StatusUnauthorized, "not authenticated"},
		{"vendor failure", &domain.GenerationError{Reason: domain.ReasonTimeout, Err: context.DeadlineExceeded}, http.StatusBadGateway, domain.ReasonTimeout},
		{"reference rejected by vendor", &domain.GenerationError{Reason: domain.ReasonReferenceImage, Err: domain.ErrUnsupportedReferenceImage}, http.StatusBadRequest, domain.ReasonReferenceImage},
		{"deduction failed", domain.ErrDeductionFailed, http.StatusConflict, "credit could not be deducted; nothing was charged"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &mockGenerationUsecase{GenerateFunc: func(sid string, req entity.Request) (*entity.Result, error) {
				return nil, tt.err
			}}
			r := setupRouter(uc)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"prompt":"a cat"}`))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantMsg, body["error"])
		})
	}
}
