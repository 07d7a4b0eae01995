// Package usecase はgenerationフィーチャー（クレジット消費型の画像生成ワークフロー）を実装します。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	accountentity "studio_backend/internal/feature/account/domain/entity"
	"studio_backend/internal/feature/generation/domain"
	"studio_backend/internal/feature/generation/domain/entity"
	"studio_backend/internal/platform/logger"
	"studio_backend/internal/platform/metrics"
)

const (
	// MaxReferenceImageSize は参照画像の最大サイズ（10MB）です。
	MaxReferenceImageSize = 10 * 1024 * 1024

	// DefaultTimeout は画像生成呼び出しのデフォルトのタイムアウトです。
	DefaultTimeout = 90 * time.Second
)

// Ledger はワークフローが利用するアカウント台帳の操作です。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
//
// セッションを使うのは検証時のユーザー解決だけです。精算はそこで得たユーザーIDで行うため、
// 生成中にログアウトされても課金と履歴・払い戻しの対応は崩れません。
type Ledger interface {
	CurrentUser(ctx context.Context, sessionID string) (*accountentity.User, error)
	// DeductCreditFor は1クレジットを差し引きます。残高不足やユーザー不在の場合は (nil, nil) を返します。
	DeductCreditFor(ctx context.Context, userID string) (*accountentity.User, error)
	AddCreditsFor(ctx context.Context, userID string, amount int) (*accountentity.User, error)
	RecordGenerationFor(ctx context.Context, userID, prompt, imageURL, aspectRatio string) (*accountentity.HistoryEntry, error)
}

// ImageGenerator は外部の画像生成APIです。
type ImageGenerator interface {
	// Generate はプロンプトと任意の参照画像から画像を1枚生成します。
	Generate(ctx context.Context, prompt string, ratio entity.AspectRatio, reference *entity.Image) (*entity.Image, error)
}

// ImageStore は生成画像を保存し、履歴に記録するURLを返します。
type ImageStore interface {
	Save(ctx context.Context, userID string, img *entity.Image) (string, error)
	// Discard は課金できなかった画像を削除します。ベストエフォートです。
	Discard(ctx context.Context, imageURL string) error
}

// Limiter は外部API呼び出しの頻度を制限します。
type Limiter interface {
	Wait(ctx context.Context) error
}

// generationUsecase は画像生成ワークフローを実装します。
type generationUsecase struct {
	ledger    Ledger
	generator ImageGenerator
	images    ImageStore
	limiter   Limiter
	metrics   *metrics.GenerationMetrics
	timeout   time.Duration
}

// NewGenerationUsecase はgenerationUsecaseの新しいインスタンスを生成します。
// timeout が0以下の場合は DefaultTimeout を使用します。metrics は nil でも構いません。
func NewGenerationUsecase(ledger Ledger, generator ImageGenerator, images ImageStore, limiter Limiter, m *metrics.GenerationMetrics, timeout time.Duration) *generationUsecase {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &generationUsecase{
		ledger:    ledger,
		generator: generator,
		images:    images,
		limiter:   limiter,
		metrics:   m,
		timeout:   timeout,
	}
}

// run は1回の生成の状態遷移を記録します。
type run struct {
	stage     entity.Stage
	sessionID string
}

func (r *run) to(next entity.Stage) {
	slog.Debug("generation stage", "from", r.stage.String(), "to", next.String(), "terminal", next.Terminal(), "session_id", logger.ShortID(r.sessionID))
	r.stage = next
}

func (u *generationUsecase) fail(r *run, outcome string, err error) (*entity.Result, error) {
	r.to(entity.StageFailed)
	u.metrics.ObserveOutcome(outcome)
	return nil, err
}

// Generate は検証 → 生成 → 精算の順に実行します。
// クレジットは画像が生成・保存された後にのみ差し引かれます。
func (u *generationUsecase) Generate(ctx context.Context, sessionID string, req entity.Request) (*entity.Result, error) {
	r := &run{stage: entity.StageIdle, sessionID: sessionID}

	r.to(entity.StageValidating)
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return u.fail(r, metrics.OutcomeRejected, domain.ErrEmptyPrompt)
	}
	ratio, err := entity.ParseAspectRatio(req.AspectRatio)
	if err != nil {
		return u.fail(r, metrics.OutcomeRejected, err)
	}
	if err := validateReference(req.Reference); err != nil {
		return u.fail(r, metrics.OutcomeRejected, err)
	}
	user, err := u.ledger.CurrentUser(ctx, sessionID)
	if err != nil {
		return u.fail(r, metrics.OutcomeRejected, err)
	}
	if user.Credits <= 0 {
		return u.fail(r, metrics.OutcomeRejected, domain.ErrInsufficientCredits)
	}

	r.to(entity.StageInvoking)
	img, err := u.invoke(ctx, prompt, ratio, req.Reference)
	if err != nil {
		slog.Warn("image generation failed", "error", err, "user_id", user.ID)
		return u.fail(r, metrics.OutcomeVendorFailure, err)
	}
	imageURL, err := u.images.Save(ctx, user.ID, img)
	if err != nil {
		slog.Error("failed to store generated image", "error", err, "user_id", user.ID)
		return u.fail(r, metrics.OutcomeVendorFailure, &domain.GenerationError{Reason: domain.ReasonStorage, Err: err})
	}

	r.to(entity.StageSettling)
	charged, err := u.ledger.DeductCreditFor(ctx, user.ID)
	if err != nil || charged == nil {
		u.discard(imageURL)
		if err != nil {
			slog.Error("credit deduction errored", "error", err, "user_id", user.ID)
			return u.fail(r, metrics.OutcomeError, fmt.Errorf("deducting credit: %w", err))
		}
		slog.Warn("credit deduction refused after generation; image discarded", "user_id", user.ID)
		return u.fail(r, metrics.OutcomeDeduction, domain.ErrDeductionFailed)
	}

	entry, err := u.ledger.RecordGenerationFor(ctx, user.ID, prompt, imageURL, string(ratio))
	if err != nil {
		// 履歴なしの課金を残さない
		u.refund(user.ID)
		u.discard(imageURL)
		return u.fail(r, metrics.OutcomeError, fmt.Errorf("recording generation: %w", err))
	}
	u.metrics.IncCreditsSpent()
	balance := charged.Credits

	r.to(entity.StageDone)
	u.metrics.ObserveOutcome(metrics.OutcomeDone)
	slog.Info("generation done", "user_id", user.ID, "aspect_ratio", string(ratio), "balance", balance)
	return &entity.Result{Entry: *entry, Balance: balance}, nil
}

func validateReference(ref *entity.Image) error {
	if ref == nil {
		return nil
	}
	if len(ref.Data) == 0 {
		return fmt.Errorf("%w: empty image", domain.ErrUnsupportedReferenceImage)
	}
	if len(ref.Data) > MaxReferenceImageSize {
		return fmt.Errorf("%w: image exceeds %d bytes", domain.ErrUnsupportedReferenceImage, MaxReferenceImageSize)
	}
	if ref.MIMEType != "" && !strings.HasPrefix(ref.MIMEType, "image/") {
		return fmt.Errorf("%w: %s is not an image", domain.ErrUnsupportedReferenceImage, ref.MIMEType)
	}
	return nil
}

// invoke はレートリミットとタイムアウトの下で外部APIを1回だけ呼び出します。リトライはしません。
func (u *generationUsecase) invoke(ctx context.Context, prompt string, ratio entity.AspectRatio, ref *entity.Image) (*entity.Image, error) {
	callCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	if err := u.limiter.Wait(callCtx); err != nil {
		return nil, &domain.GenerationError{Reason: domain.ReasonBusy, Err: err}
	}

	start := time.Now()
	img, err := u.generator.Generate(callCtx, prompt, ratio, ref)
	u.metrics.ObserveVendorCall(time.Since(start))

	if err == nil && (img == nil || len(img.Data) == 0) {
		err = domain.ErrNoImageReturned
	}
	if err != nil {
		return nil, &domain.GenerationError{Reason: reasonFor(callCtx, err), Err: err}
	}
	return img, nil
}

func reasonFor(callCtx context.Context, err error) string {
	switch {
	case errors.Is(err, domain.ErrUnsupportedReferenceImage):
		return domain.ReasonReferenceImage
	case errors.Is(err, domain.ErrNoImageReturned):
		return domain.ReasonNoImage
	case errors.Is(err, context.DeadlineExceeded), errors.Is(callCtx.Err(), context.DeadlineExceeded):
		return domain.ReasonTimeout
	default:
		return domain.ReasonGeneric
	}
}

// cleanupTimeout は呼び出し元がキャンセル済みでも後始末を行うための上限です。
const cleanupTimeout = 10 * time.Second

func (u *generationUsecase) discard(imageURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := u.images.Discard(ctx, imageURL); err != nil {
		slog.Warn("failed to discard generated image", "error", err)
	}
}

func (u *generationUsecase) refund(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if _, err := u.ledger.AddCreditsFor(ctx, userID, 1); err != nil {
		slog.Error("failed to refund credit", "error", err, "user_id", userID)
	}
}
