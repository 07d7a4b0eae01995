// Package usecase はaccountフィーチャー（認証・クレジット台帳・プラン・履歴）のビジネスロジックを実装します。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"studio_backend/internal/feature/account/domain"
	"studio_backend/internal/feature/account/domain/entity"
	"studio_backend/internal/platform/logger"
)

const (
	// minPasswordLength はパスワードの最低文字数を定義します。
	minPasswordLength = 8

	// signupCredits は新規ユーザーに付与されるクレジット数です。
	signupCredits = 5

	// HistoryCapacity は全ユーザー合計で保持する履歴の上限です。
	HistoryCapacity = 100

	// dummyHash はユーザーが存在しない場合でも bcrypt 比較を行うためのハッシュです。
	dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
)

// UserRepository はユーザーレコードの永続化層を抽象化します。
// Goの慣例に従い、インターフェースはプロバイダー（adapters）ではなくコンシューマー（usecase）が定義します。
type UserRepository interface {
	// Create は新しいユーザーを保存します。メールアドレスが既に存在する場合は domain.ErrDuplicateUser を返します。
	Create(ctx context.Context, rec entity.UserRecord) error

	// FindByEmail はメールアドレスでユーザーを取得します。存在しない場合は domain.ErrUserNotFound を返します。
	FindByEmail(ctx context.Context, email string) (*entity.UserRecord, error)

	// FindByID はIDでユーザーを取得します。存在しない場合は domain.ErrUserNotFound を返します。
	FindByID(ctx context.Context, id string) (*entity.UserRecord, error)

	// List は全ユーザーを返します。
	List(ctx context.Context) ([]entity.UserRecord, error)

	// UpdateCredits は fn で残高を書き換えます。読み取りと書き込みは他の更新に対して直列化されます。
	// fn がエラーを返した場合は何も書き込まれません。
	UpdateCredits(ctx context.Context, id string, fn func(current int) (int, error)) (*entity.User, error)
}

// SessionRepository はクライアントごとのセッションスロットを扱います。
type SessionRepository interface {
	// Set はセッションをユーザーに紐付けます。
	Set(ctx context.Context, sessionID, userID string) error
	// Get はセッションのユーザーIDを返します。セッションが無い場合は空文字を返します。
	Get(ctx context.Context, sessionID string) (string, error)
	// Delete はセッションを削除します。存在しない場合もエラーにはなりません。
	Delete(ctx context.Context, sessionID string) error
}

// HistoryRepository は生成履歴（新しい順）を扱います。
type HistoryRepository interface {
	// Prepend は先頭に追加し、capacity 件を超えた古いエントリを削除します。
	Prepend(ctx context.Context, entry entity.HistoryEntry, capacity int) error
	// List は全エントリを新しい順で返します。
	List(ctx context.Context) ([]entity.HistoryEntry, error)
}

// PlanRepository はクレジットプランを扱います。
type PlanRepository interface {
	// List は保存順でプランを返します。
	List(ctx context.Context) ([]entity.Plan, error)
	// Replace は同じIDのプランを置き換えます。存在しない場合は domain.ErrPlanNotFound を返します。
	Replace(ctx context.Context, plan entity.Plan) error
	// SeedIfEmpty はプランが空のときだけ plans を書き込み、書き込んだかどうかを返します。
	SeedIfEmpty(ctx context.Context, plans []entity.Plan) (bool, error)
}

// accountUsecase はアカウントと台帳のビジネスロジックを実装します。
type accountUsecase struct {
	users    UserRepository
	sessions SessionRepository
	history  HistoryRepository
	plans    PlanRepository
	validate *validator.Validate
	now      func() time.Time
}

// NewAccountUsecase はaccountUsecaseの新しいインスタンスを生成します。
func NewAccountUsecase(users UserRepository, sessions SessionRepository, history HistoryRepository, plans PlanRepository) *accountUsecase {
	return &accountUsecase{
		users:    users,
		sessions: sessions,
		history:  history,
		plans:    plans,
		validate: validator.New(),
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup はユーザーを登録し、sessionID をそのユーザーに紐付けます。
func (u *accountUsecase) Signup(ctx context.Context, sessionID, email, password, name string) (*entity.User, error) {
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: at least %d characters", domain.ErrWeakPassword, minPasswordLength)
	}
	email = normalizeEmail(email)

	name = strings.TrimSpace(name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	rec := entity.UserRecord{
		User: entity.User{
			ID:      uuid.NewString(),
			Email:   email,
			Name:    name,
			Credits: signupCredits,
		},
		PasswordHash: string(hashed),
	}
	if err := u.users.Create(ctx, rec); err != nil {
		return nil, err
	}
	if err := u.sessions.Set(ctx, sessionID, rec.ID); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	slog.Info("user signed up", "user_id", rec.ID, "session_id", logger.ShortID(sessionID))
	user := rec.Public()
	return &user, nil
}

// Login はユーザーを認証し、成功時に sessionID をそのユーザーに紐付けます。
// タイミング攻撃を防止するため、ユーザーが存在しない場合でもbcrypt比較を実行します。
func (u *accountUsecase) Login(ctx context.Context, sessionID, email, password string) (*entity.User, error) {
	rec, err := u.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	passwordHash := dummyHash
	if rec != nil {
		passwordHash = rec.PasswordHash
	}
	compareErr := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password))
	if rec == nil || compareErr != nil {
		return nil, domain.ErrInvalidCredentials
	}

	if err := u.sessions.Set(ctx, sessionID, rec.ID); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	user := rec.Public()
	return &user, nil
}

// Logout はセッションを削除します。何度呼んでも結果は同じです。
func (u *accountUsecase) Logout(ctx context.Context, sessionID string) error {
	return u.sessions.Delete(ctx, sessionID)
}

// currentRecord はセッションのユーザーを解決します。
func (u *accountUsecase) currentRecord(ctx context.Context, sessionID string) (*entity.UserRecord, error) {
	if sessionID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	userID, err := u.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	rec, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		// 削除済みユーザーを指すセッション
		return nil, domain.ErrNotAuthenticated
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CurrentUser はセッションのユーザーを返します。
func (u *accountUsecase) CurrentUser(ctx context.Context, sessionID string) (*entity.User, error) {
	rec, err := u.currentRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	user := rec.Public()
	return &user, nil
}

// RequireAdmin はセッションのユーザーが管理者であることを確認します。
func (u *accountUsecase) RequireAdmin(ctx context.Context, sessionID string) (*entity.User, error) {
	user, err := u.CurrentUser(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin {
		return nil, domain.ErrForbidden
	}
	return user, nil
}

// AllUsers は全ユーザーをメールアドレス順で返します。
func (u *accountUsecase) AllUsers(ctx context.Context) ([]entity.User, error) {
	recs, err := u.users.List(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]entity.User, 0, len(recs))
	for _, r := range recs {
		users = append(users, r.Public())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

// SetCredits は残高を amount に上書きします。
func (u *accountUsecase) SetCredits(ctx context.Context, userID string, amount int) (*entity.User, error) {
	if amount < 0 {
		return nil, domain.ErrInvalidAmount
	}
	return u.users.UpdateCredits(ctx, userID, func(int) (int, error) {
		return amount, nil
	})
}

// AddCredits はセッションのユーザーの残高に amount を加算します。
func (u *accountUsecase) AddCredits(ctx context.Context, sessionID string, amount int) (*entity.User, error) {
	rec, err := u.currentRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return u.AddCreditsFor(ctx, rec.ID, amount)
}

// AddCreditsFor はユーザーIDを指定して残高に amount を加算します。
// 生成ワークフローの払い戻しのようにセッションに依存できない処理で使います。
func (u *accountUsecase) AddCreditsFor(ctx context.Context, userID string, amount int) (*entity.User, error) {
	return u.users.UpdateCredits(ctx, userID, func(current int) (int, error) {
		next := current + amount
		if next < 0 {
			return 0, domain.ErrInvalidAmount
		}
		return next, nil
	})
}

var errNoCredits = errors.New("no credits left")

// DeductOneCredit はセッションのユーザーから1クレジットを差し引きます。
// セッションが無い場合や残高が0以下の場合は false を返します。
func (u *accountUsecase) DeductOneCredit(ctx context.Context, sessionID string) (bool, error) {
	rec, err := u.currentRecord(ctx, sessionID)
	if errors.Is(err, domain.ErrNotAuthenticated) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	user, err := u.DeductCreditFor(ctx, rec.ID)
	return user != nil, err
}

// DeductCreditFor はユーザーIDを指定して1クレジットを差し引き、差し引き後のユーザーを返します。
// ユーザーが存在しない場合や残高が0以下の場合は (nil, nil) を返します。
func (u *accountUsecase) DeductCreditFor(ctx context.Context, userID string) (*entity.User, error) {
	user, err := u.users.UpdateCredits(ctx, userID, func(current int) (int, error) {
		if current <= 0 {
			return 0, errNoCredits
		}
		return current - 1, nil
	})
	switch {
	case errors.Is(err, errNoCredits), errors.Is(err, domain.ErrUserNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return user, nil
}

// Plans はクレジットプランを返します。
func (u *accountUsecase) Plans(ctx context.Context) ([]entity.Plan, error) {
	return u.plans.List(ctx)
}

// SavePlan は同じIDの既存プランを上書きします。
func (u *accountUsecase) SavePlan(ctx context.Context, plan entity.Plan) (*entity.Plan, error) {
	if err := u.validate.Struct(plan); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPlan, err)
	}
	if plan.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", domain.ErrInvalidPlan)
	}
	if err := u.plans.Replace(ctx, plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// PurchasePlan はプランを購入します。外部決済リンクを持つプランはリダイレクト先を返し、
// 残高は変更しません。それ以外はプランのクレジットを加算します。
func (u *accountUsecase) PurchasePlan(ctx context.Context, sessionID, planID string) (*entity.Purchase, error) {
	if _, err := u.currentRecord(ctx, sessionID); err != nil {
		return nil, err
	}
	plans, err := u.plans.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range plans {
		if p.ID != planID {
			continue
		}
		if p.ExternalLink != "" {
			return &entity.Purchase{RedirectURL: p.ExternalLink}, nil
		}
		user, err := u.AddCredits(ctx, sessionID, p.Credits)
		if err != nil {
			return nil, err
		}
		return &entity.Purchase{User: user}, nil
	}
	return nil, domain.ErrPlanNotFound
}

// RecordGeneration は生成結果をセッションのユーザーの履歴として先頭に追加します。
func (u *accountUsecase) RecordGeneration(ctx context.Context, sessionID, prompt, imageURL, aspectRatio string) (*entity.HistoryEntry, error) {
	rec, err := u.currentRecord(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return u.RecordGenerationFor(ctx, rec.ID, prompt, imageURL, aspectRatio)
}

// RecordGenerationFor はユーザーIDを指定して生成結果を履歴の先頭に追加します。
func (u *accountUsecase) RecordGenerationFor(ctx context.Context, userID, prompt, imageURL, aspectRatio string) (*entity.HistoryEntry, error) {
	entry := entity.HistoryEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Prompt:      prompt,
		ImageURL:    imageURL,
		AspectRatio: aspectRatio,
		Timestamp:   u.now().UTC(),
	}
	if err := u.history.Prepend(ctx, entry, HistoryCapacity); err != nil {
		return nil, fmt.Errorf("failed to record generation: %w", err)
	}
	return &entry, nil
}

// History は指定ユーザーの履歴を新しい順で返します。
func (u *accountUsecase) History(ctx context.Context, userID string) ([]entity.HistoryEntry, error) {
	all, err := u.history.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]entity.HistoryEntry, 0)
	for _, e := range all {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// Stats は管理画面向けの集計値を計算します。
func (u *accountUsecase) Stats(ctx context.Context) (*entity.Stats, error) {
	recs, err := u.users.List(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := u.history.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &entity.Stats{
		TotalUsers:       len(recs),
		TotalGenerations: len(entries),
		ActiveToday:      max(1, len(recs)*4/10),
	}
	for _, r := range recs {
		stats.TotalCredits += r.Credits
	}
	return stats, nil
}

// Seed は初回起動時に管理者アカウントとデフォルトプランを作成します。
// 既にユーザーやプランが存在する場合はそれぞれ何もしません。セッションは作成しません。
func (u *accountUsecase) Seed(ctx context.Context, admin entity.AdminSeed) error {
	recs, err := u.users.List(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		hashed, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}
		name := admin.Name
		if name == "" {
			name = "System Admin"
		}
		credits := admin.Credits
		if credits == 0 {
			credits = 999
		}
		rec := entity.UserRecord{
			User: entity.User{
				ID:      uuid.NewString(),
				Email:   normalizeEmail(admin.Email),
				Name:    name,
				Credits: credits,
				IsAdmin: true,
			},
			PasswordHash: string(hashed),
		}
		if err := u.users.Create(ctx, rec); err != nil && !errors.Is(err, domain.ErrDuplicateUser) {
			return fmt.Errorf("failed to seed admin: %w", err)
		}
		slog.Info("seeded admin account", "email", rec.Email)
	}

	seeded, err := u.plans.SeedIfEmpty(ctx, entity.DefaultPlans())
	if err != nil {
		return fmt.Errorf("failed to seed plans: %w", err)
	}
	if seeded {
		slog.Info("seeded default credit plans")
	}
	return nil
}
