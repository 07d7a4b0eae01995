// Package dto はaccountフィーチャーのHTTPトランスポート層のデータ転送オブジェクトを定義します。
package dto

import "studio_backend/internal/feature/account/domain/entity"

// SignupReq は/signupエンドポイントのリクエストボディを表します。
// パスワード長はユースケース側でも検証します。
type SignupReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"max=100"`
}

// LoginReq は/loginエンドポイントのリクエストボディを表します。
type LoginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthRes はsignup/login成功時のレスポンスです。
type AuthRes struct {
	Token string       `json:"token"`
	User  *entity.User `json:"user"`
}
