package dto

import "github.com/shopspring/decimal"

// SetCreditsReq は管理者による残高上書きのリクエストボディです。
type SetCreditsReq struct {
	Credits *int `json:"credits" binding:"required"`
}

// PurchaseReq はプラン購入のリクエストボディです。
type PurchaseReq struct {
	PlanID string `json:"planId" binding:"required"`
}

// PlanReq は管理者によるプラン編集のリクエストボディです。IDはパスから取ります。
type PlanReq struct {
	Name         string          `json:"name"`
	Credits      int             `json:"credits"`
	Price        decimal.Decimal `json:"price"`
	Popular      bool            `json:"popular"`
	ExternalLink string          `json:"externalLink"`
}
