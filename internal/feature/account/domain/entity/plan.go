package entity

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Plan is a purchasable bundle of credits.
type Plan struct {
	ID           string          `json:"id" validate:"required"`
	Name         string          `json:"name" validate:"required"`
	Credits      int             `json:"credits" validate:"gt=0"`
	Price        decimal.Decimal `json:"price"`
	Popular      bool            `json:"popular,omitempty"`
	ExternalLink string          `json:"externalLink,omitempty" validate:"omitempty,url"`
}

// MarshalJSON writes price as a JSON number ("price":9.99) instead of decimal's quoted string.
// Unmarshalling accepts both forms through decimal.Decimal.
func (p Plan) MarshalJSON() ([]byte, error) {
	type plan Plan
	return json.Marshal(struct {
		plan
		Price json.RawMessage `json:"price"`
	}{plan: plan(p), Price: json.RawMessage(p.Price.String())})
}

// DefaultPlans returns the plans written on first run.
func DefaultPlans() []Plan {
	return []Plan{
		{ID: "starter", Name: "Starter", Credits: 20, Price: decimal.RequireFromString("9.99")},
		{ID: "pro", Name: "Pro Studio", Credits: 100, Price: decimal.RequireFromString("29.99"), Popular: true},
		{ID: "unlimited", Name: "Unlimited", Credits: 500, Price: decimal.RequireFromString("99.99")},
	}
}

// Purchase is the outcome of buying a plan: either a redirect to an external
// checkout or the user with the granted credits.
type Purchase struct {
	RedirectURL string `json:"redirectUrl,omitempty"`
	User        *User  `json:"user,omitempty"`
}
