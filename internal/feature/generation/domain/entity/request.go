package entity

import (
	"fmt"

	accountentity "studio_backend/internal/feature/account/domain/entity"
	"studio_backend/internal/feature/generation/domain"
)

// AspectRatio is the shape of the generated image.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectWide      AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
	AspectClassic   AspectRatio = "4:3"
	AspectCinematic AspectRatio = "21:9"
)

// SupportedAspectRatios lists the ratios accepted by Generate.
var SupportedAspectRatios = []AspectRatio{AspectSquare, AspectWide, AspectPortrait, AspectClassic, AspectCinematic}

// ParseAspectRatio validates s. An empty string selects 1:1.
func ParseAspectRatio(s string) (AspectRatio, error) {
	if s == "" {
		return AspectSquare, nil
	}
	for _, r := range SupportedAspectRatios {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedAspectRatio, s)
}

// Request is one generation attempt.
type Request struct {
	Prompt      string
	AspectRatio string
	Reference   *Image
}

// Result is the outcome of a successful generation.
type Result struct {
	Entry   accountentity.HistoryEntry `json:"entry"`
	Balance int                        `json:"balance"`
}
