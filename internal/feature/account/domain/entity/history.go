package entity

import "time"

// HistoryEntry is the immutable record of one completed generation.
type HistoryEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Prompt      string    `json:"prompt"`
	ImageURL    string    `json:"imageUrl"`
	AspectRatio string    `json:"aspectRatio"`
	Timestamp   time.Time `json:"timestamp"`
	IsFavorite  bool      `json:"isFavorite,omitempty"`
}

// Stats is the aggregate view shown on the admin dashboard. It is derived, never stored.
type Stats struct {
	TotalUsers       int `json:"totalUsers"`
	TotalCredits     int `json:"totalCredits"`
	TotalGenerations int `json:"totalGenerations"`
	ActiveToday      int `json:"activeToday"`
}
