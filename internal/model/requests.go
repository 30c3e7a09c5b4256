package model

import "time"

// SeedSong identifies the song a station is created around.
type SeedSong struct {
	ID     string `json:"id" validate:"required"`
	Title  string `json:"title" validate:"required"`
	Artist string `json:"artist" validate:"required"`
}

// StationCreateRequest creates a station from either a seed song or a free
// text query; exactly one of the two must be present.
type StationCreateRequest struct {
	Seed       *SeedSong `json:"seed,omitempty"`
	Query      string    `json:"query,omitempty" validate:"omitempty,min=2,max=200"`
	Guidelines string    `json:"guidelines,omitempty" validate:"omitempty,max=2000"`
	Language   Language  `json:"language,omitempty"`
}

// StationCreateResponse returns the new station plus the listener session
// token that authorizes queue reads and extension requests for it.
type StationCreateResponse struct {
	Station *Station `json:"station"`
	Token   string   `json:"token"`
}

// ExtendResponse acknowledges a queued extension run.
type ExtendResponse struct {
	StationID string    `json:"stationId"`
	Queued    bool      `json:"queued"`
	QueuedAt  time.Time `json:"queuedAt"`
}

// QueueResponse is the playback manifest consumed by clients.
type QueueResponse struct {
	StationID   string      `json:"stationId"`
	Items       []QueueItem `json:"items"`
	IsExtending bool        `json:"isExtending"`
}
