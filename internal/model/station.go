package model

import "time"

// PlaylistEntry is one song admitted to the station's canon playlist,
// independent of whether or when it plays. Reason is the curator's editorial
// justification, kept verbatim from the drafting model. The playlist is
// append-only.
type PlaylistEntry struct {
	ID         string `json:"id"` // YouTube video id
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Reason     string `json:"reason"`
	IsInScript bool   `json:"isInScript"` // already placed into the queue
}

// Station is the aggregate root: playlist, queue and the extension lock.
type Station struct {
	ID             string          `json:"id"`
	Name           string          `json:"name,omitempty"`
	Seed           *PlaylistEntry  `json:"seed,omitempty"`
	Guidelines     string          `json:"guidelines,omitempty"`
	Language       Language        `json:"language"`
	Playlist       []PlaylistEntry `json:"playlist"`
	Queue          []QueueItem     `json:"queue"`
	IsExtending    bool            `json:"isExtending"`
	ExtendingSince *time.Time      `json:"extendingSince,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// QueuedSongIDs returns the set of song ids already present in the queue.
func (s *Station) QueuedSongIDs() map[string]bool {
	ids := make(map[string]bool, len(s.Queue))
	for _, item := range s.Queue {
		if item.Type == QueueItemSong {
			ids[item.ID] = true
		}
	}
	return ids
}

// UnqueuedEntries returns playlist entries not yet placed into the queue,
// in playlist order.
func (s *Station) UnqueuedEntries() []PlaylistEntry {
	var out []PlaylistEntry
	for _, e := range s.Playlist {
		if !e.IsInScript {
			out = append(out, e)
		}
	}
	return out
}

// TalkSegment is a persisted unit of spoken DJ commentary. It is referenced
// by queue items by id and synthesized to audio lazily; deleting one orphans
// the referencing queue item but does not corrupt the queue.
type TalkSegment struct {
	ID        string    `json:"id"`
	StationID string    `json:"stationId"`
	Text      string    `json:"text"`
	Language  Language  `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
}
