package model

import (
	"encoding/json"
	"fmt"
)

// QueueItem is one entry of the station's ordered, append-only queue: either
// a playable song or a spoken talk segment. The Type discriminator decides
// which field set is meaningful. Items are immutable once appended; ID is
// unique within its type-space and used for deduplication and client keying.
type QueueItem struct {
	Type QueueItemType `json:"type"`
	ID   string        `json:"id"`

	// Song fields
	Title     string   `json:"title,omitempty"`
	Artists   []string `json:"artists,omitempty"`
	Thumbnail string   `json:"thumbnail,omitempty"`

	// Segment fields
	Text string `json:"text,omitempty"`

	// Lazily resolved audio location, filled by the audio endpoints.
	AudioURL string `json:"audioUrl,omitempty"`
}

// NewSongItem builds a song queue item.
func NewSongItem(id, title string, artists []string, thumbnail string) QueueItem {
	return QueueItem{
		Type:      QueueItemSong,
		ID:        id,
		Title:     title,
		Artists:   artists,
		Thumbnail: thumbnail,
	}
}

// NewSegmentItem builds a talk segment queue item referencing a persisted
// TalkSegment by id.
func NewSegmentItem(id, text string) QueueItem {
	return QueueItem{
		Type: QueueItemSegment,
		ID:   id,
		Text: text,
	}
}

// Validate checks the item at the trust boundary: unknown or missing variant
// data is rejected before it enters the pipeline rather than trusted at every
// consumption site.
func (q *QueueItem) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("queue item missing id")
	}
	switch q.Type {
	case QueueItemSong:
		if q.Title == "" {
			return fmt.Errorf("song item %s missing title", q.ID)
		}
	case QueueItemSegment:
		if q.Text == "" {
			return fmt.Errorf("segment item %s missing text", q.ID)
		}
	default:
		return fmt.Errorf("queue item %s has unknown type %q", q.ID, q.Type)
	}
	return nil
}

// UnmarshalJSON parses and validates in one step so malformed queue documents
// never make it past the store.
func (q *QueueItem) UnmarshalJSON(data []byte) error {
	type alias QueueItem
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*q = QueueItem(a)
	return q.Validate()
}

// Track is a raw search backend hit.
type Track struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Artists   []string `json:"artists"`
	Thumbnail string   `json:"thumbnail,omitempty"`
}
