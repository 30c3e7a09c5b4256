package model

import (
	"encoding/json"
	"testing"
)

func TestQueueItemValidate(t *testing.T) {
	cases := []struct {
		name    string
		item    QueueItem
		wantErr bool
	}{
		{"valid song", NewSongItem("abc123", "Blue Monday", []string{"New Order"}, ""), false},
		{"valid segment", NewSegmentItem("seg-1", "welcome to the station"), false},
		{"missing id", QueueItem{Type: QueueItemSong, Title: "Blue Monday"}, true},
		{"song without title", QueueItem{Type: QueueItemSong, ID: "abc123"}, true},
		{"segment without text", QueueItem{Type: QueueItemSegment, ID: "seg-1"}, true},
		{"unknown type", QueueItem{Type: "jingle", ID: "x"}, true},
		{"empty type", QueueItem{ID: "x", Title: "t"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.item.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected valid item, got %v", err)
			}
		})
	}
}

func TestQueueItemUnmarshalRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"unknown type", `{"type":"jingle","id":"x"}`},
		{"missing id", `{"type":"song","title":"Blue Monday"}`},
		{"song missing title", `{"type":"song","id":"abc123"}`},
		{"segment missing text", `{"type":"segment","id":"seg-1"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var item QueueItem
			if err := json.Unmarshal([]byte(tc.data), &item); err == nil {
				t.Errorf("expected unmarshal of %s to fail", tc.data)
			}
		})
	}
}

func TestQueueItemUnmarshalAcceptsValid(t *testing.T) {
	data := `{"type":"song","id":"abc123","title":"Blue Monday","artists":["New Order"],"thumbnail":"https://example.com/t.jpg"}`
	var item QueueItem
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.Type != QueueItemSong || item.ID != "abc123" {
		t.Errorf("unexpected item %+v", item)
	}
	if len(item.Artists) != 1 || item.Artists[0] != "New Order" {
		t.Errorf("expected artists preserved, got %v", item.Artists)
	}
}

func TestLanguageIsValid(t *testing.T) {
	for _, l := range ValidLanguages {
		if !l.IsValid() {
			t.Errorf("expected %q to be valid", l)
		}
	}
	for _, l := range []Language{"", "xx", "english"} {
		if l.IsValid() {
			t.Errorf("expected %q to be invalid", l)
		}
	}
}
