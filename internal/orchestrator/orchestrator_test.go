package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cobardes/radia-fm-sub000/internal/model"
	"github.com/cobardes/radia-fm-sub000/internal/resolver"
	"github.com/cobardes/radia-fm-sub000/internal/script"
	"github.com/cobardes/radia-fm-sub000/internal/store"
)

// fakeStore applies commits with the same merge semantics as the redis
// store, entirely in memory.
type fakeStore struct {
	st     *model.Station
	locked bool

	stationErr error
	commitErr  error

	unlockCalls int
	commits     int
}

func (f *fakeStore) Station(ctx context.Context, id string) (*model.Station, error) {
	if f.stationErr != nil {
		return nil, f.stationErr
	}
	cp := *f.st
	return &cp, nil
}

func (f *fakeStore) TryLock(ctx context.Context, id string) error {
	if f.locked {
		return store.ErrExtensionInProgress
	}
	f.locked = true
	return nil
}

func (f *fakeStore) Unlock(ctx context.Context, id string) error {
	f.unlockCalls++
	f.locked = false
	return nil
}

func (f *fakeStore) CommitExtension(ctx context.Context, id string, entries []model.PlaylistEntry, queuedIDs []string, items []model.QueueItem) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.st.Playlist = append(f.st.Playlist, entries...)
	queued := make(map[string]bool, len(queuedIDs))
	for _, qid := range queuedIDs {
		queued[qid] = true
	}
	for i := range f.st.Playlist {
		if queued[f.st.Playlist[i].ID] {
			f.st.Playlist[i].IsInScript = true
		}
	}
	f.st.Queue = append(f.st.Queue, items...)
	f.locked = false
	f.commits++
	return nil
}

type fakeExtender struct {
	songs []resolver.ResolvedSong
	err   error
	calls int
}

func (f *fakeExtender) Extend(ctx context.Context, history []model.PlaylistEntry, count int, guidelines string, language model.Language) ([]resolver.ResolvedSong, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.songs, nil
}

// fakeGenerator mirrors the real generator's grouping: one song right after
// a fresh station's first segment, two per segment afterwards.
type fakeGenerator struct {
	err   error
	calls int
}

func (f *fakeGenerator) NextSegment(ctx context.Context, req *script.Request) (*script.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(req.Upcoming) == 0 {
		return nil, script.ErrNoMoreSegments
	}
	f.calls++

	count := 2
	if len(req.Recent) == 0 {
		count = 1
	}
	if count > len(req.Upcoming) {
		count = len(req.Upcoming)
	}
	return &script.Result{
		Segment: model.TalkSegment{
			ID:        fmt.Sprintf("seg-%d", f.calls),
			StationID: req.StationID,
			Text:      "coming up next",
			Language:  req.Language,
		},
		Songs: req.Upcoming[:count],
	}, nil
}

func seedStation() *model.Station {
	return &model.Station{
		ID:       "station-1",
		Language: model.LanguageEN,
		Playlist: []model.PlaylistEntry{
			{ID: "abc123", Title: "Blue Monday", Artist: "New Order", Reason: "seed"},
		},
		Queue: []model.QueueItem{},
	}
}

func resolvedBatch(n int) []resolver.ResolvedSong {
	out := make([]resolver.ResolvedSong, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, resolver.ResolvedSong{
			ID:      fmt.Sprintf("song-%d", i),
			Title:   fmt.Sprintf("Song %d", i),
			Artists: []string{"Artist"},
			Reason:  "fits the mood",
		})
	}
	return out
}

func TestRun_FreshStationQueueHead(t *testing.T) {
	fs := &fakeStore{st: seedStation()}
	ext := &fakeExtender{songs: resolvedBatch(4)}
	gen := &fakeGenerator{}

	orch := New(fs, ext, gen, 4)
	if err := orch.Run(context.Background(), "station-1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	q := fs.st.Queue
	if len(q) < 2 {
		t.Fatalf("expected at least 2 queue items, got %d", len(q))
	}
	if q[0].Type != model.QueueItemSegment {
		t.Errorf("queue head should be a segment, got %s", q[0].Type)
	}
	if q[1].Type != model.QueueItemSong || q[1].ID != "abc123" {
		t.Errorf("second item should be the seed song, got %s %s", q[1].Type, q[1].ID)
	}

	seen := map[string]int{}
	for _, item := range q {
		if item.Type == model.QueueItemSong {
			seen[item.ID]++
		}
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("song %s queued %d times", id, n)
		}
	}
}

func TestRun_ExtensionGrowsQueueWithoutDuplicates(t *testing.T) {
	fs := &fakeStore{st: seedStation()}
	ext := &fakeExtender{songs: resolvedBatch(4)}
	gen := &fakeGenerator{}
	orch := New(fs, ext, gen, 4)

	if err := orch.Run(context.Background(), "station-1"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	firstLen := len(fs.st.Queue)

	ext.songs = []resolver.ResolvedSong{
		{ID: "song-9", Title: "Song 9", Artists: []string{"Artist"}},
		{ID: "abc123", Title: "Blue Monday", Artists: []string{"New Order"}}, // re-proposed
	}
	if err := orch.Run(context.Background(), "station-1"); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if len(fs.st.Queue) <= firstLen {
		t.Errorf("queue did not grow: %d -> %d", firstLen, len(fs.st.Queue))
	}

	count := 0
	for _, item := range fs.st.Queue {
		if item.Type == model.QueueItemSong && item.ID == "abc123" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("seed song appears %d times, want exactly 1", count)
	}
}

func TestRun_SkipsSongsAlreadyInQueue(t *testing.T) {
	st := seedStation()
	st.Playlist = append(st.Playlist, model.PlaylistEntry{ID: "dup", Title: "Dup", Artist: "X"})
	st.Queue = []model.QueueItem{model.NewSongItem("dup", "Dup", []string{"X"}, "")}

	fs := &fakeStore{st: st}
	ext := &fakeExtender{}
	gen := &fakeGenerator{}
	orch := New(fs, ext, gen, 4)

	if err := orch.Run(context.Background(), "station-1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	count := 0
	for _, item := range fs.st.Queue {
		if item.Type == model.QueueItemSong && item.ID == "dup" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("already-queued song appears %d times, want 1", count)
	}
}

func TestRun_DoubleExtendIsNoOp(t *testing.T) {
	fs := &fakeStore{st: seedStation(), locked: true}
	ext := &fakeExtender{songs: resolvedBatch(4)}
	gen := &fakeGenerator{}
	orch := New(fs, ext, gen, 4)

	err := orch.Run(context.Background(), "station-1")
	if !errors.Is(err, store.ErrExtensionInProgress) {
		t.Fatalf("expected ErrExtensionInProgress, got %v", err)
	}
	if ext.calls != 0 {
		t.Errorf("playlist extender must not run while locked, got %d calls", ext.calls)
	}
	if gen.calls != 0 {
		t.Errorf("segment generator must not run while locked, got %d calls", gen.calls)
	}
	if len(fs.st.Queue) != 0 {
		t.Errorf("queue modified by refused run")
	}
}

func TestRun_LockReleasedAfterEveryFailure(t *testing.T) {
	cases := []struct {
		name string
		prep func(fs *fakeStore, ext *fakeExtender, gen *fakeGenerator)
	}{
		{"station load fails", func(fs *fakeStore, ext *fakeExtender, gen *fakeGenerator) {
			fs.stationErr = store.ErrStationNotFound
		}},
		{"playlist extension fails", func(fs *fakeStore, ext *fakeExtender, gen *fakeGenerator) {
			ext.err = errors.New("model timeout")
		}},
		{"script generation fails", func(fs *fakeStore, ext *fakeExtender, gen *fakeGenerator) {
			gen.err = errors.New("model refused")
		}},
		{"commit fails", func(fs *fakeStore, ext *fakeExtender, gen *fakeGenerator) {
			fs.commitErr = errors.New("redis gone")
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fs := &fakeStore{st: seedStation()}
			ext := &fakeExtender{songs: resolvedBatch(4)}
			gen := &fakeGenerator{}
			tc.prep(fs, ext, gen)

			orch := New(fs, ext, gen, 4)
			if err := orch.Run(context.Background(), "station-1"); err == nil {
				t.Fatal("expected run to fail")
			}
			if fs.locked {
				t.Error("lock still held after failed run")
			}
			if fs.unlockCalls == 0 {
				t.Error("unlock never called")
			}
		})
	}
}

func TestRun_LockReleasedOnSuccess(t *testing.T) {
	fs := &fakeStore{st: seedStation()}
	orch := New(fs, &fakeExtender{songs: resolvedBatch(2)}, &fakeGenerator{}, 2)

	if err := orch.Run(context.Background(), "station-1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if fs.locked {
		t.Error("lock still held after successful run")
	}
}

func TestRun_NothingToDoCommitsNothing(t *testing.T) {
	st := seedStation()
	st.Playlist[0].IsInScript = true
	st.Queue = []model.QueueItem{
		model.NewSegmentItem("seg-0", "hello"),
		model.NewSongItem("abc123", "Blue Monday", []string{"New Order"}, ""),
	}

	fs := &fakeStore{st: st}
	orch := New(fs, &fakeExtender{}, &fakeGenerator{}, 4)

	if err := orch.Run(context.Background(), "station-1"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if fs.commits != 0 {
		t.Errorf("expected no commit, got %d", fs.commits)
	}
	if fs.locked {
		t.Error("lock still held")
	}
}
