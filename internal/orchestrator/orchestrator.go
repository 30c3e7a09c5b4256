package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cobardes/radia-fm-sub000/internal/model"
	"github.com/cobardes/radia-fm-sub000/internal/resolver"
	"github.com/cobardes/radia-fm-sub000/internal/script"
	"github.com/cobardes/radia-fm-sub000/internal/store"
)

// Store is the slice of the station store the orchestrator needs.
type Store interface {
	Station(ctx context.Context, id string) (*model.Station, error)
	TryLock(ctx context.Context, id string) error
	Unlock(ctx context.Context, id string) error
	CommitExtension(ctx context.Context, id string, entries []model.PlaylistEntry, queuedIDs []string, items []model.QueueItem) error
}

// PlaylistExtender proposes and resolves more songs for the playlist.
type PlaylistExtender interface {
	Extend(ctx context.Context, history []model.PlaylistEntry, count int, guidelines string, language model.Language) ([]resolver.ResolvedSong, error)
}

// SegmentGenerator produces one talk segment and the songs it introduces.
type SegmentGenerator interface {
	NextSegment(ctx context.Context, req *script.Request) (*script.Result, error)
}

// Orchestrator drives one queue extension run end to end: lock, extend
// playlist, generate the script segment by segment, build a deduplicated
// queue update, commit, unlock.
type Orchestrator struct {
	store     Store
	playlist  PlaylistExtender
	generator SegmentGenerator
	batchSize int
}

// New creates a queue extension orchestrator.
func New(st Store, pl PlaylistExtender, gen SegmentGenerator, batchSize int) *Orchestrator {
	if batchSize <= 0 {
		batchSize = 12
	}
	return &Orchestrator{
		store:     st,
		playlist:  pl,
		generator: gen,
		batchSize: batchSize,
	}
}

// Run executes one extension pass for the station. If another run already
// holds the lock it returns store.ErrExtensionInProgress, which callers treat
// as a no-op. On any other failure the lock is still released before the
// error propagates; a stuck isExtending flag would permanently wedge the
// station.
func (o *Orchestrator) Run(ctx context.Context, stationID string) error {
	if err := o.store.TryLock(ctx, stationID); err != nil {
		return err
	}

	// The unlock must survive a cancelled request context.
	unlockCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := o.store.Unlock(unlockCtx, stationID); err != nil && !errors.Is(err, store.ErrStationNotFound) {
			log.Printf("[Queue] failed to release extension lock for %s: %v", stationID, err)
		}
	}()

	st, err := o.store.Station(ctx, stationID)
	if err != nil {
		return err
	}

	resolved, err := o.playlist.Extend(ctx, st.Playlist, o.batchSize, st.Guidelines, st.Language)
	if err != nil {
		return fmt.Errorf("playlist extension failed: %w", err)
	}

	newEntries, byID := o.admitEntries(st, resolved)

	// Pool of songs eligible for queueing this pass: previously admitted but
	// never queued entries first, then the fresh batch.
	pool := append(st.UnqueuedEntries(), newEntries...)

	queuedSet := st.QueuedSongIDs()
	var queuedIDs []string
	pool = o.dropAlreadyQueued(pool, queuedSet, &queuedIDs)

	items, moreQueued, err := o.buildQueue(ctx, st, pool, queuedSet, byID)
	if err != nil {
		return err
	}
	queuedIDs = append(queuedIDs, moreQueued...)

	if len(newEntries) == 0 && len(items) == 0 {
		log.Printf("[Queue] nothing to extend for station %s", stationID)
		return nil
	}

	if err := o.store.CommitExtension(ctx, stationID, newEntries, queuedIDs, items); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	log.Printf("[Queue] station %s extended: +%d playlist entries, +%d queue items", stationID, len(newEntries), len(items))
	return nil
}

// admitEntries filters resolved songs already present in the playlist and
// returns the admitted entries plus a lookup for building rich queue items.
func (o *Orchestrator) admitEntries(st *model.Station, resolved []resolver.ResolvedSong) ([]model.PlaylistEntry, map[string]resolver.ResolvedSong) {
	existing := make(map[string]bool, len(st.Playlist))
	for _, e := range st.Playlist {
		existing[e.ID] = true
	}

	byID := make(map[string]resolver.ResolvedSong, len(resolved))
	var entries []model.PlaylistEntry
	for _, s := range resolved {
		if existing[s.ID] {
			log.Printf("[Queue] model re-proposed %q (%s), skipping", s.Title, s.ID)
			continue
		}
		existing[s.ID] = true
		byID[s.ID] = s
		entries = append(entries, s.Entry())
	}
	return entries, byID
}

// dropAlreadyQueued removes pool entries whose song id is already in the
// queue. They are marked as queued so future passes stop re-selecting them.
func (o *Orchestrator) dropAlreadyQueued(pool []model.PlaylistEntry, queuedSet map[string]bool, queuedIDs *[]string) []model.PlaylistEntry {
	out := pool[:0]
	for _, e := range pool {
		if queuedSet[e.ID] {
			log.Printf("[Queue] %q (%s) already queued, dropping", e.Title, e.ID)
			*queuedIDs = append(*queuedIDs, e.ID)
			continue
		}
		out = append(out, e)
	}
	return out
}

// buildQueue loops the segment generator until the pool is exhausted,
// interleaving one talk segment before each group of songs. Song ids are
// deduplicated against both the pre-existing queue and this run's own
// accumulation; duplicates are skipped and logged, never appended.
func (o *Orchestrator) buildQueue(ctx context.Context, st *model.Station, pool []model.PlaylistEntry, queuedSet map[string]bool, byID map[string]resolver.ResolvedSong) ([]model.QueueItem, []string, error) {
	recent := recentSongs(st.Queue)

	var items []model.QueueItem
	var queuedIDs []string

	for {
		res, err := o.generator.NextSegment(ctx, &script.Request{
			StationID:  st.ID,
			Recent:     recent,
			Upcoming:   pool,
			Guidelines: st.Guidelines,
			Language:   st.Language,
		})
		if errors.Is(err, script.ErrNoMoreSegments) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("script generation failed: %w", err)
		}

		items = append(items, model.NewSegmentItem(res.Segment.ID, res.Segment.Text))
		recent = recent[:0]

		for _, e := range res.Songs {
			if queuedSet[e.ID] {
				log.Printf("[Queue] duplicate song %q (%s), skipping", e.Title, e.ID)
				continue
			}
			queuedSet[e.ID] = true
			queuedIDs = append(queuedIDs, e.ID)

			item := songItem(e, byID)
			items = append(items, item)
			recent = append(recent, item)
		}
		pool = pool[len(res.Songs):]
	}

	return items, queuedIDs, nil
}

// songItem builds a song queue item, preferring the resolver's metadata
// (multiple artists, thumbnail) when available.
func songItem(e model.PlaylistEntry, byID map[string]resolver.ResolvedSong) model.QueueItem {
	if s, ok := byID[e.ID]; ok {
		return model.NewSongItem(s.ID, s.Title, s.Artists, s.Thumbnail)
	}
	return model.NewSongItem(e.ID, e.Title, strings.Split(e.Artist, ", "), "")
}

// recentSongs returns the songs played since the last spoken segment, in
// order, for bridging context.
func recentSongs(queue []model.QueueItem) []model.QueueItem {
	var tail []model.QueueItem
	for i := len(queue) - 1; i >= 0; i-- {
		if queue[i].Type == model.QueueItemSegment {
			break
		}
		tail = append([]model.QueueItem{queue[i]}, tail...)
	}
	return tail
}
