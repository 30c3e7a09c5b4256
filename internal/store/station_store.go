package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cobardes/radia-fm-sub000/internal/model"
)

var (
	// ErrStationNotFound is a caller bug, not expected concurrency.
	ErrStationNotFound = errors.New("station not found")

	// ErrExtensionInProgress means another extension run owns the aggregate.
	// Callers treat it as a no-op, not a failure.
	ErrExtensionInProgress = errors.New("extension already in progress")

	// ErrSegmentNotFound covers deleted or never-persisted talk segments.
	ErrSegmentNotFound = errors.New("segment not found")
)

const (
	stationKeyPrefix = "station:"
	segmentKeyPrefix = "segment:"

	// EventsChannel carries station ids whose queue changed.
	EventsChannel = "station:events"

	// lock acquisition retries on WATCH conflicts
	casRetries = 5
)

// StationStore persists station aggregates and talk segments in Redis and
// publishes a change feed for realtime subscribers.
type StationStore struct {
	redis   *redis.Client
	lockTTL time.Duration
}

// NewStationStore creates a station store. lockTTL bounds how long a stale
// isExtending flag can block future extensions; zero disables self-healing.
func NewStationStore(redisClient *redis.Client, lockTTL time.Duration) *StationStore {
	return &StationStore{redis: redisClient, lockTTL: lockTTL}
}

// Create persists a new station document.
func (s *StationStore) Create(ctx context.Context, st *model.Station) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal station: %w", err)
	}
	return s.redis.Set(ctx, stationKeyPrefix+st.ID, data, 0).Err()
}

// Station loads the aggregate by id.
func (s *StationStore) Station(ctx context.Context, id string) (*model.Station, error) {
	data, err := s.redis.Get(ctx, stationKeyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrStationNotFound
		}
		return nil, err
	}

	var st model.Station
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal station %s: %w", id, err)
	}
	return &st, nil
}

// TryLock acquires the aggregate's extension lock: a single read-then-
// conditional-write on isExtending under WATCH, so concurrent attempts for
// the same station cannot both succeed. A lock older than the configured TTL
// is treated as stale (a crashed run that never reached its unlock) and may
// be retaken.
func (s *StationStore) TryLock(ctx context.Context, id string) error {
	key := stationKeyPrefix + id

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrStationNotFound
		}
		if err != nil {
			return err
		}

		var st model.Station
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("failed to unmarshal station %s: %w", id, err)
		}

		if st.IsExtending {
			stale := s.lockTTL > 0 && st.ExtendingSince != nil &&
				time.Since(*st.ExtendingSince) > s.lockTTL
			if !stale {
				return ErrExtensionInProgress
			}
		}

		now := time.Now()
		st.IsExtending = true
		st.ExtendingSince = &now

		updated, err := json.Marshal(&st)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	return s.withCAS(ctx, key, txn)
}

// Unlock resets the extension flag. It is safe to call after a commit (which
// already released the lock) and must be called on every failure path.
func (s *StationStore) Unlock(ctx context.Context, id string) error {
	key := stationKeyPrefix + id

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrStationNotFound
		}
		if err != nil {
			return err
		}

		var st model.Station
		if err := json.Unmarshal(data, &st); err != nil {
			return err
		}
		if !st.IsExtending {
			return nil
		}

		st.IsExtending = false
		st.ExtendingSince = nil

		updated, err := json.Marshal(&st)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	return s.withCAS(ctx, key, txn)
}

// CommitExtension appends the run's playlist entries and queue items, marks
// the queued entries, and releases the lock, all in one logically atomic
// update, then publishes a change event for realtime subscribers.
func (s *StationStore) CommitExtension(ctx context.Context, id string, entries []model.PlaylistEntry, queuedIDs []string, items []model.QueueItem) error {
	key := stationKeyPrefix + id
	queued := make(map[string]bool, len(queuedIDs))
	for _, qid := range queuedIDs {
		queued[qid] = true
	}

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrStationNotFound
		}
		if err != nil {
			return err
		}

		var st model.Station
		if err := json.Unmarshal(data, &st); err != nil {
			return err
		}

		st.Playlist = append(st.Playlist, entries...)
		for i := range st.Playlist {
			if queued[st.Playlist[i].ID] {
				st.Playlist[i].IsInScript = true
			}
		}
		st.Queue = append(st.Queue, items...)
		st.IsExtending = false
		st.ExtendingSince = nil

		updated, err := json.Marshal(&st)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	if err := s.withCAS(ctx, key, txn); err != nil {
		return err
	}
	if err := s.redis.Publish(ctx, EventsChannel, id).Err(); err != nil {
		// Subscribers miss one push; the next poll or extension catches up.
		log.Printf("[Store] failed to publish station event for %s: %v", id, err)
	}
	return nil
}

// SaveSegment persists a talk segment record.
func (s *StationStore) SaveSegment(ctx context.Context, seg *model.TalkSegment) error {
	data, err := json.Marshal(seg)
	if err != nil {
		return fmt.Errorf("failed to marshal segment: %w", err)
	}
	return s.redis.Set(ctx, segmentKeyPrefix+seg.ID, data, 0).Err()
}

// Segment loads a talk segment by id.
func (s *StationStore) Segment(ctx context.Context, id string) (*model.TalkSegment, error) {
	data, err := s.redis.Get(ctx, segmentKeyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSegmentNotFound
		}
		return nil, err
	}

	var seg model.TalkSegment
	if err := json.Unmarshal(data, &seg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal segment %s: %w", id, err)
	}
	return &seg, nil
}

// Subscribe returns the change feed of station ids whose queue was extended.
// The returned close func tears the subscription down.
func (s *StationStore) Subscribe(ctx context.Context) (<-chan string, func()) {
	pubsub := s.redis.Subscribe(ctx, EventsChannel)
	out := make(chan string, 16)

	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = pubsub.Close() }
}

// withCAS runs txn under WATCH with a bounded number of retries on conflict.
func (s *StationStore) withCAS(ctx context.Context, key string, txn func(tx *redis.Tx) error) error {
	var err error
	for i := 0; i < casRetries; i++ {
		err = s.redis.Watch(ctx, txn, key)
		if err != redis.TxFailedErr {
			return err
		}
	}
	return fmt.Errorf("station update conflicted %d times: %w", casRetries, err)
}
