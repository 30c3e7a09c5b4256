package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/cobardes/radia-fm-sub000/internal/auth"
	"github.com/cobardes/radia-fm-sub000/internal/client"
	"github.com/cobardes/radia-fm-sub000/internal/model"
	"github.com/cobardes/radia-fm-sub000/internal/store"
)

const TaskTypeExtend = "station:extend"

var (
	// ErrInvalidSeed means the request carried neither a seed song nor a query.
	ErrInvalidSeed = errors.New("either seed or query is required")

	// ErrSeedNotFound means the query matched no playable track.
	ErrSeedNotFound = errors.New("no track found for query")
)

// ExtendTaskPayload is the asynq payload for a queue extension run.
type ExtendTaskPayload struct {
	StationID string `json:"stationId"`
}

// StationService owns the station lifecycle: creation from a seed or free
// text query and scheduling of queue extension runs. Extension work itself
// runs in the worker, never on the request path.
type StationService struct {
	store       *store.StationStore
	searcher    client.Searcher
	tokens      *auth.TokenManager
	asynqClient *asynq.Client
}

func NewStationService(st *store.StationStore, searcher client.Searcher, tokens *auth.TokenManager, asynqClient *asynq.Client) *StationService {
	return &StationService{
		store:       st,
		searcher:    searcher,
		tokens:      tokens,
		asynqClient: asynqClient,
	}
}

// Create registers a new station seeded by req and schedules its first
// extension run. The returned token authorizes the caller's later requests
// against this station.
func (s *StationService) Create(ctx context.Context, req *model.StationCreateRequest) (*model.StationCreateResponse, error) {
	seed, err := s.resolveSeed(ctx, req)
	if err != nil {
		return nil, err
	}

	language := req.Language
	if language == "" {
		language = model.LanguageEN
	}

	st := &model.Station{
		ID:         uuid.New().String(),
		Name:       fmt.Sprintf("%s Radio", seed.Title),
		Seed:       seed,
		Guidelines: req.Guidelines,
		Language:   language,
		Playlist:   []model.PlaylistEntry{*seed},
		Queue:      []model.QueueItem{},
		CreatedAt:  time.Now(),
	}

	if err := s.store.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to save station: %w", err)
	}

	if err := s.enqueueExtend(st.ID); err != nil {
		return nil, err
	}

	token, err := s.tokens.Mint(st.ID)
	if err != nil {
		return nil, err
	}

	return &model.StationCreateResponse{Station: st, Token: token}, nil
}

// Extend schedules an extension run for an existing station. The run is
// asynchronous; concurrent requests collapse into one pass because the
// worker acquires the station's extension lock.
func (s *StationService) Extend(ctx context.Context, stationID string) (*model.ExtendResponse, error) {
	if _, err := s.store.Station(ctx, stationID); err != nil {
		return nil, err
	}

	if err := s.enqueueExtend(stationID); err != nil {
		return nil, err
	}

	return &model.ExtendResponse{
		StationID: stationID,
		Queued:    true,
		QueuedAt:  time.Now(),
	}, nil
}

// Station returns the full station document.
func (s *StationService) Station(ctx context.Context, stationID string) (*model.Station, error) {
	return s.store.Station(ctx, stationID)
}

// Queue returns the playback manifest for the station.
func (s *StationService) Queue(ctx context.Context, stationID string) (*model.QueueResponse, error) {
	st, err := s.store.Station(ctx, stationID)
	if err != nil {
		return nil, err
	}
	return &model.QueueResponse{
		StationID:   st.ID,
		Items:       st.Queue,
		IsExtending: st.IsExtending,
	}, nil
}

func (s *StationService) enqueueExtend(stationID string) error {
	data, err := json.Marshal(ExtendTaskPayload{StationID: stationID})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = s.asynqClient.Enqueue(asynq.NewTask(TaskTypeExtend, data),
		asynq.Queue("extend"),
		asynq.MaxRetry(2),
		asynq.Retention(time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue extension task: %w", err)
	}
	return nil
}

// resolveSeed turns the request into a concrete playlist entry. A seed song
// is taken as-is; a query is resolved through search, taking the best hit.
func (s *StationService) resolveSeed(ctx context.Context, req *model.StationCreateRequest) (*model.PlaylistEntry, error) {
	if req.Seed != nil {
		return &model.PlaylistEntry{
			ID:     req.Seed.ID,
			Title:  req.Seed.Title,
			Artist: req.Seed.Artist,
			Reason: "Listener's pick to set the mood for this station.",
		}, nil
	}

	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrInvalidSeed
	}

	tracks, err := s.searcher.Search(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("seed search failed: %w", err)
	}
	if len(tracks) == 0 {
		return nil, ErrSeedNotFound
	}

	best := tracks[0]
	return &model.PlaylistEntry{
		ID:     best.ID,
		Title:  best.Title,
		Artist: strings.Join(best.Artists, ", "),
		Reason: fmt.Sprintf("Top match for %q, the listener's opening request.", req.Query),
	}, nil
}
