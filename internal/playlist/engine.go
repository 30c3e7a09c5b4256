package playlist

import (
	"context"
	"fmt"
	"log"

	"github.com/cobardes/radia-fm-sub000/internal/client"
	"github.com/cobardes/radia-fm-sub000/internal/model"
	"github.com/cobardes/radia-fm-sub000/internal/resolver"
)

// SongResolver matches textual candidates to playable tracks.
type SongResolver interface {
	Resolve(ctx context.Context, candidates []resolver.Candidate) []resolver.ResolvedSong
}

// Engine asks the generative model for more songs and resolves them to
// playable entries. Two model passes: an unconstrained creative draft, then
// a cheap structured coercion. Constraining the drafting model with a rigid
// schema degrades its picks.
type Engine struct {
	completer client.Completer
	resolver  SongResolver
}

// NewEngine creates a playlist extension engine.
func NewEngine(completer client.Completer, r SongResolver) *Engine {
	return &Engine{completer: completer, resolver: r}
}

// Extend proposes count more songs given the playlist history and returns
// the resolved subset. Count is a target, not a guarantee: candidates the
// resolver rejects are dropped silently. Deduplication against the existing
// playlist and queue is the orchestrator's job.
func (e *Engine) Extend(ctx context.Context, history []model.PlaylistEntry, count int, guidelines string, language model.Language) ([]resolver.ResolvedSong, error) {
	draft, err := e.completer.Complete(ctx, draftSystemPrompt, draftUserPrompt(history, count, guidelines, language))
	if err != nil {
		return nil, fmt.Errorf("playlist draft failed: %w", err)
	}

	var structured struct {
		Songs []struct {
			Title  string `json:"title"`
			Artist string `json:"artist"`
			Reason string `json:"reason"`
		} `json:"songs"`
	}
	err = e.completer.CompleteStructured(ctx, coerceSystemPrompt, coerceUserPrompt(draft), "playlist_candidates", candidateSchema, &structured)
	if err != nil {
		return nil, fmt.Errorf("playlist structuring failed: %w", err)
	}
	if len(structured.Songs) == 0 {
		return nil, fmt.Errorf("model proposed no songs")
	}

	candidates := make([]resolver.Candidate, 0, len(structured.Songs))
	for _, s := range structured.Songs {
		if s.Title == "" || s.Artist == "" {
			continue
		}
		candidates = append(candidates, resolver.Candidate{
			Title:  s.Title,
			Artist: s.Artist,
			Reason: s.Reason,
		})
	}

	resolved := e.resolver.Resolve(ctx, candidates)
	log.Printf("[Playlist] requested %d, model proposed %d, resolved %d", count, len(candidates), len(resolved))
	return resolved, nil
}
