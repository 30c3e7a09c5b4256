package resolver

import (
	"context"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cobardes/radia-fm-sub000/internal/client"
	"github.com/cobardes/radia-fm-sub000/internal/model"
)

// DefaultMatchThreshold is the minimum similarity score to accept a search
// hit. Model-proposed titles and artists are frequently stylized or slightly
// wrong, and returning the wrong track is worse than returning none.
const DefaultMatchThreshold = 0.5

// maxConcurrentLookups bounds the resolution fan-out.
const maxConcurrentLookups = 8

// Candidate is a textual song proposal from the playlist engine.
type Candidate struct {
	Title  string
	Artist string
	Reason string
}

// ResolvedSong is a candidate matched to a playable track.
type ResolvedSong struct {
	ID        string
	Title     string
	Artists   []string
	Thumbnail string
	Reason    string
}

// Entry converts the resolved song to a playlist entry.
func (r ResolvedSong) Entry() model.PlaylistEntry {
	return model.PlaylistEntry{
		ID:     r.ID,
		Title:  r.Title,
		Artist: strings.Join(r.Artists, ", "),
		Reason: r.Reason,
	}
}

// Resolver maps textual candidates to playable tracks using a search backend
// and a similarity tie-break.
type Resolver struct {
	searcher  client.Searcher
	threshold float64
}

// New creates a resolver. A non-positive threshold falls back to the default.
func New(searcher client.Searcher, threshold float64) *Resolver {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &Resolver{searcher: searcher, threshold: threshold}
}

// Resolve matches each candidate independently and concurrently. Candidates
// whose best hit scores below the threshold are dropped with a log line, as
// are candidates whose search fails: one bad lookup never aborts its
// siblings. Output order follows input order among accepted candidates.
func (r *Resolver) Resolve(ctx context.Context, candidates []Candidate) []ResolvedSong {
	results := make([]*ResolvedSong, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)

	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			song, err := r.resolveOne(gctx, c)
			if err != nil {
				log.Printf("[Resolver] search failed for %q by %q: %v", c.Title, c.Artist, err)
				return nil
			}
			results[i] = song
			return nil
		})
	}
	_ = g.Wait()

	out := make([]ResolvedSong, 0, len(candidates))
	for _, s := range results {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// resolveOne returns nil, nil when no hit clears the threshold.
func (r *Resolver) resolveOne(ctx context.Context, c Candidate) (*ResolvedSong, error) {
	query := c.Title + " " + c.Artist
	hits, err := r.searcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	var best *model.Track
	bestScore := 0.0
	for i := range hits {
		score := r.score(c, &hits[i])
		if score > bestScore {
			bestScore = score
			best = &hits[i]
		}
	}

	if best == nil || bestScore < r.threshold {
		log.Printf("[Resolver] no acceptable match for %q by %q (best %.2f)", c.Title, c.Artist, bestScore)
		return nil, nil
	}

	return &ResolvedSong{
		ID:        best.ID,
		Title:     best.Title,
		Artists:   best.Artists,
		Thumbnail: best.Thumbnail,
		Reason:    c.Reason,
	}, nil
}

// score averages the title and artist field similarities, each normalized
// independently.
func (r *Resolver) score(c Candidate, t *model.Track) float64 {
	titleScore := similarity(normalizeTitle(c.Title), normalizeTitle(t.Title))
	artistScore := similarity(normalizeArtist(c.Artist), normalizeArtist(strings.Join(t.Artists, " ")))
	return (titleScore + artistScore) / 2
}
