package script

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cobardes/radia-fm-sub000/internal/client"
	"github.com/cobardes/radia-fm-sub000/internal/model"
)

// ErrNoMoreSegments signals that every playlist song has been queued: the
// natural end of one extension pass, not a failure.
var ErrNoMoreSegments = errors.New("no unqueued playlist songs remain")

// SegmentStore persists talk segment records.
type SegmentStore interface {
	SaveSegment(ctx context.Context, seg *model.TalkSegment) error
}

// CountPolicy decides how many upcoming songs one talk segment introduces.
// Pluggable so tests can pin the choice.
type CountPolicy func(r *rand.Rand) int

// DefaultCountPolicy favors two songs per link, occasionally one or three
// (20/60/20). The variety is intentional; a fixed cadence sounds mechanical
// on air.
func DefaultCountPolicy(r *rand.Rand) int {
	switch v := r.Float64(); {
	case v < 0.2:
		return 1
	case v < 0.8:
		return 2
	default:
		return 3
	}
}

// Request carries the context for one segment generation step.
type Request struct {
	StationID  string
	Recent     []model.QueueItem     // songs played since the last spoken segment
	Upcoming   []model.PlaylistEntry // not-yet-queued playlist songs, in order
	Guidelines string
	Language   model.Language
}

// Result is one spoken segment plus the upcoming songs it introduces.
type Result struct {
	Segment model.TalkSegment
	Songs   []model.PlaylistEntry
}

// Generator produces talk segments one at a time: the orchestrator loops it
// until ErrNoMoreSegments.
type Generator struct {
	completer client.Completer
	store     SegmentStore
	policy    CountPolicy

	// One seeded source shared by every extension run; the worker pool calls
	// NextSegment concurrently for different stations.
	randMu sync.Mutex
	rand   *rand.Rand
}

// NewGenerator creates a segment generator. A nil policy uses the default
// weighted distribution.
func NewGenerator(completer client.Completer, store SegmentStore, policy CountPolicy) *Generator {
	if policy == nil {
		policy = DefaultCountPolicy
	}
	return &Generator{
		completer: completer,
		store:     store,
		policy:    policy,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextSegment picks the next upcoming songs, asks the model for one bridging
// commentary, persists the talk segment record, and returns both. The first
// segment of a fresh station always introduces exactly one song so the seed
// plays right after the opening words.
func (g *Generator) NextSegment(ctx context.Context, req *Request) (*Result, error) {
	if len(req.Upcoming) == 0 {
		return nil, ErrNoMoreSegments
	}

	g.randMu.Lock()
	count := g.policy(g.rand)
	g.randMu.Unlock()
	if len(req.Recent) == 0 {
		count = 1
	}
	if count > len(req.Upcoming) {
		count = len(req.Upcoming)
	}
	chosen := req.Upcoming[:count]

	text, err := g.completer.Complete(ctx, segmentSystemPrompt(req.Language), segmentUserPrompt(req, chosen))
	if err != nil {
		return nil, fmt.Errorf("segment generation failed: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("model produced an empty segment")
	}

	seg := model.TalkSegment{
		ID:        uuid.New().String(),
		StationID: req.StationID,
		Text:      text,
		Language:  req.Language,
		CreatedAt: time.Now(),
	}
	if err := g.store.SaveSegment(ctx, &seg); err != nil {
		return nil, fmt.Errorf("failed to persist segment: %w", err)
	}

	return &Result{Segment: seg, Songs: chosen}, nil
}

func segmentSystemPrompt(language model.Language) string {
	return fmt.Sprintf(`You are a warm, knowledgeable radio DJ speaking %s.
Write exactly what you would say on air: no stage directions, no markdown,
no song metadata labels. Two to five sentences. Bridge from what just played
to what comes next using the editorial reasons you are given, but speak
naturally; never read the reasons out loud verbatim.`, language.SpeechName())
}

func segmentUserPrompt(req *Request, chosen []model.PlaylistEntry) string {
	var b strings.Builder

	if len(req.Recent) == 0 {
		b.WriteString("This is the very first break of the broadcast. Welcome the listener and introduce the opening song.\n")
	} else {
		b.WriteString("Just played:\n")
		for _, item := range req.Recent {
			if item.Type == model.QueueItemSong {
				fmt.Fprintf(&b, "- %s by %s\n", item.Title, strings.Join(item.Artists, ", "))
			}
		}
	}

	b.WriteString("\nComing up:\n")
	for _, e := range chosen {
		fmt.Fprintf(&b, "- %s by %s (chosen because: %s)\n", e.Title, e.Artist, e.Reason)
	}

	if req.Guidelines != "" {
		fmt.Fprintf(&b, "\nStation guidelines: %s\n", req.Guidelines)
	}
	return b.String()
}
