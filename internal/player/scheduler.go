package player

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cobardes/radia-fm-sub000/internal/model"
)

// ItemState tracks one queue position through its playback lifecycle.
type ItemState int

const (
	StateNotRendered ItemState = iota
	StatePreloading
	StateReady
	StatePlaying
	StateFinished
)

const renderBehind = 2
const renderAhead = 2

// Config holds the playback tuning constants. The bed constants were tuned
// by ear for audibility balance under narration; change them together or
// not at all.
type Config struct {
	NarrationDelay        time.Duration // wait before segment narration starts
	BedOffsetFraction     float64       // where in the previous song the bed picks up
	BedVolume             float64       // bed loudness under narration
	FadeDuration          time.Duration // every volume ramp
	BedFadeOutLead        time.Duration // bed fade-out starts this long before segment end
	SongCompletionLead    time.Duration
	SegmentCompletionLead time.Duration
	SongVolume            float64
	SongFadeFloor         float64 // starting volume when a song fades in
}

func DefaultConfig() Config {
	return Config{
		NarrationDelay:        500 * time.Millisecond,
		BedOffsetFraction:     1.0 / 3.0,
		BedVolume:             0.075,
		FadeDuration:          time.Second,
		BedFadeOutLead:        3 * time.Second,
		SongCompletionLead:    time.Second,
		SegmentCompletionLead: 1500 * time.Millisecond,
		SongVolume:            1.0,
		SongFadeFloor:         0.05,
	}
}

// Registrar wires rendered elements into the shared audio graph.
type Registrar interface {
	Attach(el Element)
	Detach(id string)
}

type renderedItem struct {
	item    model.QueueItem
	element Element
	state   ItemState
	unsub   func()

	timers    []Timer
	fades     []*fade
	completed bool

	// bed is the previous song element playing under this talk segment, set
	// for as long as the bed is audible. Skip, Pause and unmount must silence
	// it together with the segment itself.
	bed *renderedItem

	// Counters of pause/play transitions the scheduler itself caused, so the
	// element's own event stream can correct the paused flag without the
	// binding feeding back on itself.
	expectPause int
	expectPlay  int
}

func (it *renderedItem) cancelPending() {
	for _, t := range it.timers {
		t.Stop()
	}
	it.timers = nil
	for _, f := range it.fades {
		f.stop()
	}
	it.fades = nil
}

// Scheduler advances playback through the queue. Exactly one item is active
// at a time; currentIndex only ever moves forward, one step per completion
// or skip. All element callbacks funnel through the scheduler's lock, and
// elements must deliver events asynchronously with respect to the calls the
// scheduler makes on them.
type Scheduler struct {
	mu sync.Mutex

	clock     Clock
	factory   ElementFactory
	registrar Registrar
	cfg       Config

	queue        []model.QueueItem
	items        map[int]*renderedItem
	currentIndex int

	paused          bool
	autoplayBlocked bool
}

func NewScheduler(clock Clock, factory ElementFactory, registrar Registrar, cfg Config) *Scheduler {
	return &Scheduler{
		clock:     clock,
		factory:   factory,
		registrar: registrar,
		cfg:       cfg,
		items:     make(map[int]*renderedItem),
	}
}

// SetQueue replaces the queue with a longer version of itself. Queue updates
// only ever append, so positions already played keep their meaning.
func (s *Scheduler) SetQueue(items []model.QueueItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = items
	s.render()
}

// Play is the user-initiated start/resume gesture. It is the only call that
// clears the autoplay-blocked state.
func (s *Scheduler) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.autoplayBlocked = false
	s.paused = false

	it, ok := s.items[s.currentIndex]
	if !ok {
		return
	}
	switch it.state {
	case StateReady:
		s.activate(s.currentIndex)
	case StatePlaying:
		it.expectPlay++
		if err := it.element.Play(); err != nil {
			it.expectPlay--
		}
		if bed := it.bed; bed != nil {
			bed.expectPlay++
			if err := bed.element.Play(); err != nil {
				bed.expectPlay--
			}
		}
	}
}

// Pause is the user-initiated pause.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paused = true
	if it, ok := s.items[s.currentIndex]; ok && it.state == StatePlaying {
		it.expectPause++
		it.element.Pause()
		if bed := it.bed; bed != nil {
			bed.expectPause++
			bed.element.Pause()
		}
	}
}

// Skip abandons the active item and moves to the next one.
func (s *Scheduler) Skip() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if it, ok := s.items[s.currentIndex]; ok {
		it.cancelPending()
		s.stopBed(it)
		it.completed = true
		if it.state == StatePlaying {
			it.expectPause++
			it.element.Pause()
		}
		it.state = StateFinished
	}
	s.advance()
}

func (s *Scheduler) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

func (s *Scheduler) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Scheduler) AutoplayBlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoplayBlocked
}

// ItemStateAt reports the lifecycle state of a queue position.
func (s *Scheduler) ItemStateAt(pos int) ItemState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[pos]; ok {
		return it.state
	}
	return StateNotRendered
}

// render reconciles the set of mounted elements with the render window:
// songs live within currentIndex +/- 2, segments have no upper bound because
// their bed audio is the previous song element, which must stay mounted
// until the segment itself leaves the window.
func (s *Scheduler) render() {
	for pos, item := range s.queue {
		inWindow := pos >= s.currentIndex-renderBehind
		if item.Type == model.QueueItemSong {
			inWindow = inWindow && pos <= s.currentIndex+renderAhead
		}

		_, mounted := s.items[pos]
		switch {
		case inWindow && !mounted:
			s.mount(pos)
		case !inWindow && mounted:
			s.unmount(pos)
		}
	}
}

func (s *Scheduler) mount(pos int) {
	item := s.queue[pos]
	el, err := s.factory.NewElement(item.ID, string(item.Type))
	if err != nil {
		log.Printf("[Player] failed to load %s %s: %v", item.Type, item.ID, err)
		return
	}

	it := &renderedItem{item: item, element: el, state: StatePreloading}
	it.unsub = el.Subscribe(func(ev Event) {
		s.handleEvent(pos, ev)
	})
	s.items[pos] = it

	if s.registrar != nil {
		s.registrar.Attach(el)
	}
}

func (s *Scheduler) unmount(pos int) {
	it, ok := s.items[pos]
	if !ok {
		return
	}
	it.cancelPending()
	s.stopBed(it)
	it.completed = true
	if it.unsub != nil {
		it.unsub()
	}
	it.expectPause++
	it.element.Pause()
	if s.registrar != nil {
		s.registrar.Detach(it.element.ID())
	}
	delete(s.items, pos)
}

func (s *Scheduler) handleEvent(pos int, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[pos]
	if !ok {
		return
	}

	switch ev.Type {
	case EventCanPlay:
		if it.state == StatePreloading {
			it.state = StateReady
		}
		if pos == s.currentIndex && !s.paused && !s.autoplayBlocked && it.state == StateReady {
			s.activate(pos)
		}

	case EventTimeUpdate:
		if pos != s.currentIndex || it.state != StatePlaying || it.completed {
			return
		}
		lead := s.cfg.SongCompletionLead
		if it.item.Type == model.QueueItemSegment {
			lead = s.cfg.SegmentCompletionLead
		}
		if dur := it.element.Duration(); dur > 0 && ev.Position >= dur-lead {
			it.completed = true
			it.state = StateFinished
			s.advance()
		}

	case EventEnded:
		if pos == s.currentIndex && !it.completed {
			it.completed = true
			it.state = StateFinished
			s.advance()
		}

	case EventPaused:
		if it.expectPause > 0 {
			it.expectPause--
			return
		}
		// External pause (user agent, buffering): correct our flag.
		if pos == s.currentIndex {
			s.paused = true
		}

	case EventPlaying:
		if it.expectPlay > 0 {
			it.expectPlay--
			return
		}
		if pos == s.currentIndex {
			s.paused = false
		}

	case EventStalled:
		// Decode errors and network stalls behave like a pause; recovery
		// stays explicit.
		if pos == s.currentIndex {
			s.paused = true
		}
	}
}

// advance moves the cursor forward exactly one step. It never moves
// backward.
func (s *Scheduler) advance() {
	s.currentIndex++
	log.Printf("[Player] advanced to position %d", s.currentIndex)

	s.render()

	if s.paused || s.autoplayBlocked {
		return
	}
	if it, ok := s.items[s.currentIndex]; ok && it.state == StateReady {
		s.activate(s.currentIndex)
	}
}

// activate transitions queue[pos] into Playing, applying the transition
// policy for its type.
func (s *Scheduler) activate(pos int) {
	it := s.items[pos]

	if it.item.Type == model.QueueItemSegment {
		s.activateSegment(pos, it)
		return
	}
	s.activateSong(pos, it)
}

func (s *Scheduler) activateSong(pos int, it *renderedItem) {
	// Back-to-back songs stay continuous: no fade-in.
	if pos > 0 && s.queue[pos-1].Type == model.QueueItemSong {
		it.element.SetVolume(s.cfg.SongVolume)
		s.startPlayback(it)
		return
	}

	// Coming out of a segment (or silence): start quiet, then fade up once
	// the segment's tail overlap has cleared.
	it.element.SetVolume(s.cfg.SongFadeFloor)
	if !s.startPlayback(it) {
		return
	}
	it.timers = append(it.timers, s.clock.AfterFunc(s.cfg.FadeDuration, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.items[pos]; !ok || cur != it || it.completed {
			return
		}
		it.fades = append(it.fades, newFade(s.clock, it.element, s.cfg.SongFadeFloor, s.cfg.SongVolume, s.cfg.FadeDuration, nil))
	}))
}

func (s *Scheduler) activateSegment(pos int, it *renderedItem) {
	it.state = StatePlaying

	// Narration starts after a beat of silence.
	it.timers = append(it.timers, s.clock.AfterFunc(s.cfg.NarrationDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.items[pos]; !ok || cur != it || it.completed {
			return
		}
		it.element.SetVolume(1.0)
		it.expectPlay++
		if err := it.element.Play(); err != nil {
			it.expectPlay--
			if errors.Is(err, ErrAutoplayBlocked) {
				s.autoplayBlocked = true
				it.state = StateReady
			}
		}
	}))

	bedPos := s.previousSongIndex(pos)
	if bedPos < 0 {
		return
	}
	bed, ok := s.items[bedPos]
	if !ok {
		return
	}

	// Voice-over-music bed: restart the previous song from a third in so
	// the listener does not hear the same intro twice, ramp it under the
	// narration, then duck it out before the segment ends.
	bedDur := bed.element.Duration()
	bed.element.Seek(time.Duration(float64(bedDur) * s.cfg.BedOffsetFraction))
	bed.element.SetVolume(0)
	bed.expectPlay++
	if err := bed.element.Play(); err != nil {
		bed.expectPlay--
		return
	}
	it.bed = bed
	it.fades = append(it.fades, newFade(s.clock, bed.element, 0, s.cfg.BedVolume, s.cfg.FadeDuration, nil))

	segDur := it.element.Duration()
	fadeOutAt := s.cfg.NarrationDelay + segDur - s.cfg.BedFadeOutLead
	if fadeOutAt < 0 {
		fadeOutAt = 0
	}
	it.timers = append(it.timers, s.clock.AfterFunc(fadeOutAt, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.items[pos]; !ok || cur != it {
			return
		}
		it.fades = append(it.fades, newFade(s.clock, bed.element, s.cfg.BedVolume, 0, s.cfg.FadeDuration, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.stopBed(it)
		}))
	}))
}

// stopBed silences and pauses the bed running under a talk segment, if one
// is still audible. Idempotent: the first caller clears the reference.
func (s *Scheduler) stopBed(it *renderedItem) {
	bed := it.bed
	if bed == nil {
		return
	}
	it.bed = nil
	bed.expectPause++
	bed.element.Pause()
	bed.element.SetVolume(0)
}

// startPlayback plays the element, tracking autoplay rejection. Reports
// whether playback actually started.
func (s *Scheduler) startPlayback(it *renderedItem) bool {
	it.expectPlay++
	if err := it.element.Play(); err != nil {
		it.expectPlay--
		if errors.Is(err, ErrAutoplayBlocked) {
			log.Printf("[Player] autoplay blocked, waiting for user gesture")
			s.autoplayBlocked = true
			it.state = StateReady
			return false
		}
		s.paused = true
		return false
	}
	it.state = StatePlaying
	return true
}

func (s *Scheduler) previousSongIndex(pos int) int {
	for i := pos - 1; i >= 0; i-- {
		if s.queue[i].Type == model.QueueItemSong {
			return i
		}
	}
	return -1
}
