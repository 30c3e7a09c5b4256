package player

import (
	"math"
	"sync"
	"time"
)

const (
	frameInterval = 16 * time.Millisecond

	// Perceptual loudness keeps only the midrange of the spectrum: the
	// bottom bins are dominated by rumble, the top ones by noise.
	lowBinCutoff  = 0.10
	highBinCutoff = 0.70

	loudnessExponent = 1.5
	loudnessGain     = 2.0
)

// Source exposes an element's analysis buffers to the mixer.
type Source interface {
	FrequencyData() []float64 // bin magnitudes, 0..1
	TimeDomainData() []float64
}

type mixerSource struct {
	src  Source
	gain float64
}

// Mixer is the shared gain-and-analysis graph every rendered element feeds
// into. Registration is idempotent per element id. The per-frame analysis
// loop runs only while at least one consumer holds it acquired.
type Mixer struct {
	mu sync.Mutex

	clock      Clock
	sources    map[string]*mixerSource
	masterGain float64

	consumers int
	frame     Timer

	avgFrequency float64
	freqBuf      []float64
	timeBuf      []float64
}

func NewMixer(clock Clock) *Mixer {
	return &Mixer{
		clock:      clock,
		sources:    make(map[string]*mixerSource),
		masterGain: 1.0,
	}
}

// Attach wires an element into the graph if it exposes analysis data.
// Implements Registrar.
func (m *Mixer) Attach(el Element) {
	if src, ok := el.(Source); ok {
		m.Register(el.ID(), src)
	}
}

// Detach implements Registrar.
func (m *Mixer) Detach(id string) {
	m.Unregister(id)
}

// Register connects a source under id. Re-registering the same source is a
// no-op; a different source under a reused id replaces the old wiring.
func (m *Mixer) Register(id string, src Source) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sources[id]; ok && existing.src == src {
		return
	}
	m.sources[id] = &mixerSource{src: src, gain: 1.0}
}

func (m *Mixer) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sources, id)
}

// SetGain adjusts one element's contribution to the analysis mix.
func (m *Mixer) SetGain(id string, gain float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sources[id]; ok {
		s.gain = gain
	}
}

func (m *Mixer) SetMasterGain(gain float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.masterGain = gain
}

// Acquire starts the per-frame analysis loop if it is not already running.
// Every Acquire must be paired with a Release; the loop stops exactly when
// the last consumer releases.
func (m *Mixer) Acquire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumers++
	if m.consumers == 1 {
		m.scheduleFrame()
	}
}

func (m *Mixer) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.consumers == 0 {
		return
	}
	m.consumers--
	if m.consumers == 0 && m.frame != nil {
		m.frame.Stop()
		m.frame = nil
	}
}

// AverageFrequency returns the latest perceptual loudness scalar in 0..1.
func (m *Mixer) AverageFrequency() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.avgFrequency
}

// FrequencyData returns the latest mixed spectrum buffer.
func (m *Mixer) FrequencyData() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.freqBuf))
	copy(out, m.freqBuf)
	return out
}

// TimeDomainData returns the latest mixed waveform buffer.
func (m *Mixer) TimeDomainData() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float64, len(m.timeBuf))
	copy(out, m.timeBuf)
	return out
}

func (m *Mixer) scheduleFrame() {
	m.frame = m.clock.AfterFunc(frameInterval, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.consumers == 0 {
			return
		}
		m.analyze()
		m.scheduleFrame()
	})
}

// analyze mixes every source's buffers through its gain and the master gain,
// then reduces the kept midrange bins to one loudness value. Callers hold
// the lock.
func (m *Mixer) analyze() {
	m.freqBuf = m.freqBuf[:0]
	m.timeBuf = m.timeBuf[:0]

	for _, s := range m.sources {
		freq := s.src.FrequencyData()
		if len(freq) > len(m.freqBuf) {
			m.freqBuf = append(m.freqBuf, make([]float64, len(freq)-len(m.freqBuf))...)
		}
		for i, v := range freq {
			m.freqBuf[i] += v * s.gain * m.masterGain
		}

		td := s.src.TimeDomainData()
		if len(td) > len(m.timeBuf) {
			m.timeBuf = append(m.timeBuf, make([]float64, len(td)-len(m.timeBuf))...)
		}
		for i, v := range td {
			m.timeBuf[i] += v * s.gain * m.masterGain
		}
	}

	m.avgFrequency = perceptualLoudness(m.freqBuf)
}

// perceptualLoudness weights the midrange bins and applies a power curve so
// quiet passages still read visually.
func perceptualLoudness(bins []float64) float64 {
	n := len(bins)
	if n == 0 {
		return 0
	}

	lo := int(float64(n) * lowBinCutoff)
	hi := int(float64(n) * highBinCutoff)
	if hi <= lo {
		return 0
	}

	center := float64(lo+hi) / 2
	halfSpan := float64(hi-lo) / 2

	var sum, weights float64
	for i := lo; i < hi; i++ {
		w := 1.0 - math.Abs(float64(i)-center)/halfSpan*0.5
		sum += bins[i] * w
		weights += w
	}

	mean := sum / weights
	v := math.Pow(mean, loudnessExponent) * loudnessGain
	if v > 1 {
		v = 1
	}
	return v
}
