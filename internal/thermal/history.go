package thermal

import "sync"

// MinTrendSamples is the fewest history entries a trend can be derived from
const MinTrendSamples = 5

// History is a fixed-capacity ring of recent overall temperatures, one
// entry per poll tick. Once full, each append overwrites the oldest entry.
// All methods are safe for concurrent use, though only the poll tick
// writes in practice.
type History struct {
	mu      sync.RWMutex
	samples []float64
	// head is the next write position within the ring (0 to capacity-1)
	head int
	size int
}

func NewHistory(capacity int) (*History, error) {
	if capacity < MinTrendSamples {
		return nil, errFactory.WithData(ErrInvalidCapacity, capacity)
	}

	return &History{samples: make([]float64, capacity)}, nil
}

// Append records one sample, evicting the oldest once the ring is full
func (h *History) Append(celsius float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples[h.head] = celsius
	h.head = (h.head + 1) % len(h.samples)
	if h.size < len(h.samples) {
		h.size++
	}
}

// Len returns the number of samples currently held
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.size
}

// Values returns the held samples ordered oldest first
func (h *History) Values() []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.orderedLocked()
}

func (h *History) orderedLocked() []float64 {
	out := make([]float64, 0, h.size)
	start := h.head - h.size
	for i := 0; i < h.size; i++ {
		out = append(out, h.samples[(start+i+len(h.samples))%len(h.samples)])
	}

	return out
}

// Trend reports the short-term direction of travel: the average of the
// newer half of the window minus the average of the older half, in
// celsius. When the window holds an odd number of samples the newer half
// takes the extra one. ok is false until MinTrendSamples samples exist.
func (h *History) Trend() (trend float64, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.size < MinTrendSamples {
		return 0, false
	}

	samples := h.orderedLocked()
	half := len(samples) / 2

	var older, newer float64
	for i := 0; i < half; i++ {
		older += samples[i]
	}
	for i := half; i < len(samples); i++ {
		newer += samples[i]
	}

	older /= float64(half)
	newer /= float64(len(samples) - half)

	return newer - older, true
}

// Reset discards all held samples, keeping the capacity
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.head = 0
	h.size = 0
}
