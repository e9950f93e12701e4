package monitor

import (
	"sync"

	"github.com/nexusnav/nexusnav/internal/probe"
)

// DefaultHistorySize is the default number of probe samples kept per card.
const DefaultHistorySize = 60

// History keeps probe latency and up/down samples per card using ring
// buffers. It is safe for concurrent use.
type History struct {
	mu    sync.RWMutex
	size  int
	cards map[string]*cardHistory
}

// cardHistory holds the ring buffers for a single card.
type cardHistory struct {
	latency *ringBuffer // milliseconds, up samples only
	up      *ringBuffer // 1 for up, 0 for down
	checked int64       // CheckedAt of the last sample
}

// ringBuffer is a fixed-size circular buffer for float64 values.
type ringBuffer struct {
	data  []float64
	head  int
	count int
	size  int
}

// NewHistory creates a history with the given buffer size per card.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{
		size:  size,
		cards: make(map[string]*cardHistory),
	}
}

// Push records a probe result. The dashboard polls more often than the
// server probes, so a result whose CheckedAt was already seen is ignored.
// Unknown results carry no sample. It reports whether a sample was added.
func (h *History) Push(hl probe.Health) bool {
	if hl.Status == probe.StatusUnknown || hl.CheckedAt == 0 {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	hist := h.getOrCreate(hl.CardID)
	if hl.CheckedAt <= hist.checked {
		return false
	}
	hist.checked = hl.CheckedAt

	if hl.Status == probe.StatusUp {
		hist.latency.push(float64(hl.LatencyMs))
		hist.up.push(1)
	} else {
		hist.up.push(0)
	}
	return true
}

// Latency returns up to count latency samples, oldest first.
func (h *History) Latency(cardID string, count int) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	hist, ok := h.cards[cardID]
	if !ok {
		return nil
	}
	return hist.latency.getLast(count)
}

// Uptime returns the share of up samples in [0,1] and the sample count.
func (h *History) Uptime(cardID string) (float64, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	hist, ok := h.cards[cardID]
	if !ok || hist.up.count == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range hist.up.getAll() {
		sum += v
	}
	return sum / float64(hist.up.count), hist.up.count
}

// Count returns the number of probe samples stored for a card.
func (h *History) Count(cardID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	hist, ok := h.cards[cardID]
	if !ok {
		return 0
	}
	return hist.up.count
}

// Retain drops every card not in keep.
func (h *History) Retain(keep map[string]bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id := range h.cards {
		if !keep[id] {
			delete(h.cards, id)
		}
	}
}

// Clear removes all history for a card.
func (h *History) Clear(cardID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.cards, cardID)
}

// getOrCreate returns the history for a card, creating it if needed.
// Must be called with h.mu held.
func (h *History) getOrCreate(cardID string) *cardHistory {
	hist, ok := h.cards[cardID]
	if !ok {
		hist = &cardHistory{
			latency: newRingBuffer(h.size),
			up:      newRingBuffer(h.size),
		}
		h.cards[cardID] = hist
	}
	return hist
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{
		data: make([]float64, size),
		size: size,
	}
}

func (r *ringBuffer) push(value float64) {
	r.data[r.head] = value
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// getLast returns the last count values in chronological order (oldest first).
func (r *ringBuffer) getLast(count int) []float64 {
	if count <= 0 || r.count == 0 {
		return nil
	}
	if count > r.count {
		count = r.count
	}

	result := make([]float64, count)
	// head is the next write position, so the newest value sits at head-1.
	start := (r.head - count + r.size) % r.size
	for i := 0; i < count; i++ {
		result[i] = r.data[(start+i)%r.size]
	}
	return result
}

func (r *ringBuffer) getAll() []float64 {
	return r.getLast(r.count)
}
