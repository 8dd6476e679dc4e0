package sensor_simulator

import "github.com/LeonardoBeccarini/aquamonitor/internal/model/entities"

// History is a fixed-capacity ring of readings; pushing into a full ring evicts the oldest.
type History struct {
	buf   []entities.Reading
	start int
	n     int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{buf: make([]entities.Reading, capacity)}
}

func (h *History) Push(r entities.Reading) {
	c := len(h.buf)
	if h.n < c {
		h.buf[(h.start+h.n)%c] = r
		h.n++
		return
	}
	h.buf[h.start] = r
	h.start = (h.start + 1) % c
}

func (h *History) Len() int { return h.n }
func (h *History) Cap() int { return len(h.buf) }

// Slice copies the readings out, oldest first.
func (h *History) Slice() []entities.Reading {
	out := make([]entities.Reading, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

func (h *History) Last() (entities.Reading, bool) {
	if h.n == 0 {
		return entities.Reading{}, false
	}
	return h.buf[(h.start+h.n-1)%len(h.buf)], true
}
