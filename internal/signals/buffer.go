package signals

import "github.com/example/lingofeed/pkg/models"

// ring is a fixed-capacity buffer that overwrites its oldest entry when full
type ring struct {
	buf  []models.Interaction
	next int
	size int
}

func newRing(size int) *ring {
	return &ring{buf: make([]models.Interaction, 0, size), size: size}
}

// push appends x and reports whether an older entry was evicted
func (r *ring) push(x models.Interaction) bool {
	if len(r.buf) < r.size {
		r.buf = append(r.buf, x)
		return false
	}
	r.buf[r.next] = x
	r.next = (r.next + 1) % r.size
	return true
}

// items returns the entries oldest first
func (r *ring) items() []models.Interaction {
	out := make([]models.Interaction, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

func (r *ring) len() int {
	return len(r.buf)
}
