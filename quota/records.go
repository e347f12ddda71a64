package quota

import (
	"sync"

	"github.com/penlight/vitalsum/models"
)

// RecordLog is a bounded ring buffer of completed request records.
// Once full, the oldest record is dropped for each append.
type RecordLog struct {
	mu    sync.Mutex
	buf   []models.RequestRecord
	next  int
	count int
}

// NewRecordLog creates a record log holding at most capacity entries.
func NewRecordLog(capacity int) *RecordLog {
	if capacity <= 0 {
		capacity = 256
	}
	return &RecordLog{buf: make([]models.RequestRecord, capacity)}
}

// Append adds a record, dropping the oldest when at capacity.
func (r *RecordLog) Append(rec models.RequestRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = rec
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// Len returns the number of records currently held.
func (r *RecordLog) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Recent returns up to n records, newest first.
func (r *RecordLog) Recent(n int) []models.RequestRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.count {
		n = r.count
	}
	out := make([]models.RequestRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// Clear discards all records.
func (r *RecordLog) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next = 0
	r.count = 0
}
