package tracks

import "sync"

// ReportQueue is a bounded FIFO of reports between sensor producers and the
// frame pass. A push never blocks: when the queue is full the report is
// dropped and counted.
type ReportQueue struct {
	mu      sync.Mutex
	buf     []QueuedReport
	head    int
	count   int
	dropped uint64
}

// NewReportQueue returns a queue that retains at most max reports.
func NewReportQueue(max int) *ReportQueue {
	if max < 0 {
		max = 0
	}
	return &ReportQueue{buf: make([]QueuedReport, max)}
}

// Push enqueues r. It returns false if the queue is full.
func (q *ReportQueue) Push(r Report, signalLevel float64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count >= len(q.buf) {
		q.dropped++
		return false
	}
	q.buf[(q.head+q.count)%len(q.buf)] = QueuedReport{Report: r, SignalLevel: signalLevel}
	q.count++
	return true
}

// DrainOne pops the oldest report. ok is false when the queue is empty.
func (q *ReportQueue) DrainOne() (qr QueuedReport, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return QueuedReport{}, false
	}
	qr = q.buf[q.head]
	q.buf[q.head] = QueuedReport{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return qr, true
}

// Len returns the number of queued reports.
func (q *ReportQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the maximum number of queued reports.
func (q *ReportQueue) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Dropped returns how many pushes were rejected since the queue was created
// or last cleared.
func (q *ReportQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Clear discards all queued reports and returns how many were discarded.
func (q *ReportQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.count
	for i := range q.buf {
		q.buf[i] = QueuedReport{}
	}
	q.head, q.count, q.dropped = 0, 0, 0
	return n
}

func (q *ReportQueue) resize(max int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if max < 0 {
		max = 0
	}
	q.buf = make([]QueuedReport, max)
	q.head, q.count, q.dropped = 0, 0, 0
}
