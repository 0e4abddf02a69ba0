package tracks

import "sync"

// Table is a bounded, lock-guarded collection of tracks. The table owns the
// Track values; every read hands back copies.
type Table struct {
	mu     sync.Mutex
	tracks []Track
	max    int
}

// NewTable returns an empty table that holds at most max tracks.
func NewTable(max int) *Table {
	if max < 0 {
		max = 0
	}
	return &Table{
		tracks: make([]Track, 0, max),
		max:    max,
	}
}

// Add appends a copy of trk. It returns false when the table is full.
func (tb *Table) Add(trk Track) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if len(tb.tracks) >= tb.max {
		return false
	}
	tb.tracks = append(tb.tracks, trk)
	return true
}

// RemoveAt deletes the track at index i, shifting later tracks down so the
// survivors keep their relative order. Out of range indices are ignored.
func (tb *Table) RemoveAt(i int) (Track, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if i < 0 || i >= len(tb.tracks) {
		return Track{}, false
	}
	removed := tb.tracks[i]
	tb.tracks = removeAt(tb.tracks, i)
	return removed, true
}

func removeAt(ts []Track, i int) []Track {
	copy(ts[i:], ts[i+1:])
	ts[len(ts)-1] = Track{}
	return ts[:len(ts)-1]
}

// Snapshot returns copies of up to max tracks in table order. A max <= 0
// returns every track.
func (tb *Table) Snapshot(max int) []Track {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	n := len(tb.tracks)
	if max > 0 && max < n {
		n = max
	}
	out := make([]Track, n)
	copy(out, tb.tracks[:n])
	return out
}

// Lookup returns a copy of the track with the given ID.
func (tb *Table) Lookup(id int) (Track, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	for i := range tb.tracks {
		if tb.tracks[i].ID == id {
			return tb.tracks[i], true
		}
	}
	return Track{}, false
}

// Clear evicts every track and returns what was removed.
func (tb *Table) Clear() []Track {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	removed := tb.tracks
	tb.tracks = make([]Track, 0, tb.max)
	return removed
}

// Len returns the number of live tracks.
func (tb *Table) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.tracks)
}

// Cap returns the configured maximum number of tracks.
func (tb *Table) Cap() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.max
}

// resize changes the capacity. Existing tracks are dropped; callers resize
// only as part of a clear.
func (tb *Table) resize(max int) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if max < 0 {
		max = 0
	}
	tb.max = max
	tb.tracks = make([]Track, 0, max)
}

// checkout copies the live tracks into dst for a frame pass.
func (tb *Table) checkout(dst []Track) []Track {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return append(dst[:0], tb.tracks...)
}

// commit replaces the live tracks with the result of a frame pass.
func (tb *Table) commit(src []Track) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	if len(src) > tb.max {
		src = src[:tb.max]
	}
	tb.tracks = append(tb.tracks[:0], src...)
}
