// Package timeline indexes captured frames per session by capture time.
package timeline

import (
	"sort"
	"sync"
)

// FrameRecord is one captured frame. Timestamp is in milliseconds since the
// epoch; Location is the path of the stored image.
type FrameRecord struct {
	Timestamp int64  `json:"timestamp"`
	Location  string `json:"location"`
}

// Store holds the per-session frame timelines. Every session's entries are
// kept sorted ascending by Timestamp, with equal timestamps in insertion
// order. All methods are safe for concurrent use; readers only ever receive
// copies.
type Store struct {
	mu       sync.Mutex
	sessions map[string][]FrameRecord
}

func New() *Store {
	return &Store{sessions: make(map[string][]FrameRecord)}
}

// Insert adds a frame to the session's timeline, creating the session on
// first use.
func (s *Store) Insert(sessionID string, ts int64, location string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.sessions[sessionID]
	// First index strictly after ts, so ties land behind existing entries.
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Timestamp > ts })
	entries = append(entries, FrameRecord{})
	copy(entries[i+1:], entries[i:])
	entries[i] = FrameRecord{Timestamp: ts, Location: location}
	s.sessions[sessionID] = entries
}

// QueryAtOrAfter returns a copy of every entry with Timestamp >= ts in
// ascending order. Unknown sessions yield an empty slice.
func (s *Store) QueryAtOrAfter(sessionID string, ts int64) []FrameRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.sessions[sessionID]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Timestamp >= ts })
	out := make([]FrameRecord, len(entries)-i)
	copy(out, entries[i:])
	return out
}

// Prune keeps only the entries for which keep returns true and reports how
// many were removed. keep runs under the store lock and must not block.
func (s *Store) Prune(sessionID string, keep func(FrameRecord) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, ok := s.sessions[sessionID]
	if !ok {
		return 0
	}
	kept := make([]FrameRecord, 0, len(entries))
	for _, e := range entries {
		if keep(e) {
			kept = append(kept, e)
		}
	}
	s.sessions[sessionID] = kept
	return len(entries) - len(kept)
}

// Snapshot returns a copy of the session's full timeline.
func (s *Store) Snapshot(sessionID string) []FrameRecord {
	return s.QueryAtOrAfter(sessionID, minTimestamp)
}

// Sessions lists known session IDs in lexical order.
func (s *Store) Sessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) Len(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions[sessionID])
}

// Stats maps every known session to its current frame count.
func (s *Store) Stats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(s.sessions))
	for id, entries := range s.sessions {
		out[id] = len(entries)
	}
	return out
}

const minTimestamp = -1 << 63
