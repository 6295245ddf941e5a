package timeline

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timestamps(frames []FrameRecord) []int64 {
	out := make([]int64, len(frames))
	for i, f := range frames {
		out[i] = f.Timestamp
	}
	return out
}

func TestInsert_KeepsSortedOrder(t *testing.T) {
	s := New()
	for _, ts := range []int64{500, 100, 300, 200, 400} {
		s.Insert("default", ts, fmt.Sprintf("/frames/%d.jpg", ts))
	}

	got := s.Snapshot("default")
	assert.Equal(t, []int64{100, 200, 300, 400, 500}, timestamps(got))
	assert.Equal(t, "/frames/100.jpg", got[0].Location)
}

func TestInsert_TiesKeepInsertionOrder(t *testing.T) {
	s := New()
	s.Insert("default", 200, "b")
	s.Insert("default", 100, "a")
	s.Insert("default", 200, "c")
	s.Insert("default", 200, "d")

	got := s.Snapshot("default")
	require.Len(t, got, 4)
	assert.Equal(t, []string{"a", "b", "c", "d"}, []string{got[0].Location, got[1].Location, got[2].Location, got[3].Location})
}

func TestQueryAtOrAfter(t *testing.T) {
	s := New()
	for _, ts := range []int64{100, 200, 300, 400} {
		s.Insert("default", ts, "")
	}

	tests := []struct {
		name string
		ts   int64
		want []int64
	}{
		{"before all", 50, []int64{100, 200, 300, 400}},
		{"exact match is inclusive", 200, []int64{200, 300, 400}},
		{"between entries", 250, []int64{300, 400}},
		{"after all", 401, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timestamps(s.QueryAtOrAfter("default", tt.ts)))
		})
	}
}

func TestQueryAtOrAfter_UnknownSession(t *testing.T) {
	s := New()
	got := s.QueryAtOrAfter("nobody", 0)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestQueryAtOrAfter_ReturnsSnapshot(t *testing.T) {
	s := New()
	s.Insert("default", 100, "a")
	s.Insert("default", 200, "b")

	snap := s.QueryAtOrAfter("default", 0)
	snap[0].Location = "mutated"
	s.Insert("default", 150, "c")

	assert.Len(t, snap, 2)
	assert.Equal(t, "a", s.Snapshot("default")[0].Location)
}

func TestSessionsAreIsolated(t *testing.T) {
	s := New()
	s.Insert("glasses-1", 100, "a")
	s.Insert("glasses-2", 200, "b")

	assert.Equal(t, []int64{100}, timestamps(s.QueryAtOrAfter("glasses-1", 0)))
	assert.Equal(t, []int64{200}, timestamps(s.QueryAtOrAfter("glasses-2", 0)))
	assert.Equal(t, []string{"glasses-1", "glasses-2"}, s.Sessions())
	assert.Equal(t, map[string]int{"glasses-1": 1, "glasses-2": 1}, s.Stats())
}

func TestPrune(t *testing.T) {
	s := New()
	for _, ts := range []int64{100, 200, 300, 400} {
		s.Insert("default", ts, "")
	}

	removed := s.Prune("default", func(f FrameRecord) bool { return f.Timestamp >= 250 })

	assert.Equal(t, 2, removed)
	assert.Equal(t, []int64{300, 400}, timestamps(s.Snapshot("default")))
	assert.Equal(t, 0, s.Prune("unknown", func(FrameRecord) bool { return false }))
}

func TestConcurrentInsertAndQuery(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Insert("default", int64(i*8+w), "")
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				got := s.QueryAtOrAfter("default", 0)
				for j := 1; j < len(got); j++ {
					if got[j-1].Timestamp > got[j].Timestamp {
						t.Errorf("snapshot out of order at %d", j)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, s.Len("default"))
}

func TestInsertBeforeQueryIsVisible(t *testing.T) {
	s := New()
	s.Insert("default", 1000, "/frames/1000.jpg")

	assert.Len(t, s.QueryAtOrAfter("default", 500), 1)
	assert.Empty(t, s.QueryAtOrAfter("default", 1500))
}
