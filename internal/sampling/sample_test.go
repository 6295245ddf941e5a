package sampling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/lookout/internal/timeline"
)

func frames(ts ...int64) []timeline.FrameRecord {
	out := make([]timeline.FrameRecord, len(ts))
	for i, t := range ts {
		out[i] = timeline.FrameRecord{Timestamp: t, Location: "f"}
	}
	return out
}

func stamps(fs []timeline.FrameRecord) []int64 {
	out := make([]int64, len(fs))
	for i, f := range fs {
		out[i] = f.Timestamp
	}
	return out
}

func TestSample_Vectors(t *testing.T) {
	tests := []struct {
		name string
		in   []int64
		k    int
		want []int64
	}{
		{"five into three", []int64{100, 200, 300, 400, 500}, 3, []int64{100, 300, 500}},
		{"four into three rounds half to even", []int64{10, 20, 30, 40}, 3, []int64{10, 30, 40}},
		{"ten into four", []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, 4, []int64{0, 3, 6, 9}},
		{"six into four", []int64{1, 2, 3, 4, 5, 6}, 4, []int64{1, 3, 4, 6}},
		{"fits under cap", []int64{10, 20}, 3, []int64{10, 20}},
		{"exactly cap", []int64{10, 20, 30}, 3, []int64{10, 20, 30}},
		{"cap of one keeps first", []int64{10, 20, 30}, 1, []int64{10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stamps(Sample(frames(tt.in...), tt.k)))
		})
	}
}

func TestSample_NonPositiveCap(t *testing.T) {
	in := frames(1, 2, 3)
	assert.Empty(t, Sample(in, 0))
	assert.Empty(t, Sample(in, -2))
	assert.NotNil(t, Sample(in, 0))
}

func TestSample_EmptyInput(t *testing.T) {
	assert.Empty(t, Sample(nil, 3))
}

func TestSample_UnderCapReturnsInputUnchanged(t *testing.T) {
	in := []timeline.FrameRecord{{Timestamp: 5, Location: "a"}, {Timestamp: 5, Location: "b"}}
	assert.Equal(t, in, Sample(in, 3))
}

func TestSample_Properties(t *testing.T) {
	for n := 3; n <= 40; n++ {
		in := make([]int64, n)
		for i := range in {
			in[i] = int64(i * 33)
		}
		for k := 2; k < n; k++ {
			got := Sample(frames(in...), k)

			require.Len(t, got, k, "n=%d k=%d", n, k)
			assert.Equal(t, in[0], got[0].Timestamp, "n=%d k=%d first", n, k)
			assert.Equal(t, in[n-1], got[k-1].Timestamp, "n=%d k=%d last", n, k)

			seen := make(map[int64]bool)
			for i, f := range got {
				assert.False(t, seen[f.Timestamp], "duplicate %d", f.Timestamp)
				seen[f.Timestamp] = true
				assert.Zero(t, f.Timestamp%33, "not from input: %d", f.Timestamp)
				if i > 0 {
					assert.Less(t, got[i-1].Timestamp, f.Timestamp)
				}
			}
		}
	}
}

func TestSample_Deterministic(t *testing.T) {
	in := frames(3, 9, 12, 15, 40, 41, 77, 80, 99)
	assert.Equal(t, Sample(in, 4), Sample(in, 4))
}

func TestSample_DoesNotMutateInput(t *testing.T) {
	in := frames(1, 2, 3, 4, 5)
	Sample(in, 2)
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, stamps(in))
}

func TestIndices(t *testing.T) {
	assert.Equal(t, []int{0, 2, 3}, Indices(4, 3))
	assert.Equal(t, []int{0, 2, 4}, Indices(5, 3))
	assert.Nil(t, Indices(3, 3))
	assert.Nil(t, Indices(10, 1))
}
