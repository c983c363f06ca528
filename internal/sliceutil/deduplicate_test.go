package sliceutil

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

type cohortItem struct {
	Code  string
	Label string
}

func byCode(c cohortItem) string { return c.Code }

func TestDeduplicate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		items []cohortItem
		want  []cohortItem
	}{
		{
			name:  "no duplicates",
			items: []cohortItem{{"DE1", "a"}, {"DE2", "b"}, {"EN1", "c"}},
			want:  []cohortItem{{"DE1", "a"}, {"DE2", "b"}, {"EN1", "c"}},
		},
		{
			name:  "first occurrence wins",
			items: []cohortItem{{"DE1", "a"}, {"DE2", "b"}, {"DE1", "c"}, {"EN1", "d"}},
			want:  []cohortItem{{"DE1", "a"}, {"DE2", "b"}, {"EN1", "d"}},
		},
		{
			name:  "all duplicates",
			items: []cohortItem{{"DE1", "a"}, {"DE1", "b"}, {"DE1", "c"}},
			want:  []cohortItem{{"DE1", "a"}},
		},
		{
			name:  "order preserved",
			items: []cohortItem{{"EN1", "c"}, {"DE1", "a"}, {"DE2", "b"}, {"EN1", "c2"}, {"DE1", "a2"}},
			want:  []cohortItem{{"EN1", "c"}, {"DE1", "a"}, {"DE2", "b"}},
		},
		{
			name:  "empty",
			items: []cohortItem{},
			want:  []cohortItem{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Deduplicate(tt.items, byCode))
		})
	}
}

func TestDeduplicateNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Deduplicate[cohortItem, string](nil, byCode))
}

func TestUnique(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"DE2", "DE1", "FR1"}, Unique([]string{"DE2", "DE1", "DE2", "FR1", "DE1"}))
	assert.Equal(t, []int{3, 1}, Unique([]int{3, 1, 3}))
}

func BenchmarkDeduplicate(b *testing.B) {
	items := make([]cohortItem, 1000)
	for i := range items {
		items[i] = cohortItem{Code: "DE" + strconv.Itoa(i%100)}
	}
	for b.Loop() {
		_ = Deduplicate(items, byCode)
	}
}
