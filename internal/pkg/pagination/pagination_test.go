package pagination

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClamps(t *testing.T) {
	tests := []struct {
		page, limit       int
		wantPage, wantLim int
		wantOffset        int
	}{
		{0, 0, 1, DefaultLimit, 0},
		{-3, 5, 1, 5, 0},
		{3, 10, 3, 10, 20},
		{2, 1000, 2, MaxLimit, MaxLimit},
	}

	for _, tt := range tests {
		p := New(tt.page, tt.limit)
		assert.Equal(t, tt.wantPage, p.Page)
		assert.Equal(t, tt.wantLim, p.Limit)
		assert.Equal(t, tt.wantOffset, p.Offset)
	}
}

func TestWindow(t *testing.T) {
	start, end := New(1, 10).Window(25)
	assert.Equal(t, 0, start)
	assert.Equal(t, 10, end)

	start, end = New(3, 10).Window(25)
	assert.Equal(t, 20, start)
	assert.Equal(t, 25, end)

	start, end = New(9, 10).Window(25)
	assert.Equal(t, 25, start)
	assert.Equal(t, 25, end)
}

func TestHugePageStaysInRange(t *testing.T) {
	items := []int{1, 2, 3}

	for _, page := range []int{500000000000000001, math.MaxInt} {
		p := New(page, 20)
		assert.GreaterOrEqual(t, p.Offset, 0)

		start, end := p.Window(len(items))
		assert.Equal(t, 3, start)
		assert.Equal(t, 3, end)
		assert.Empty(t, items[start:end])
	}

	// a hand-built negative offset is treated as past the end
	start, end := (&Params{Page: 2, Limit: 10, Offset: -5}).Window(3)
	assert.Equal(t, 3, start)
	assert.Equal(t, 3, end)
}

func TestGetMeta(t *testing.T) {
	meta := GetMeta(New(2, 10), 25)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasNext)
	assert.True(t, meta.HasPrev)

	meta = GetMeta(New(1, 10), 0)
	assert.Equal(t, 0, meta.TotalPages)
	assert.False(t, meta.HasNext)
	assert.False(t, meta.HasPrev)
}
