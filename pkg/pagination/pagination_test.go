package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-3))
	assert.Equal(t, 5, NormalizeLimit(5))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
}

func TestNewPage(t *testing.T) {
	page := NewPage(Params{Page: 2, Limit: 10}, 25)
	assert.Equal(t, Page{Page: 2, Limit: 10, Total: 25, TotalPages: 3}, page)

	empty := NewPage(Params{}, 0)
	assert.Equal(t, Page{Page: 1, Limit: DefaultLimit, Total: 0, TotalPages: 0}, empty)
}

func TestSlice(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{1, 2}, Slice(items, Params{Page: 1, Limit: 2}))
	assert.Equal(t, []int{5}, Slice(items, Params{Page: 3, Limit: 2}))
	assert.Equal(t, []int{}, Slice(items, Params{Page: 4, Limit: 2}))
	assert.Equal(t, 4, Params{Page: 3, Limit: 2}.Offset())
}
