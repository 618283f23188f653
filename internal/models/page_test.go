package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageHasMore(t *testing.T) {
	cases := []struct {
		name    string
		items   int
		offset  int
		total   int
		hasMore bool
	}{
		{"first window of many", 25, 0, 60, true},
		{"middle window", 25, 25, 60, true},
		{"last partial window", 10, 50, 60, false},
		{"exact fit", 25, 0, 25, false},
		{"empty result", 0, 0, 0, false},
		{"offset past shrunken total", 0, 50, 40, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page := NewPage(make([]Review, tc.items), tc.offset, 25, tc.total)
			assert.Equal(t, tc.hasMore, page.HasMore())
		})
	}
}

func TestPageEchoesWindow(t *testing.T) {
	items := []Review{{ID: "1"}, {ID: "2"}}
	page := NewPage(items, 40, 25, 60)

	// Offset and Total come from the request/server, not len(Items).
	assert.Equal(t, 40, page.Offset)
	assert.Equal(t, 25, page.Count)
	assert.Equal(t, 60, page.Total)
	assert.Len(t, page.Items, 2)
}
