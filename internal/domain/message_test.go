package domain

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMessageLess(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("orders by created time", func(t *testing.T) {
		earlier := &Message{ID: "b", CreatedAt: base}
		later := &Message{ID: "a", CreatedAt: base.Add(time.Millisecond)}

		assert.True(t, earlier.Less(later))
		assert.False(t, later.Less(earlier))
	})

	t.Run("breaks timestamp ties by ID", func(t *testing.T) {
		first := &Message{ID: "aaa", CreatedAt: base}
		second := &Message{ID: "bbb", CreatedAt: base}

		assert.True(t, first.Less(second))
		assert.False(t, second.Less(first))
	})

	t.Run("total order is stable under sort", func(t *testing.T) {
		msgs := []Message{
			{ID: "c", CreatedAt: base.Add(2 * time.Second)},
			{ID: "a", CreatedAt: base},
			{ID: "b", CreatedAt: base},
		}
		sort.Slice(msgs, func(i, j int) bool { return msgs[i].Less(&msgs[j]) })

		assert.Equal(t, []string{"a", "b", "c"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	})
}
