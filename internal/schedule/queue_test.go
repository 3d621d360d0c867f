package schedule

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.PositionID)
	}
	return out
}

func TestQueue_PopDue(t *testing.T) {
	q := NewQueue()
	q.Push(Entry{PositionID: "c", Deadline: base.Add(15 * time.Minute)})
	q.Push(Entry{PositionID: "b", Deadline: base.Add(time.Minute)})
	q.Push(Entry{PositionID: "a", Deadline: base.Add(time.Minute)})
	q.Push(Entry{PositionID: "d", Deadline: base.Add(5 * time.Minute)})

	head, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "a", head.PositionID)

	tests := []struct {
		name string
		now  time.Time
		want []string
	}{
		{"nothing before first deadline", base.Add(59 * time.Second), nil},
		{"deadline is inclusive, ties by id", base.Add(time.Minute), []string{"a", "b"}},
		{"already popped entries do not return", base.Add(2 * time.Minute), []string{}},
		{"rest in deadline order", base.Add(time.Hour), []string{"d", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := q.PopDue(tt.now)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, ids(got))
		})
	}
	assert.Equal(t, 0, q.Len())
	_, ok = q.Peek()
	assert.False(t, ok)
}

func TestQueue_PushReplacesAndRemove(t *testing.T) {
	q := NewQueue()
	q.Push(Entry{PositionID: "a", Deadline: base.Add(time.Minute)})
	q.Push(Entry{PositionID: "b", Deadline: base.Add(2 * time.Minute)})
	q.Push(Entry{PositionID: "a", Deadline: base.Add(3 * time.Minute)})
	assert.Equal(t, 2, q.Len())

	head, _ := q.Peek()
	assert.Equal(t, "b", head.PositionID)

	assert.True(t, q.Remove("b"))
	assert.False(t, q.Remove("b"))
	assert.Equal(t, []string{"a"}, ids(q.PopDue(base.Add(time.Hour))))
}

func TestQueue_Concurrent(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(Entry{PositionID: fmt.Sprintf("%d-%d", w, i), Deadline: base.Add(time.Duration(i) * time.Second)})
			}
		}(w)
	}
	wg.Wait()
	require.Equal(t, 800, q.Len())

	due := q.PopDue(base.Add(time.Hour))
	require.Len(t, due, 800)
	for i := 1; i < len(due); i++ {
		assert.False(t, due[i].Deadline.Before(due[i-1].Deadline))
	}
}
