package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBroadcaster_Order(t *testing.T) {
	var b Broadcaster[string]
	var got []string

	b.Add(func(s string) { got = append(got, "a:"+s) })
	cancel := b.Add(func(s string) { got = append(got, "b:"+s) })

	assert.True(t, b.Emit(1, "x"))
	cancel()
	cancel()
	assert.True(t, b.Emit(2, "y"))

	assert.Equal(t, []string{"a:x", "b:x", "a:y"}, got)
}

func TestBroadcaster_DropsStale(t *testing.T) {
	var b Broadcaster[int]
	var got []int
	b.Add(func(v int) { got = append(got, v) })

	assert.True(t, b.Emit(5, 5))
	assert.False(t, b.Emit(3, 3))
	assert.False(t, b.Emit(5, 5))
	assert.True(t, b.Emit(6, 6))

	assert.Equal(t, []int{5, 6}, got)
}
