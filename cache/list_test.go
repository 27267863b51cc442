package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func collectOldest(l *ageList[string]) []string {
	var keys []string
	l.WalkOldest(func(k string) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

func TestAgeList(t *testing.T) {
	var l ageList[string]

	a := l.PushFront("a")
	l.PushFront("b")
	c := l.PushFront("c")
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []string{"a", "b", "c"}, collectOldest(&l))

	l.MoveToFront(a)
	assert.Equal(t, []string{"b", "c", "a"}, collectOldest(&l))
	assert.Equal(t, 3, l.Len())

	l.Remove(c)
	assert.Equal(t, []string{"b", "a"}, collectOldest(&l))
	assert.Equal(t, 2, l.Len())

	l.MoveToFront(a) // already newest
	assert.Equal(t, []string{"b", "a"}, collectOldest(&l))

	l.Remove(nil)
	l.Remove(a)
	l.Remove(l.head)
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, collectOldest(&l))
	assert.Nil(t, l.tail)
}

func TestAgeList_WalkStops(t *testing.T) {
	var l ageList[string]
	for _, k := range []string{"a", "b", "c"} {
		l.PushFront(k)
	}

	var seen []string
	l.WalkOldest(func(k string) bool {
		seen = append(seen, k)
		return k != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
}
