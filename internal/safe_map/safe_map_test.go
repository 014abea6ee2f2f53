package safe_map

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeMap_Basics(t *testing.T) {
	m := NewSafeMap[string, int]()
	_, ok := m.Load("a")
	assert.False(t, ok)

	m.Store("a", 1)
	v, ok := m.Load("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	actual, loaded := m.LoadOrStore("a", 2)
	assert.True(t, loaded)
	assert.Equal(t, 1, actual)

	actual, loaded = m.LoadOrStore("b", 3)
	assert.False(t, loaded)
	assert.Equal(t, 3, actual)
	assert.Equal(t, 2, m.Len())

	m.Delete("a")
	assert.Equal(t, map[string]int{"b": 3}, m.Snapshot())

	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestSafeMap_RangeStops(t *testing.T) {
	m := NewSafeMap[int, bool]()
	for i := 0; i < 10; i++ {
		m.Store(i, true)
	}
	visited := 0
	m.Range(func(int, bool) bool {
		visited++
		return visited < 3
	})
	assert.Equal(t, 3, visited)
}

func TestSafeMap_Concurrent(t *testing.T) {
	m := NewSafeMap[int, int]()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				m.Store(g*100+i, i)
				m.Load(i)
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 800, m.Len())
}
