package go_func_utils

import (
	"bytes"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSafeGo_Runs(t *testing.T) {
	done := make(chan struct{})
	SafeGo(log.New(&bytes.Buffer{}, "", 0), func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
}

func TestSafeGoWait_TracksWaitGroup(t *testing.T) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0
	for i := 0; i < 5; i++ {
		SafeGoWait(log.New(&bytes.Buffer{}, "", 0), &wg, func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}
	wg.Wait()
	assert.Equal(t, 5, count)
}

func TestLogPanic_LogsAndRepanics(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	assert.PanicsWithValue(t, "boom", func() {
		defer logPanic(logger)
		panic("boom")
	})
	assert.Contains(t, buf.String(), "PANIC: boom")
}
