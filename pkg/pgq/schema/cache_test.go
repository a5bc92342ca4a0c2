package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Shutdown can overlap an in-flight reload's snapshot publication; the send
// and the channel close must not race.
func TestCacheCloseDuringPublish(t *testing.T) {
	c := &Cache{
		tables:    make(Snapshot),
		functions: make(map[string]Function),
		watch:     make(chan Snapshot, 1),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 100 {
			c.publish(Snapshot{})
		}
	}()
	go func() {
		defer wg.Done()
		c.Close()
	}()
	wg.Wait()

	// publishing after Close is a silent no-op
	c.publish(Snapshot{})
	assert.True(t, c.watchClosed)
}

func TestCacheCloseIdempotent(t *testing.T) {
	c := &Cache{
		tables:    make(Snapshot),
		functions: make(map[string]Function),
		watch:     make(chan Snapshot, 1),
	}
	c.Close()
	c.Close()
}
