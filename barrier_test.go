// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tilegrid

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrierGenerations(t *testing.T) {
	const parties, rounds = 6, 5
	b := NewBarrier(parties)
	require.Equal(t, parties, b.Parties())

	var arrived atomic.Int64
	var wg sync.WaitGroup
	errs := make(chan error, parties*rounds)
	for p := 0; p < parties; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				arrived.Add(1)
				if err := b.Wait(); err != nil {
					errs <- err
					return
				}
				// Nobody leaves round r before everyone entered it
				if got := arrived.Load(); got < int64((r+1)*parties) {
					errs <- assert.AnError
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	assert.Equal(t, int64(parties*rounds), arrived.Load())
	assert.False(t, b.Broken())
}

func TestBarrierSingleParty(t *testing.T) {
	b := NewBarrier(0)
	assert.Equal(t, 1, b.Parties())
	assert.NoError(t, b.Wait())
	assert.NoError(t, b.Wait())
}

func TestBarrierBreakReleasesWaiters(t *testing.T) {
	b := NewBarrier(3)
	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { done <- b.Wait() }()
	}

	// The third party never arrives; it breaks the barrier instead
	time.Sleep(10 * time.Millisecond)
	b.Break()

	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			assert.ErrorIs(t, err, ErrBarrierBroken)
		case <-time.After(5 * time.Second):
			t.Fatal("waiter not released by Break")
		}
	}
	assert.True(t, b.Broken())
	assert.ErrorIs(t, b.Wait(), ErrBarrierBroken)
}
