package gate_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/blues/carbonledger/internal/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_AcquireRelease(t *testing.T) {
	g := gate.New(nil)
	require.False(t, g.IsBusy())

	require.NoError(t, g.TryAcquire())
	require.True(t, g.IsBusy())

	err := g.TryAcquire()
	require.ErrorIs(t, err, gate.ErrAlreadyBusy)
	require.True(t, g.IsBusy(), "failed acquire must leave state unchanged")

	g.Release()
	require.False(t, g.IsBusy())

	// release on an idle gate is harmless
	g.Release()
	require.False(t, g.IsBusy())
	require.NoError(t, g.TryAcquire())
}

func TestGate_ObserverSeesTransitions(t *testing.T) {
	var seen []bool
	g := gate.New(func(busy bool) { seen = append(seen, busy) })

	require.NoError(t, g.TryAcquire())
	_ = g.TryAcquire()
	g.Release()

	assert.Equal(t, []bool{true, false}, seen)
}

func TestGate_ConcurrentAcquireSingleWinner(t *testing.T) {
	g := gate.New(nil)

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if g.TryAcquire() == nil {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.True(t, g.IsBusy())
}
