package datasync

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailover_DemoteFlipsModeOnce(t *testing.T) {
	fo := NewFailover(ModeRemote, nil)
	assert.Equal(t, ModeRemote, fo.Mode())

	var runs atomic.Int32
	fo.OnDemote(func(reason error) { runs.Add(1) })

	cause := errors.New("connection reset")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fo.Demote(cause)
		}()
	}
	wg.Wait()

	assert.Equal(t, ModeLocal, fo.Mode())
	assert.Equal(t, int32(1), runs.Load(), "hooks run exactly once")

	// the transition is terminal
	fo.Demote(cause)
	assert.Equal(t, int32(1), runs.Load())
}

func TestFailover_StartingLocalNeverRunsHooks(t *testing.T) {
	fo := NewFailover(ModeLocal, nil)

	var runs atomic.Int32
	fo.OnDemote(func(reason error) { runs.Add(1) })

	fo.Demote(errors.New("irrelevant"))

	assert.Equal(t, ModeLocal, fo.Mode())
	assert.Equal(t, int32(0), runs.Load(), "nothing to fail over from")
}

func TestFailover_HookReceivesReason(t *testing.T) {
	fo := NewFailover(ModeRemote, nil)

	cause := errors.New("dial timeout")
	var got error
	fo.OnDemote(func(reason error) { got = reason })

	fo.Demote(cause)
	assert.Equal(t, cause, got)
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "remote", ModeRemote.String())
	assert.Equal(t, "local", ModeLocal.String())
}
