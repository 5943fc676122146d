package toggle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/glotchimo/afkguard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const guildID = "123456789012345678"

// fakeAPI blocks every call until release is closed and then answers with
// the configured outcome.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []bool
	release chan struct{}
	err     error
	deny    bool
	panic   bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{release: make(chan struct{})}
}

func (f *fakeAPI) answer(guildID string, enabled bool) (models.ToggleResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, enabled)
	f.mu.Unlock()

	<-f.release

	if f.panic {
		panic("transport exploded")
	}
	if f.err != nil {
		return models.ToggleResult{}, f.err
	}
	if f.deny {
		return models.ToggleResult{Success: false, GuildID: guildID, Enabled: !enabled}, nil
	}
	return models.ToggleResult{Success: true, GuildID: guildID, Enabled: enabled}, nil
}

func (f *fakeAPI) Enable(_ context.Context, id string) (models.ToggleResult, error) {
	return f.answer(id, true)
}

func (f *fakeAPI) Disable(_ context.Context, id string) (models.ToggleResult, error) {
	return f.answer(id, false)
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recorder struct {
	mu       sync.Mutex
	states   []State
	failures []error
}

func (r *recorder) options() Options {
	return Options{
		OnChange: func(_ string, s State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, s)
		},
		OnFailure: func(_ string, err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.failures = append(r.failures, err)
		},
	}
}

func TestActivateSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newFakeAPI()
	rec := &recorder{}
	c := New(api, rec.options())

	require.True(t, c.Activate(guildID))
	assert.Equal(t, State{Committed: false, Optimistic: true, Busy: true}, c.State(guildID), "flip renders before the call resolves")

	close(api.release)
	c.Wait()

	assert.Equal(t, State{Committed: true, Optimistic: true}, c.State(guildID))
	assert.Empty(t, rec.failures)
	assert.Equal(t, []bool{true}, api.calls)
}

func TestActivateFailureRollsBack(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeAPI)
	}{
		{"error", func(f *fakeAPI) { f.err = errors.New("NETWORK_ERROR") }},
		{"unconfirmed", func(f *fakeAPI) { f.deny = true }},
		{"panic", func(f *fakeAPI) { f.panic = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			tt.setup(api)
			rec := &recorder{}
			c := New(api, rec.options())

			c.Sync(guildID, true)
			before := c.State(guildID)

			require.True(t, c.Activate(guildID))
			assert.False(t, c.State(guildID).Optimistic)

			close(api.release)
			c.Wait()

			assert.Equal(t, before, c.State(guildID), "rendered state returns to the pre-click state")
			require.Len(t, rec.failures, 1)
		})
	}
}

func TestActivateWhileBusyIsIgnored(t *testing.T) {
	api := newFakeAPI()
	c := New(api, Options{})

	require.True(t, c.Activate(guildID))
	assert.False(t, c.Activate(guildID))
	assert.False(t, c.Activate(guildID))

	close(api.release)
	c.Wait()

	assert.Equal(t, 1, api.callCount())
	assert.True(t, c.State(guildID).Optimistic)
}

func TestGuildsAreIndependent(t *testing.T) {
	api := newFakeAPI()
	c := New(api, Options{})

	require.True(t, c.Activate(guildID))
	require.True(t, c.Activate("987654321098765432"))

	close(api.release)
	c.Wait()

	assert.Equal(t, 2, api.callCount())
}

func TestSyncWhileBusy(t *testing.T) {
	t.Run("discarded on success", func(t *testing.T) {
		api := newFakeAPI()
		c := New(api, Options{})

		require.True(t, c.Activate(guildID))
		c.Sync(guildID, false)
		assert.Equal(t, State{Optimistic: true, Busy: true}, c.State(guildID), "no flicker mid-flight")

		close(api.release)
		c.Wait()

		assert.Equal(t, State{Committed: true, Optimistic: true}, c.State(guildID))
	})

	t.Run("rollback target on failure", func(t *testing.T) {
		api := newFakeAPI()
		api.err = errors.New("INTERNAL_ERROR")
		c := New(api, Options{})

		require.True(t, c.Activate(guildID))
		c.Sync(guildID, true)

		close(api.release)
		c.Wait()

		assert.Equal(t, State{Committed: true, Optimistic: true}, c.State(guildID))
	})
}

func TestSyncWhenIdle(t *testing.T) {
	rec := &recorder{}
	c := New(newFakeAPI(), rec.options())

	c.Sync(guildID, true)
	c.Sync(guildID, true)

	assert.Equal(t, State{Committed: true, Optimistic: true}, c.State(guildID))
	assert.Len(t, rec.states, 1, "unchanged refresh does not re-render")
}

func TestCloseDropsResolution(t *testing.T) {
	defer goleak.VerifyNone(t)

	api := newFakeAPI()
	api.err = errors.New("late")
	rec := &recorder{}
	c := New(api, rec.options())

	require.True(t, c.Activate(guildID))
	c.Close()

	assert.False(t, c.Activate("987654321098765432"))

	close(api.release)
	c.Wait()

	assert.Equal(t, 1, api.callCount(), "the in-flight request still completes")
	assert.Empty(t, rec.failures)
	assert.Len(t, rec.states, 1, "only the optimistic flip was rendered")
}
