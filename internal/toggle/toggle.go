package toggle

import (
	"context"
	"fmt"
	"sync"

	"github.com/glotchimo/afkguard/internal/models"
)

type Toggler interface {
	Enable(ctx context.Context, guildID string) (models.ToggleResult, error)
	Disable(ctx context.Context, guildID string) (models.ToggleResult, error)
}

// State is what a view renders for one guild. Committed is the last value
// confirmed by the server or by an authoritative refresh.
type State struct {
	Committed  bool
	Optimistic bool
	Busy       bool
}

type Options struct {
	OnChange  func(guildID string, s State)
	OnFailure func(guildID string, err error)
}

type entry struct {
	State
	previous bool
	deferred *bool
}

// Controller applies enable/disable flips optimistically and rolls them back
// when the request fails. At most one request per guild is in flight.
type Controller struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	api    Toggler
	opts   Options
	guilds map[string]*entry
	closed bool
}

func New(api Toggler, opts Options) *Controller {
	return &Controller{
		api:    api,
		opts:   opts,
		guilds: make(map[string]*entry),
	}
}

func (c *Controller) get(guildID string) *entry {
	e, ok := c.guilds[guildID]
	if !ok {
		e = &entry{}
		c.guilds[guildID] = e
	}
	return e
}

func (c *Controller) State(guildID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.guilds[guildID]; ok {
		return e.State
	}
	return State{}
}

// Sync records an authoritative value from a refresh. While a request is in
// flight the value is held back and only used as the rollback target.
func (c *Controller) Sync(guildID string, authoritative bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	e := c.get(guildID)
	if e.Busy {
		e.deferred = &authoritative
		c.mu.Unlock()
		return
	}

	changed := e.Committed != authoritative || e.Optimistic != authoritative
	e.Committed, e.Optimistic = authoritative, authoritative
	s := e.State
	c.mu.Unlock()

	if changed {
		c.changed(guildID, s)
	}
}

// Activate flips the guild's optimistic value and issues the matching call in
// the background. It reports false when a request is already in flight.
func (c *Controller) Activate(guildID string) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}

	e := c.get(guildID)
	if e.Busy {
		c.mu.Unlock()
		return false
	}

	e.previous = e.Optimistic
	e.Optimistic = !e.Optimistic
	e.Busy = true
	e.deferred = nil
	target := e.Optimistic
	s := e.State
	c.wg.Add(1)
	c.mu.Unlock()

	c.changed(guildID, s)
	go c.resolve(guildID, target)

	return true
}

func (c *Controller) resolve(guildID string, target bool) {
	defer c.wg.Done()

	err := c.call(guildID, target)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	e := c.get(guildID)
	e.Busy = false
	switch {
	case err == nil:
		e.Committed = e.Optimistic
	case e.deferred != nil:
		e.Committed, e.Optimistic = *e.deferred, *e.deferred
	default:
		e.Optimistic = e.previous
	}
	e.deferred = nil
	s := e.State
	c.mu.Unlock()

	c.changed(guildID, s)
	if err != nil && c.opts.OnFailure != nil {
		c.opts.OnFailure(guildID, err)
	}
}

// call runs the request and turns panics and unconfirmed results into errors.
func (c *Controller) call(guildID string, target bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("toggle request panicked: %v", r)
		}
	}()

	var res models.ToggleResult
	if target {
		res, err = c.api.Enable(context.Background(), guildID)
	} else {
		res, err = c.api.Disable(context.Background(), guildID)
	}
	if err != nil {
		return err
	}
	if !res.Success || res.Enabled != target {
		return fmt.Errorf("server did not confirm enabled=%t for guild %s", target, guildID)
	}
	return nil
}

func (c *Controller) changed(guildID string, s State) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(guildID, s)
	}
}

// Close detaches the controller from its view. Requests already in flight
// still complete but their results are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Wait blocks until every in-flight request has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}
