package console

import (
	"context"
	"sync"
	"time"

	"github.com/callcenter-console/internal/gateway"
	"github.com/callcenter-console/internal/i18n"
	"github.com/callcenter-console/internal/models"
)

// Login authenticates against the auth endpoint. It is only accepted while
// logged out. On success the session starts polling users and calls.
func (c *Console) Login(ctx context.Context, username, password string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != LoggedOut {
		c.mu.Unlock()
		return ErrSessionBusy
	}

	username = models.NormalizeUsername(username)
	if username == "" || password == "" {
		c.mu.Unlock()
		msg := c.text.Sprintf(i18n.MsgCredentialsMissing)
		c.notify(LevelError, msg)
		field := "password"
		if username == "" {
			field = "username"
		}
		return &ValidationError{Field: field, Message: msg}
	}

	c.state = Authenticating
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	user, err := c.gw.Login(ctx, username, password)

	c.mu.Lock()
	if c.epoch != epoch || c.state != Authenticating {
		// closed while the request was in flight
		c.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		c.state = LoggedOut
		c.mu.Unlock()
		c.notify(LevelError, c.describe(err))
		return err
	}

	c.state = LoggedIn
	c.user = user
	c.section = SectionDashboard
	c.startPollingLocked(epoch)
	c.mu.Unlock()

	c.notify(LevelSuccess, c.text.Sprintf(i18n.MsgWelcome, user.FullName))
	return nil
}

// Logout ends the session: the user, both collections, dialogs and drafts
// are discarded and polling stops. It does nothing unless logged in.
func (c *Console) Logout() {
	c.mu.Lock()
	if c.state != LoggedIn {
		c.mu.Unlock()
		return
	}
	p := c.endSessionLocked()
	c.mu.Unlock()

	p.stop()
	c.notify(LevelInfo, c.text.Sprintf(i18n.MsgSignedOut))
}

// endSessionLocked resets the session state and detaches the poll loop. The
// caller stops the returned poller after unlocking.
func (c *Console) endSessionLocked() *poller {
	c.state = LoggedOut
	c.epoch++
	c.user = nil
	c.users = nil
	c.calls = nil
	c.section = SectionDashboard
	c.closeDialogLocked()

	p := c.poll
	c.poll = nil
	return p
}

// Refresh refetches users and calls now, outside the poll schedule.
func (c *Console) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.state != LoggedIn {
		c.mu.Unlock()
		return ErrNotLoggedIn
	}
	epoch := c.epoch
	c.mu.Unlock()

	c.fetchAll(ctx, epoch)
	return nil
}

type poller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// stop cancels the loop and waits for it and its in-flight fetches to exit.
func (p *poller) stop() {
	if p == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (c *Console) startPollingLocked(epoch uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &poller{cancel: cancel, done: make(chan struct{})}
	c.poll = p
	c.running.Add(1)
	go c.pollLoop(ctx, epoch, p.done)
}

func (c *Console) pollLoop(ctx context.Context, epoch uint64, done chan struct{}) {
	defer close(done)
	defer c.running.Add(-1)

	var wg sync.WaitGroup
	defer wg.Wait()

	tick := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.fetchAll(ctx, epoch)
		}()
	}

	tick()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}

// fetchAll refreshes both collections concurrently.
func (c *Console) fetchAll(ctx context.Context, epoch uint64) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.refreshUsers(ctx, epoch)
	}()
	go func() {
		defer wg.Done()
		c.refreshCalls(ctx, epoch)
	}()
	wg.Wait()
}

// refreshUsers replaces the users collection unless a newer fetch was
// already applied or the session changed meanwhile.
func (c *Console) refreshUsers(ctx context.Context, epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.state != LoggedIn {
		c.mu.Unlock()
		return
	}
	c.usersIssued++
	seq := c.usersIssued
	c.mu.Unlock()

	users, err := c.gw.ListUsers(ctx)

	c.mu.Lock()
	if c.epoch != epoch || c.state != LoggedIn {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.mu.Unlock()
		if ctx.Err() == nil {
			c.notify(LevelError, c.text.Sprintf(i18n.MsgLoadUsersFailed, c.describe(err)))
		}
		return
	}
	if seq > c.usersApplied {
		c.usersApplied = seq
		c.users = users
	}
	c.mu.Unlock()
}

func (c *Console) refreshCalls(ctx context.Context, epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.state != LoggedIn {
		c.mu.Unlock()
		return
	}
	c.callsIssued++
	seq := c.callsIssued
	c.mu.Unlock()

	calls, err := c.gw.ListCalls(ctx)

	c.mu.Lock()
	if c.epoch != epoch || c.state != LoggedIn {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.mu.Unlock()
		if ctx.Err() == nil {
			c.notify(LevelError, c.text.Sprintf(i18n.MsgLoadCallsFailed, c.describe(err)))
		}
		return
	}
	if seq > c.callsApplied {
		c.callsApplied = seq
		c.calls = calls
	}
	c.mu.Unlock()
}

// describe turns a gateway failure into operator-facing text: the server's
// own message when there is one, a generic text otherwise.
func (c *Console) describe(err error) string {
	if msg, ok := gateway.ServerMessage(err); ok {
		return msg
	}
	if kind, ok := gateway.KindOf(err); ok && kind == gateway.KindSchema {
		return c.text.Sprintf(i18n.MsgUnexpectedResponse)
	}
	return c.text.Sprintf(i18n.MsgConnectionFailed)
}
