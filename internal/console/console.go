// Package console holds the operator console's application state: the
// session, the polled users and calls collections, the CRUD commands and the
// navigation shell around them. It talks to the backend only through Gateway.
package console

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/callcenter-console/internal/i18n"
	"github.com/callcenter-console/internal/models"
)

// DefaultPollInterval is how often users and calls are refetched.
const DefaultPollInterval = 5 * time.Second

var (
	ErrSessionBusy  = errors.New("a session is already active or signing in")
	ErrNotLoggedIn  = errors.New("not logged in")
	ErrNotConfirmed = errors.New("action not confirmed")
	ErrUnknownUser  = errors.New("unknown user")
	ErrClosed       = errors.New("console closed")
)

// ValidationError is a local input check that failed before any request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Gateway is the remote data access the console needs. *gateway.Client
// implements it.
type Gateway interface {
	Login(ctx context.Context, username, password string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.CreateUserResponse, error)
	UpdateUser(ctx context.Context, user models.User) (*models.MessageResponse, error)
	DeleteUser(ctx context.Context, id int64) error
	ListCalls(ctx context.Context) ([]models.Call, error)
	InitiateCall(ctx context.Context, callerNumber string) (*models.InitiateCallResult, error)
	EndCall(ctx context.Context, req models.EndCallRequest) (*models.MessageResponse, error)
}

// Confirmer approves destructive actions.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

type SessionState int

const (
	LoggedOut SessionState = iota
	Authenticating
	LoggedIn
)

func (s SessionState) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case Authenticating:
		return "authenticating"
	case LoggedIn:
		return "logged_in"
	}
	return "unknown"
}

// Console is safe for concurrent use. Gateway calls are made without holding
// the state lock.
type Console struct {
	gw       Gateway
	text     *i18n.Printer
	notifier Notifier
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	closed bool
	state  SessionState
	// epoch changes whenever a session begins or ends; responses carrying an
	// older epoch are dropped.
	epoch uint64
	user  *models.User

	users        []models.User
	calls        []models.Call
	usersIssued  uint64
	usersApplied uint64
	callsIssued  uint64
	callsApplied uint64

	section  Section
	dialog   Dialog
	newUser  NewUserDraft
	editUser *models.User
	dial     string

	poll    *poller
	running atomic.Int32 // live poll loops
}

type Option func(*Console)

func WithPollInterval(d time.Duration) Option {
	return func(c *Console) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Console) { c.notifier = n }
}

func WithPrinter(p *i18n.Printer) Option {
	return func(c *Console) { c.text = p }
}

func New(gw Gateway, opts ...Option) *Console {
	c := &Console{
		gw:       gw,
		text:     i18n.New("ru"),
		notifier: LogNotifier,
		interval: DefaultPollInterval,
		now:      time.Now,
		section:  SectionDashboard,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Printer returns the printer used for notifications.
func (c *Console) Printer() *i18n.Printer { return c.text }

// Close ends any session, stops polling and rejects further logins.
func (c *Console) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	p := c.endSessionLocked()
	c.mu.Unlock()

	p.stop()
}
