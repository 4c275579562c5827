// Package gateway is the console's only path to the remote auth, users and
// calls endpoints.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/callcenter-console/internal/models"
)

// maxBodySize bounds how much of a response is read.
const maxBodySize = 8 << 20

// Endpoints are the three resource URLs. They are configured independently.
type Endpoints struct {
	Auth  string
	Users string
	Calls string
}

// EndpointsFromBase derives the default endpoints from a server base URL.
func EndpointsFromBase(base string) Endpoints {
	base = strings.TrimRight(base, "/")
	return Endpoints{
		Auth:  base + "/api/auth",
		Users: base + "/api/users",
		Calls: base + "/api/calls",
	}
}

// Exchange describes one completed request.
type Exchange struct {
	Op       string
	Method   string
	URL      string
	Status   int
	Duration time.Duration
	Err      error
}

// Observer is notified after every request, successful or not.
type Observer interface {
	Observe(Exchange)
}

type ObserverFunc func(Exchange)

func (f ObserverFunc) Observe(e Exchange) { f(e) }

// LogObserver writes every exchange to the standard logger.
var LogObserver = ObserverFunc(func(e Exchange) {
	if e.Err != nil {
		log.Printf("[GATEWAY] %s %s (%s) failed after %s: %v", e.Method, e.URL, e.Op, e.Duration.Round(time.Millisecond), e.Err)
		return
	}
	log.Printf("[GATEWAY] %s %s (%s) -> %d in %s", e.Method, e.URL, e.Op, e.Status, e.Duration.Round(time.Millisecond))
})

// Client talks JSON over HTTP. It never retries and carries no credentials.
type Client struct {
	endpoints Endpoints
	http      *http.Client
	timeout   time.Duration
	observer  Observer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

func New(endpoints Endpoints, opts ...Option) *Client {
	c := &Client{
		endpoints: endpoints,
		http:      &http.Client{},
		observer:  LogObserver,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Endpoints() Endpoints { return c.endpoints }

// Login checks credentials and returns the signed-in user.
func (c *Client) Login(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	req := models.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, "login", http.MethodPost, c.endpoints.Auth, req, schemas.user, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := c.do(ctx, "list users", http.MethodGet, c.endpoints.Users, nil, schemas.users, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.CreateUserResponse, error) {
	var resp models.CreateUserResponse
	if err := c.do(ctx, "create user", http.MethodPost, c.endpoints.Users, req, schemas.created, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateUser sends the whole user object. Servers answer with either a
// message or the updated user; Message is empty in the latter case.
func (c *Client) UpdateUser(ctx context.Context, user models.User) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	if err := c.do(ctx, "update user", http.MethodPut, c.endpoints.Users, user, schemas.updated, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteUser removes a user by id. Any 2xx counts as success.
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	target, err := withQuery(c.endpoints.Users, "id", strconv.FormatInt(id, 10))
	if err != nil {
		return &Error{Kind: KindConnectivity, Op: "delete user", Err: err}
	}
	return c.do(ctx, "delete user", http.MethodDelete, target, nil, nil, nil)
}

func (c *Client) ListCalls(ctx context.Context) ([]models.Call, error) {
	calls := []models.Call{}
	if err := c.do(ctx, "list calls", http.MethodGet, c.endpoints.Calls, nil, schemas.calls, &calls); err != nil {
		return nil, err
	}
	return calls, nil
}

func (c *Client) InitiateCall(ctx context.Context, callerNumber string) (*models.InitiateCallResult, error) {
	var resp models.InitiateCallResult
	req := models.CallActionRequest{Action: models.ActionInitiate, CallerNumber: callerNumber}
	if err := c.do(ctx, "initiate call", http.MethodPost, c.endpoints.Calls, req, schemas.initiated, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) EndCall(ctx context.Context, req models.EndCallRequest) (*models.MessageResponse, error) {
	var resp models.MessageResponse
	body := models.CallActionRequest{
		Action:   models.ActionEnd,
		CallID:   req.CallID,
		Duration: req.Duration,
		Notes:    req.Notes,
	}
	if err := c.do(ctx, "end call", http.MethodPost, c.endpoints.Calls, body, schemas.message, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, op, method, target string, body any, schema *jsonschema.Schema, out any) (err error) {
	start := time.Now()
	status := 0
	defer func() {
		if c.observer != nil {
			c.observer.Observe(Exchange{
				Op:       op,
				Method:   method,
				URL:      target,
				Status:   status,
				Duration: time.Since(start),
				Err:      err,
			})
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		payload, merr := json.Marshal(body)
		if merr != nil {
			return &Error{Kind: KindConnectivity, Op: op, Err: fmt.Errorf("encode request: %w", merr)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &Error{Kind: KindConnectivity, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindConnectivity, Op: op, Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &Error{Kind: KindConnectivity, Op: op, Status: status, Err: fmt.Errorf("read response: %w", err)}
	}

	if status < 200 || status > 299 {
		var e models.ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return &Error{Kind: KindServer, Op: op, Status: status, Message: e.Error}
		}
		return &Error{Kind: KindConnectivity, Op: op, Status: status, Err: errors.New(http.StatusText(status))}
	}

	if schema != nil {
		var doc any
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if derr := dec.Decode(&doc); derr != nil {
			return &Error{Kind: KindSchema, Op: op, Status: status, Err: fmt.Errorf("decode response: %w", derr)}
		}
		if verr := schema.Validate(doc); verr != nil {
			return &Error{Kind: KindSchema, Op: op, Status: status, Err: verr}
		}
	}
	if out != nil {
		if uerr := json.Unmarshal(data, out); uerr != nil {
			return &Error{Kind: KindSchema, Op: op, Status: status, Err: fmt.Errorf("decode response: %w", uerr)}
		}
	}
	return nil
}

func withQuery(target, key, value string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
