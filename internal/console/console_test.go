package console

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callcenter-console/internal/gateway"
	"github.com/callcenter-console/internal/models"
)

func newTestConsole(t *testing.T, gw Gateway, opts ...Option) (*Console, *Queue) {
	t.Helper()
	q := NewQueue(0)
	base := []Option{WithNotifier(q), WithPollInterval(time.Hour)}
	c := New(gw, append(base, opts...)...)
	t.Cleanup(c.Close)
	return c, q
}

// waitLoaded blocks until the first poll has applied both collections.
func waitLoaded(t *testing.T, c *Console) {
	t.Helper()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.usersApplied > 0 && c.callsApplied > 0
	}, time.Second, 5*time.Millisecond)
}

func loggedIn(t *testing.T, gw *fakeGateway, opts ...Option) (*Console, *Queue) {
	t.Helper()
	c, q := newTestConsole(t, gw, opts...)
	require.NoError(t, c.Login(context.Background(), "ivanov", "secret"))
	waitLoaded(t, c)
	gw.resetLog()
	q.Drain()
	return c, q
}

func texts(ns []Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Text)
	}
	return out
}

func TestLogin_Success(t *testing.T) {
	gw := newFakeGateway()
	c, q := newTestConsole(t, gw)

	require.NoError(t, c.Login(context.Background(), " ivanov ", "secret"))

	snap := c.Snapshot()
	assert.Equal(t, LoggedIn, snap.State)
	require.NotNil(t, snap.CurrentUser)
	assert.Equal(t, "Ivanov I.I.", snap.CurrentUser.FullName)
	assert.Equal(t, SectionDashboard, snap.Section)
	assert.True(t, snap.Polling)
	assert.False(t, snap.CanManageUsers)
	assert.Equal(t, int32(1), c.running.Load())
	assert.Equal(t, 1, gw.count("login"))

	waitLoaded(t, c)
	assert.Len(t, c.Snapshot().Users, 2)
	assert.Contains(t, texts(q.Drain()), "Добро пожаловать, Ivanov I.I.")
}

func TestScenario_OperatorSeesDashboard(t *testing.T) {
	c, _ := newTestConsole(t, newFakeGateway())
	require.NoError(t, c.Login(context.Background(), "ivanov", "secret"))

	snap := c.Snapshot()
	assert.Equal(t, SectionDashboard, snap.Section)
	assert.Equal(t, "Ivanov I.I.", snap.CurrentUser.FullName)
	assert.Equal(t, "Оператор", c.Printer().Role(snap.CurrentUser.Role))
}

func TestLogin_SuperAdminCanManageUsers(t *testing.T) {
	gw := newFakeGateway()
	gw.LoginFunc = func(context.Context, string, string) (*models.User, error) {
		u := admin()
		return &u, nil
	}
	c, _ := newTestConsole(t, gw)
	require.NoError(t, c.Login(context.Background(), "admin", "admin"))
	assert.True(t, c.Snapshot().CanManageUsers)
}

func TestLogin_EmptyFieldsMakeNoRequest(t *testing.T) {
	tests := []struct {
		name, username, password, field string
	}{
		{"no username", "   ", "secret", "username"},
		{"no password", "ivanov", "", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway()
			c, q := newTestConsole(t, gw)

			err := c.Login(context.Background(), tt.username, tt.password)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Empty(t, gw.ops())
			assert.Equal(t, LoggedOut, c.Snapshot().State)
			assert.Equal(t, []string{"Введите логин и пароль"}, texts(q.Drain()))
		})
	}
}

func TestLogin_FailureNeverStartsPolling(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "server",
			err:  &gateway.Error{Kind: gateway.KindServer, Op: "login", Status: 401, Message: "Неверный логин или пароль"},
			want: "Неверный логин или пароль",
		},
		{
			name: "connectivity",
			err:  &gateway.Error{Kind: gateway.KindConnectivity, Op: "login", Err: errors.New("connection refused")},
			want: "Ошибка подключения к серверу",
		},
		{
			name: "schema",
			err:  &gateway.Error{Kind: gateway.KindSchema, Op: "login", Status: 200, Err: errors.New("missing id")},
			want: "Некорректный ответ сервера",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway()
			gw.LoginFunc = func(context.Context, string, string) (*models.User, error) { return nil, tt.err }
			c, q := newTestConsole(t, gw, WithPollInterval(5*time.Millisecond))

			err := c.Login(context.Background(), "ivanov", "wrong")
			require.ErrorIs(t, err, tt.err)

			snap := c.Snapshot()
			assert.Equal(t, LoggedOut, snap.State)
			assert.Nil(t, snap.CurrentUser)
			assert.False(t, snap.Polling)
			assert.Equal(t, int32(0), c.running.Load())
			assert.Equal(t, []string{tt.want}, texts(q.Drain()))

			time.Sleep(20 * time.Millisecond)
			assert.Equal(t, []string{"login"}, gw.ops())
		})
	}
}

func TestLogin_BusyWhileAuthenticatingOrLoggedIn(t *testing.T) {
	gw := newFakeGateway()
	release := make(chan struct{})
	gw.LoginFunc = func(context.Context, string, string) (*models.User, error) {
		<-release
		u := ivanov()
		return &u, nil
	}
	c, _ := newTestConsole(t, gw)

	done := make(chan error, 1)
	go func() { done <- c.Login(context.Background(), "ivanov", "secret") }()
	require.Eventually(t, func() bool { return c.Snapshot().State == Authenticating }, time.Second, time.Millisecond)

	assert.ErrorIs(t, c.Login(context.Background(), "ivanov", "secret"), ErrSessionBusy)
	c.Logout()
	assert.Equal(t, Authenticating, c.Snapshot().State, "logout is a no-op while authenticating")

	close(release)
	require.NoError(t, <-done)
	assert.ErrorIs(t, c.Login(context.Background(), "ivanov", "secret"), ErrSessionBusy)
	assert.Equal(t, 1, gw.count("login"))
}

func TestLogout_ClearsSessionAndStopsPolling(t *testing.T) {
	gw := newFakeGateway()
	c, q := loggedIn(t, gw, WithPollInterval(5*time.Millisecond))

	require.NoError(t, c.OpenCreateUser())
	c.SetNewUserDraft(NewUserDraft{Username: "petrov"})
	require.NoError(t, c.Navigate(SectionEmployees))

	c.Logout()

	snap := c.Snapshot()
	assert.Equal(t, LoggedOut, snap.State)
	assert.Nil(t, snap.CurrentUser)
	assert.Nil(t, snap.Users)
	assert.Nil(t, snap.Calls)
	assert.Equal(t, DialogNone, snap.Dialog)
	assert.Equal(t, NewUserDraft{}, snap.NewUser)
	assert.Equal(t, SectionDashboard, snap.Section)
	assert.False(t, snap.Polling)
	assert.Equal(t, int32(0), c.running.Load())
	assert.Contains(t, texts(q.Drain()), "Вы вышли из системы")

	fetched := gw.count("list users")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, fetched, gw.count("list users"), "no fetch after logout")

	c.Logout()
	assert.Empty(t, q.Drain(), "second logout does nothing")
}

func TestPolling_RefetchesAndSurvivesFailures(t *testing.T) {
	gw := newFakeGateway()
	gw.ListCallsFunc = func(context.Context) ([]models.Call, error) {
		return nil, &gateway.Error{Kind: gateway.KindConnectivity, Op: "list calls", Err: errors.New("timeout")}
	}
	c, q := newTestConsole(t, gw, WithPollInterval(5*time.Millisecond))
	require.NoError(t, c.Login(context.Background(), "ivanov", "secret"))

	require.Eventually(t, func() bool {
		return gw.count("list calls") >= 3 && gw.count("list users") >= 3 && len(c.Snapshot().Users) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, LoggedIn, c.Snapshot().State)
	assert.Contains(t, texts(q.Drain()), "Не удалось загрузить звонки: Ошибка подключения к серверу")
}

func TestPolling_StaleResponseIsDiscarded(t *testing.T) {
	gw := newFakeGateway()
	release := make(chan struct{})
	var n atomic.Int32
	gw.ListUsersFunc = func(context.Context) ([]models.User, error) {
		if n.Add(1) == 1 {
			<-release
			return []models.User{admin()}, nil
		}
		return []models.User{admin(), ivanov()}, nil
	}
	c, _ := newTestConsole(t, gw)
	c.mu.Lock()
	c.state, c.epoch = LoggedIn, 1
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.refreshUsers(context.Background(), 1)
	}()
	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, time.Millisecond)

	c.refreshUsers(context.Background(), 1)
	require.Len(t, c.Snapshot().Users, 2)

	close(release)
	<-done
	assert.Len(t, c.Snapshot().Users, 2, "older response must not overwrite a newer one")
}

func TestPolling_LateResponseAfterLogoutIsDropped(t *testing.T) {
	gw := newFakeGateway()
	release := make(chan struct{})
	gw.ListUsersFunc = func(context.Context) ([]models.User, error) {
		<-release
		return []models.User{admin()}, nil
	}
	c, _ := newTestConsole(t, gw)
	c.mu.Lock()
	c.state, c.epoch = LoggedIn, 1
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.refreshUsers(context.Background(), 1)
	}()
	require.Eventually(t, func() bool { return gw.count("list users") == 1 }, time.Second, time.Millisecond)

	c.Logout()
	close(release)
	<-done
	assert.Nil(t, c.Snapshot().Users)
}

func TestPolling_AtMostOneLoop(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("login/logout sequences keep at most one poll loop", prop.ForAll(
		func(ops []bool) bool {
			c := New(newFakeGateway(), WithNotifier(nil), WithPollInterval(time.Millisecond))
			defer c.Close()

			for _, login := range ops {
				if login {
					err := c.Login(context.Background(), "ivanov", "secret")
					if err != nil && !errors.Is(err, ErrSessionBusy) {
						return false
					}
				} else {
					c.Logout()
				}
				running := c.running.Load()
				if running > 1 {
					return false
				}
				if (running == 1) != (c.Snapshot().State == LoggedIn) {
					return false
				}
			}
			c.Close()
			return c.running.Load() == 0
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}

func TestClose(t *testing.T) {
	gw := newFakeGateway()
	c, _ := loggedIn(t, gw, WithPollInterval(5*time.Millisecond))

	c.Close()
	assert.Equal(t, int32(0), c.running.Load())
	assert.Equal(t, LoggedOut, c.Snapshot().State)
	assert.ErrorIs(t, c.Login(context.Background(), "ivanov", "secret"), ErrClosed)
	c.Close()
}

func TestClose_WhileAuthenticating(t *testing.T) {
	gw := newFakeGateway()
	release := make(chan struct{})
	gw.LoginFunc = func(context.Context, string, string) (*models.User, error) {
		<-release
		u := ivanov()
		return &u, nil
	}
	c, _ := newTestConsole(t, gw)

	done := make(chan error, 1)
	go func() { done <- c.Login(context.Background(), "ivanov", "secret") }()
	require.Eventually(t, func() bool { return c.Snapshot().State == Authenticating }, time.Second, time.Millisecond)

	c.Close()
	close(release)
	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Equal(t, LoggedOut, c.Snapshot().State)
	assert.Equal(t, int32(0), c.running.Load())
}

func TestRefresh(t *testing.T) {
	gw := newFakeGateway()
	c, _ := newTestConsole(t, gw)
	assert.ErrorIs(t, c.Refresh(context.Background()), ErrNotLoggedIn)

	c, _ = loggedIn(t, gw)
	gw.setUsers([]models.User{admin()})
	require.NoError(t, c.Refresh(context.Background()))
	assert.Len(t, c.Snapshot().Users, 1)
	assert.ElementsMatch(t, []string{"list users", "list calls"}, gw.ops())
}
