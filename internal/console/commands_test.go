package console

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callcenter-console/internal/gateway"
	"github.com/callcenter-console/internal/models"
)

func TestCreateUser_PostsThenRefetches(t *testing.T) {
	gw := newFakeGateway()
	c, q := loggedIn(t, gw)

	require.NoError(t, c.OpenCreateUser())
	c.SetNewUserDraft(NewUserDraft{Username: "petrov", Password: "pw", FullName: "Petrov P.P.", PhoneExtension: "102"})
	require.NoError(t, c.CreateUser(context.Background()))

	assert.Equal(t, []string{"create user", "list users"}, gw.ops())

	snap := c.Snapshot()
	assert.Equal(t, DialogNone, snap.Dialog)
	assert.Equal(t, NewUserDraft{}, snap.NewUser)
	require.Len(t, snap.Users, 3)
	assert.Equal(t, "petrov", snap.Users[2].Username)
	assert.Equal(t, models.RoleOperator, snap.Users[2].Role, "role defaults to operator")
	assert.Equal(t, []string{"Сотрудник Petrov P.P. добавлен"}, texts(q.Drain()))
}

func TestCreateUser_Validation(t *testing.T) {
	tests := []struct {
		name  string
		draft NewUserDraft
	}{
		{"no username", NewUserDraft{Password: "pw", FullName: "Petrov P.P."}},
		{"no password", NewUserDraft{Username: "petrov", FullName: "Petrov P.P."}},
		{"no full name", NewUserDraft{Username: "petrov", Password: "pw", FullName: "  "}},
		{"bad role", NewUserDraft{Username: "petrov", Password: "pw", FullName: "Petrov P.P.", Role: "root"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway()
			c, _ := loggedIn(t, gw)

			require.NoError(t, c.OpenCreateUser())
			c.SetNewUserDraft(tt.draft)

			var verr *ValidationError
			require.ErrorAs(t, c.CreateUser(context.Background()), &verr)
			assert.Empty(t, gw.ops())

			snap := c.Snapshot()
			assert.Equal(t, DialogCreateUser, snap.Dialog, "dialog stays open")
			assert.Equal(t, tt.draft, snap.NewUser, "draft is kept")
		})
	}
}

func TestCreateUser_ServerErrorKeepsDraft(t *testing.T) {
	gw := newFakeGateway()
	gw.CreateFunc = func(context.Context, models.CreateUserRequest) (*models.CreateUserResponse, error) {
		return nil, &gateway.Error{Kind: gateway.KindServer, Op: "create user", Status: 409, Message: "Пользователь с таким логином уже существует"}
	}
	c, q := loggedIn(t, gw)

	require.NoError(t, c.OpenCreateUser())
	draft := NewUserDraft{Username: "ivanov", Password: "pw", FullName: "Ivanov I.I."}
	c.SetNewUserDraft(draft)

	require.Error(t, c.CreateUser(context.Background()))
	assert.Equal(t, []string{"create user"}, gw.ops())
	assert.Equal(t, []string{"Пользователь с таким логином уже существует"}, texts(q.Drain()))

	snap := c.Snapshot()
	assert.Equal(t, DialogCreateUser, snap.Dialog)
	assert.Equal(t, draft, snap.NewUser)
}

func TestUpdateUser_StatusRoundTrip(t *testing.T) {
	gw := newFakeGateway()
	c, _ := loggedIn(t, gw)

	require.NoError(t, c.OpenEditUser(7))
	snap := c.Snapshot()
	require.NotNil(t, snap.EditUser)
	assert.Equal(t, DialogEditUser, snap.Dialog)

	edited := *snap.EditUser
	edited.Status = models.UserStatusBreak
	require.NoError(t, c.SetEditUserDraft(edited))
	require.NoError(t, c.UpdateUser(context.Background()))

	assert.Equal(t, []string{"update user", "list users"}, gw.ops())
	require.NotNil(t, gw.lastUpdate)
	assert.Equal(t, ivanov().Username, gw.lastUpdate.Username, "the whole object is sent")
	assert.Equal(t, ivanov().PhoneExtension, gw.lastUpdate.PhoneExtension)
	assert.Equal(t, models.UserStatusBreak, gw.lastUpdate.Status)

	snap = c.Snapshot()
	assert.Equal(t, DialogNone, snap.Dialog)
	assert.Nil(t, snap.EditUser)
	for _, u := range snap.Users {
		if u.ID == 7 {
			assert.Equal(t, models.UserStatusBreak, u.Status)
		}
	}
}

func TestUpdateUser_RequiresDraft(t *testing.T) {
	gw := newFakeGateway()
	c, _ := loggedIn(t, gw)

	var verr *ValidationError
	require.ErrorAs(t, c.UpdateUser(context.Background()), &verr)
	assert.Empty(t, gw.ops())
	assert.ErrorIs(t, c.OpenEditUser(999), ErrUnknownUser)
}

func TestSetEditUserDraft_KeepsID(t *testing.T) {
	c, _ := loggedIn(t, newFakeGateway())
	require.NoError(t, c.OpenEditUser(7))

	u := ivanov()
	u.ID = 1
	require.NoError(t, c.SetEditUserDraft(u))
	assert.Equal(t, int64(7), c.Snapshot().EditUser.ID)
}

func TestDeleteUser_RequiresConfirmation(t *testing.T) {
	gw := newFakeGateway()
	c, q := loggedIn(t, gw)

	assert.ErrorIs(t, c.DeleteUser(context.Background(), 7, nil), ErrNotConfirmed)
	assert.ErrorIs(t, c.DeleteUser(context.Background(), 7, ConfirmFunc(func(string) bool { return false })), ErrNotConfirmed)
	assert.Equal(t, 0, gw.count("delete user"))
	assert.Equal(t, []string{"Удаление отменено", "Удаление отменено"}, texts(q.Drain()))

	var prompt string
	err := c.DeleteUser(context.Background(), 7, ConfirmFunc(func(p string) bool {
		prompt = p
		return true
	}))
	require.NoError(t, err)
	assert.Equal(t, "Удалить сотрудника Ivanov I.I.?", prompt)
	assert.Equal(t, []string{"delete user", "list users"}, gw.ops())
	assert.Len(t, c.Snapshot().Users, 1)
}

func TestDeleteUser_ClosesEditOfDeletedUser(t *testing.T) {
	c, _ := loggedIn(t, newFakeGateway())
	require.NoError(t, c.OpenEditUser(7))

	require.NoError(t, c.DeleteUser(context.Background(), 7, ConfirmFunc(func(string) bool { return true })))
	snap := c.Snapshot()
	assert.Equal(t, DialogNone, snap.Dialog)
	assert.Nil(t, snap.EditUser)
}

func TestScenario_DialNumber(t *testing.T) {
	gw := newFakeGateway()
	c, q := loggedIn(t, gw)

	require.NoError(t, c.OpenDial())
	c.SetDialBuffer("89991234567")
	gw.setCalls([]models.Call{{ID: 1, CallerNumber: "89991234567", Status: models.CallStatusQueued, StartedAt: time.Now()}})

	require.NoError(t, c.InitiateCall(context.Background()))

	assert.Equal(t, "89991234567", gw.lastDial)
	assert.Equal(t, []string{"initiate call", "list calls"}, gw.ops())
	assert.Equal(t, []string{"Вызов 89991234567"}, texts(q.Drain()))

	snap := c.Snapshot()
	assert.Empty(t, snap.DialBuffer)
	assert.Equal(t, DialogNone, snap.Dialog)
	require.Len(t, snap.Calls, 1)
	assert.Equal(t, models.CallStatusQueued, snap.Calls[0].Status)
}

func TestInitiateCall_EmptyNumber(t *testing.T) {
	gw := newFakeGateway()
	c, _ := loggedIn(t, gw)

	require.NoError(t, c.OpenDial())
	c.SetDialBuffer("   ")
	var verr *ValidationError
	require.ErrorAs(t, c.InitiateCall(context.Background()), &verr)
	assert.Empty(t, gw.ops())
	assert.Equal(t, DialogDial, c.Snapshot().Dialog)
}

func TestInitiateCall_FailureKeepsBuffer(t *testing.T) {
	gw := newFakeGateway()
	gw.InitiateFunc = func(context.Context, string) (*models.InitiateCallResult, error) {
		return nil, &gateway.Error{Kind: gateway.KindServer, Op: "initiate call", Status: 400, Message: "Укажите номер телефона"}
	}
	c, _ := loggedIn(t, gw)

	require.NoError(t, c.OpenDial())
	c.SetDialBuffer("123")
	require.Error(t, c.InitiateCall(context.Background()))
	assert.Equal(t, "123", c.Snapshot().DialBuffer)
	assert.Equal(t, []string{"initiate call"}, gw.ops())
}

func TestEndCall_ComputesDuration(t *testing.T) {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	gw := newFakeGateway()
	name := "Ivanov I.I."
	gw.setCalls([]models.Call{
		{ID: 5, CallerNumber: "89991234567", OperatorName: &name, Status: models.CallStatusActive, StartedAt: start},
		{ID: 6, CallerNumber: "84950000000", Status: models.CallStatusQueued, StartedAt: start},
	})

	c, _ := newTestConsole(t, gw)
	c.now = func() time.Time { return start.Add(90 * time.Second) }
	require.NoError(t, c.Login(context.Background(), "ivanov", "secret"))
	waitLoaded(t, c)
	gw.resetLog()

	require.NoError(t, c.EndCall(context.Background(), 5, "  resolved "))
	require.NotNil(t, gw.lastEnd)
	assert.Equal(t, models.EndCallRequest{CallID: 5, Duration: 90, Notes: "resolved"}, *gw.lastEnd)

	ops := gw.ops()
	require.Len(t, ops, 3)
	assert.Equal(t, "end call", ops[0])
	assert.ElementsMatch(t, []string{"list users", "list calls"}, ops[1:])

	gw.resetLog()
	var verr *ValidationError
	require.ErrorAs(t, c.EndCall(context.Background(), 6, ""), &verr, "queued calls cannot be ended")
	require.ErrorAs(t, c.EndCall(context.Background(), 404, ""), &verr)
	assert.Empty(t, gw.ops())
}

func TestCommands_RequireSession(t *testing.T) {
	gw := newFakeGateway()
	c, _ := newTestConsole(t, gw)
	ctx := context.Background()

	assert.ErrorIs(t, c.CreateUser(ctx), ErrNotLoggedIn)
	assert.ErrorIs(t, c.UpdateUser(ctx), ErrNotLoggedIn)
	assert.ErrorIs(t, c.DeleteUser(ctx, 1, ConfirmFunc(func(string) bool { return true })), ErrNotLoggedIn)
	assert.ErrorIs(t, c.InitiateCall(ctx), ErrNotLoggedIn)
	assert.ErrorIs(t, c.EndCall(ctx, 1, ""), ErrNotLoggedIn)
	assert.ErrorIs(t, c.OpenDial(), ErrNotLoggedIn)
	assert.ErrorIs(t, c.Navigate(SectionCalls), ErrNotLoggedIn)
	assert.Empty(t, gw.ops())
}
