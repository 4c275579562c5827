package console

import (
	"context"
	"sync"

	"github.com/callcenter-console/internal/models"
)

// fakeGateway records the operations it receives in order. Func fields
// override the default in-memory behavior.
type fakeGateway struct {
	mu    sync.Mutex
	log   []string
	users []models.User
	calls []models.Call

	lastUpdate *models.User
	lastEnd    *models.EndCallRequest
	lastDial   string

	LoginFunc     func(ctx context.Context, username, password string) (*models.User, error)
	ListUsersFunc func(ctx context.Context) ([]models.User, error)
	ListCallsFunc func(ctx context.Context) ([]models.Call, error)
	CreateFunc    func(ctx context.Context, req models.CreateUserRequest) (*models.CreateUserResponse, error)
	UpdateFunc    func(ctx context.Context, u models.User) (*models.MessageResponse, error)
	DeleteFunc    func(ctx context.Context, id int64) error
	InitiateFunc  func(ctx context.Context, number string) (*models.InitiateCallResult, error)
	EndFunc       func(ctx context.Context, req models.EndCallRequest) (*models.MessageResponse, error)
}

func ivanov() models.User {
	return models.User{
		ID:             7,
		Username:       "ivanov",
		FullName:       "Ivanov I.I.",
		Role:           models.RoleOperator,
		Status:         models.UserStatusOnline,
		PhoneExtension: "101",
	}
}

func admin() models.User {
	return models.User{ID: 1, Username: "admin", FullName: "Администратор", Role: models.RoleSuperAdmin, Status: models.UserStatusOnline}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{users: []models.User{admin(), ivanov()}}
}

func (f *fakeGateway) record(op string) {
	f.mu.Lock()
	f.log = append(f.log, op)
	f.mu.Unlock()
}

func (f *fakeGateway) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

func (f *fakeGateway) count(op string) int {
	n := 0
	for _, o := range f.ops() {
		if o == op {
			n++
		}
	}
	return n
}

func (f *fakeGateway) resetLog() {
	f.mu.Lock()
	f.log = nil
	f.mu.Unlock()
}

func (f *fakeGateway) setUsers(users []models.User) {
	f.mu.Lock()
	f.users = users
	f.mu.Unlock()
}

func (f *fakeGateway) setCalls(calls []models.Call) {
	f.mu.Lock()
	f.calls = calls
	f.mu.Unlock()
}

func (f *fakeGateway) Login(ctx context.Context, username, password string) (*models.User, error) {
	f.record("login")
	if f.LoginFunc != nil {
		return f.LoginFunc(ctx, username, password)
	}
	u := ivanov()
	return &u, nil
}

func (f *fakeGateway) ListUsers(ctx context.Context) ([]models.User, error) {
	f.record("list users")
	if f.ListUsersFunc != nil {
		return f.ListUsersFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.User{}, f.users...), nil
}

func (f *fakeGateway) ListCalls(ctx context.Context) ([]models.Call, error) {
	f.record("list calls")
	if f.ListCallsFunc != nil {
		return f.ListCallsFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Call{}, f.calls...), nil
}

func (f *fakeGateway) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.CreateUserResponse, error) {
	f.record("create user")
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, req)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := int64(len(f.users) + 100)
	f.users = append(f.users, models.User{
		ID: id, Username: req.Username, FullName: req.FullName,
		Role: req.Role, Status: models.UserStatusOffline, PhoneExtension: req.PhoneExtension,
	})
	return &models.CreateUserResponse{ID: id, Message: "Пользователь создан"}, nil
}

func (f *fakeGateway) UpdateUser(ctx context.Context, u models.User) (*models.MessageResponse, error) {
	f.record("update user")
	if f.UpdateFunc != nil {
		return f.UpdateFunc(ctx, u)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpdate = &u
	for i := range f.users {
		if f.users[i].ID == u.ID {
			f.users[i] = u
		}
	}
	return &models.MessageResponse{Message: "Пользователь обновлен"}, nil
}

func (f *fakeGateway) DeleteUser(ctx context.Context, id int64) error {
	f.record("delete user")
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.users[:0]
	for _, u := range f.users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	f.users = kept
	return nil
}

func (f *fakeGateway) InitiateCall(ctx context.Context, number string) (*models.InitiateCallResult, error) {
	f.record("initiate call")
	if f.InitiateFunc != nil {
		return f.InitiateFunc(ctx, number)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastDial = number
	return &models.InitiateCallResult{CallID: 1, Message: "Звонок направлен оператору"}, nil
}

func (f *fakeGateway) EndCall(ctx context.Context, req models.EndCallRequest) (*models.MessageResponse, error) {
	f.record("end call")
	if f.EndFunc != nil {
		return f.EndFunc(ctx, req)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastEnd = &req
	return &models.MessageResponse{Message: "Звонок завершен"}, nil
}
