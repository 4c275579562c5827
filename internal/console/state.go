package console

import (
	"fmt"
	"time"

	"github.com/callcenter-console/internal/models"
)

type Section string

const (
	SectionDashboard Section = "dashboard"
	SectionCalls     Section = "calls"
	SectionEmployees Section = "employees"
	SectionReports   Section = "reports"
	SectionClients   Section = "clients"
	SectionSettings  Section = "settings"
)

// Sections lists the navigation entries in menu order.
var Sections = []Section{
	SectionDashboard,
	SectionCalls,
	SectionEmployees,
	SectionReports,
	SectionClients,
	SectionSettings,
}

func (s Section) Valid() bool {
	for _, known := range Sections {
		if s == known {
			return true
		}
	}
	return false
}

type Dialog string

const (
	DialogNone       Dialog = ""
	DialogCreateUser Dialog = "create-user"
	DialogEditUser   Dialog = "edit-user"
	DialogDial       Dialog = "dial"
)

// NewUserDraft collects the fields of a user that does not exist yet.
type NewUserDraft struct {
	Username       string
	Password       string
	FullName       string
	Role           models.Role
	PhoneExtension string
}

// Snapshot is a copy of the console state; changing it has no effect.
type Snapshot struct {
	State       SessionState
	CurrentUser *models.User
	Users       []models.User
	Calls       []models.Call
	Section     Section
	Dialog      Dialog
	NewUser     NewUserDraft
	EditUser    *models.User
	DialBuffer  string
	Polling     bool

	// CanManageUsers only decides what the view offers. Commands do not
	// check it; the server is responsible for enforcement.
	CanManageUsers bool
}

func (c *Console) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:      c.state,
		Section:    c.section,
		Dialog:     c.dialog,
		NewUser:    c.newUser,
		DialBuffer: c.dial,
		Polling:    c.poll != nil,
	}
	if c.user != nil {
		u := *c.user
		s.CurrentUser = &u
		s.CanManageUsers = u.Role == models.RoleSuperAdmin
	}
	if c.editUser != nil {
		u := *c.editUser
		s.EditUser = &u
	}
	if c.users != nil {
		s.Users = append([]models.User(nil), c.users...)
	}
	if c.calls != nil {
		s.Calls = append([]models.Call(nil), c.calls...)
	}
	return s
}

// Navigate switches the visible section.
func (c *Console) Navigate(section Section) error {
	if !section.Valid() {
		return fmt.Errorf("unknown section %q", section)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != LoggedIn {
		return ErrNotLoggedIn
	}
	c.section = section
	return nil
}

// OpenCreateUser opens the create dialog with an empty operator draft.
func (c *Console) OpenCreateUser() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != LoggedIn {
		return ErrNotLoggedIn
	}
	c.closeDialogLocked()
	c.dialog = DialogCreateUser
	c.newUser = NewUserDraft{Role: models.RoleOperator}
	return nil
}

// SetNewUserDraft replaces the create-user draft.
func (c *Console) SetNewUserDraft(d NewUserDraft) {
	c.mu.Lock()
	c.newUser = d
	c.mu.Unlock()
}

// OpenEditUser opens the edit dialog on a copy of a loaded user.
func (c *Console) OpenEditUser(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != LoggedIn {
		return ErrNotLoggedIn
	}
	u, ok := c.findUserLocked(id)
	if !ok {
		return ErrUnknownUser
	}
	c.closeDialogLocked()
	c.dialog = DialogEditUser
	c.editUser = &u
	return nil
}

// SetEditUserDraft replaces the edit draft. The id cannot be changed.
func (c *Console) SetEditUserDraft(u models.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editUser == nil {
		return ErrUnknownUser
	}
	u.ID = c.editUser.ID
	c.editUser = &u
	return nil
}

func (c *Console) OpenDial() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != LoggedIn {
		return ErrNotLoggedIn
	}
	c.closeDialogLocked()
	c.dialog = DialogDial
	return nil
}

func (c *Console) SetDialBuffer(number string) {
	c.mu.Lock()
	c.dial = number
	c.mu.Unlock()
}

// CloseDialog closes whatever dialog is open and discards its draft.
func (c *Console) CloseDialog() {
	c.mu.Lock()
	c.closeDialogLocked()
	c.mu.Unlock()
}

func (c *Console) closeDialogLocked() {
	c.dialog = DialogNone
	c.newUser = NewUserDraft{}
	c.editUser = nil
	c.dial = ""
}

func (c *Console) findUserLocked(id int64) (models.User, bool) {
	for _, u := range c.users {
		if u.ID == id {
			return u, true
		}
	}
	return models.User{}, false
}

func (c *Console) findCallLocked(id int64) (models.Call, bool) {
	for _, call := range c.calls {
		if call.ID == id {
			return call, true
		}
	}
	return models.Call{}, false
}

// Overview is the dashboard summary computed from the loaded collections.
type Overview struct {
	ActiveCalls     int
	QueuedCalls     int
	CompletedCalls  int
	OperatorsOnline int
	OperatorsTotal  int
	AvgDuration     time.Duration
}

func (s Snapshot) Overview() Overview {
	var o Overview
	var total int
	for _, call := range s.Calls {
		switch call.Status {
		case models.CallStatusActive:
			o.ActiveCalls++
		case models.CallStatusQueued:
			o.QueuedCalls++
		case models.CallStatusCompleted:
			o.CompletedCalls++
			total += call.Duration
		}
	}
	if o.CompletedCalls > 0 {
		o.AvgDuration = time.Duration(total) * time.Second / time.Duration(o.CompletedCalls)
	}
	for _, u := range s.Users {
		if u.Role != models.RoleOperator {
			continue
		}
		o.OperatorsTotal++
		if u.Status == models.UserStatusOnline {
			o.OperatorsOnline++
		}
	}
	return o
}
