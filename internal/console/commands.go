package console

import (
	"context"
	"strconv"
	"strings"

	"github.com/callcenter-console/internal/i18n"
	"github.com/callcenter-console/internal/models"
)

// Every command validates locally, makes one gateway call and, on success,
// closes its dialog, clears its draft and refetches what it changed. On
// failure the dialog and draft are kept so the operator can correct them.

// session returns the current epoch if logged in.
func (c *Console) session() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != LoggedIn {
		return 0, ErrNotLoggedIn
	}
	return c.epoch, nil
}

// fail reports a validation problem without touching the network.
func (c *Console) fail(field, msg string) error {
	c.notify(LevelError, msg)
	return &ValidationError{Field: field, Message: msg}
}

// CreateUser submits the create-user draft.
func (c *Console) CreateUser(ctx context.Context) error {
	epoch, err := c.session()
	if err != nil {
		return err
	}

	c.mu.Lock()
	d := c.newUser
	c.mu.Unlock()

	req := models.CreateUserRequest{
		Username:       models.NormalizeUsername(d.Username),
		Password:       d.Password,
		FullName:       strings.TrimSpace(d.FullName),
		Role:           d.Role,
		PhoneExtension: strings.TrimSpace(d.PhoneExtension),
	}
	if req.Username == "" || req.Password == "" || req.FullName == "" {
		return c.fail("user", c.text.Sprintf(i18n.MsgUserFieldsMissing))
	}
	if req.Role == "" {
		req.Role = models.RoleOperator
	}
	if !req.Role.Valid() {
		return c.fail("role", c.text.Sprintf(i18n.MsgInvalidRole, req.Role))
	}

	if _, err := c.gw.CreateUser(ctx, req); err != nil {
		c.notify(LevelError, c.describe(err))
		return err
	}

	c.mu.Lock()
	if c.epoch == epoch {
		c.newUser = NewUserDraft{}
		if c.dialog == DialogCreateUser {
			c.dialog = DialogNone
		}
	}
	c.mu.Unlock()

	c.notify(LevelSuccess, c.text.Sprintf(i18n.MsgUserCreated, req.FullName))
	c.refreshUsers(ctx, epoch)
	return nil
}

// UpdateUser submits the whole edit draft.
func (c *Console) UpdateUser(ctx context.Context) error {
	epoch, err := c.session()
	if err != nil {
		return err
	}

	c.mu.Lock()
	var u models.User
	draft := c.editUser != nil
	if draft {
		u = *c.editUser
	}
	c.mu.Unlock()

	if !draft {
		return c.fail("user", c.text.Sprintf(i18n.MsgNoUserSelected))
	}
	u.Username = models.NormalizeUsername(u.Username)
	u.FullName = strings.TrimSpace(u.FullName)
	if u.Username == "" || u.FullName == "" {
		return c.fail("user", c.text.Sprintf(i18n.MsgUserFieldsMissing))
	}
	if !u.Role.Valid() {
		return c.fail("role", c.text.Sprintf(i18n.MsgInvalidRole, u.Role))
	}

	if _, err := c.gw.UpdateUser(ctx, u); err != nil {
		c.notify(LevelError, c.describe(err))
		return err
	}

	c.mu.Lock()
	if c.epoch == epoch {
		c.editUser = nil
		if c.dialog == DialogEditUser {
			c.dialog = DialogNone
		}
	}
	c.mu.Unlock()

	c.notify(LevelSuccess, c.text.Sprintf(i18n.MsgUserUpdated, u.FullName))
	c.refreshUsers(ctx, epoch)
	return nil
}

// DeleteUser removes a user after confirm approves. Without approval no
// request is made.
func (c *Console) DeleteUser(ctx context.Context, id int64, confirm Confirmer) error {
	epoch, err := c.session()
	if err != nil {
		return err
	}

	c.mu.Lock()
	name := strconv.FormatInt(id, 10)
	if u, ok := c.findUserLocked(id); ok {
		name = u.FullName
	}
	c.mu.Unlock()

	if confirm == nil || !confirm.Confirm(c.text.Sprintf(i18n.MsgConfirmDelete, name)) {
		c.notify(LevelInfo, c.text.Sprintf(i18n.MsgDeleteCancelled))
		return ErrNotConfirmed
	}

	if err := c.gw.DeleteUser(ctx, id); err != nil {
		c.notify(LevelError, c.describe(err))
		return err
	}

	c.mu.Lock()
	if c.epoch == epoch && c.editUser != nil && c.editUser.ID == id {
		c.closeDialogLocked()
	}
	c.mu.Unlock()

	c.notify(LevelSuccess, c.text.Sprintf(i18n.MsgUserDeleted))
	c.refreshUsers(ctx, epoch)
	return nil
}

// InitiateCall dials the number in the dial buffer.
func (c *Console) InitiateCall(ctx context.Context) error {
	epoch, err := c.session()
	if err != nil {
		return err
	}

	c.mu.Lock()
	number := strings.TrimSpace(c.dial)
	c.mu.Unlock()

	if number == "" {
		return c.fail("number", c.text.Sprintf(i18n.MsgNumberMissing))
	}

	if _, err := c.gw.InitiateCall(ctx, number); err != nil {
		c.notify(LevelError, c.describe(err))
		return err
	}

	c.mu.Lock()
	if c.epoch == epoch {
		c.dial = ""
		if c.dialog == DialogDial {
			c.dialog = DialogNone
		}
	}
	c.mu.Unlock()

	c.notify(LevelSuccess, c.text.Sprintf(i18n.MsgCallPlaced, number))
	c.refreshCalls(ctx, epoch)
	return nil
}

// EndCall completes an active call. The duration is measured from the
// call's start; the operator is freed so users are refetched as well.
func (c *Console) EndCall(ctx context.Context, id int64, notes string) error {
	epoch, err := c.session()
	if err != nil {
		return err
	}

	c.mu.Lock()
	call, ok := c.findCallLocked(id)
	c.mu.Unlock()

	if !ok || call.Status != models.CallStatusActive {
		return c.fail("call", c.text.Sprintf(i18n.MsgCallNotActive, id))
	}

	// a call without a start time is ended with zero duration
	duration := 0
	if !call.StartedAt.IsZero() {
		duration = max(int(c.now().Sub(call.StartedAt).Seconds()), 0)
	}

	req := models.EndCallRequest{CallID: id, Duration: duration, Notes: strings.TrimSpace(notes)}
	if _, err := c.gw.EndCall(ctx, req); err != nil {
		c.notify(LevelError, c.describe(err))
		return err
	}

	c.notify(LevelSuccess, c.text.Sprintf(i18n.MsgCallEnded, id))
	c.fetchAll(ctx, epoch)
	return nil
}
