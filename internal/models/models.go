package models

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

type Role string

const (
	RoleOperator   Role = "operator"
	RoleSuperAdmin Role = "super_admin"
)

func (r Role) Valid() bool {
	return r == RoleOperator || r == RoleSuperAdmin
}

type UserStatus string

const (
	UserStatusOnline  UserStatus = "online"
	UserStatusOffline UserStatus = "offline"
	UserStatusBusy    UserStatus = "busy"
	UserStatusBreak   UserStatus = "break"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusOnline, UserStatusOffline, UserStatusBusy, UserStatusBreak:
		return true
	}
	return false
}

type CallStatus string

const (
	CallStatusActive    CallStatus = "active"
	CallStatusCompleted CallStatus = "completed"
	CallStatusQueued    CallStatus = "queued"
)

// User is an employee of the contact center. The id is assigned by the
// server and never changes.
type User struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	FullName       string     `json:"full_name"`
	Role           Role       `json:"role"`
	Status         UserStatus `json:"status"`
	PhoneExtension string     `json:"phone_extension"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

// Call references its operator by display name only.
type Call struct {
	ID           int64      `json:"id"`
	CallerNumber string     `json:"caller_number"`
	OperatorName *string    `json:"operator_name"`
	Status       CallStatus `json:"status"`
	Duration     int        `json:"duration"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Notes        string     `json:"notes"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateUserRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	FullName       string `json:"full_name"`
	Role           Role   `json:"role,omitempty"`
	PhoneExtension string `json:"phone_extension"`
}

type CreateUserResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// UpdateUserRequest only touches the fields that are present in the body.
type UpdateUserRequest struct {
	ID             int64       `json:"id"`
	Username       *string     `json:"username,omitempty"`
	Password       *string     `json:"password,omitempty"`
	FullName       *string     `json:"full_name,omitempty"`
	Role           *Role       `json:"role,omitempty"`
	Status         *UserStatus `json:"status,omitempty"`
	PhoneExtension *string     `json:"phone_extension,omitempty"`
}

const (
	ActionInitiate = "initiate"
	ActionEnd      = "end"
)

type CallActionRequest struct {
	Action       string `json:"action"`
	CallerNumber string `json:"caller_number,omitempty"`
	CallID       int64  `json:"call_id,omitempty"`
	Duration     int    `json:"duration,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

type EndCallRequest struct {
	CallID   int64  `json:"call_id"`
	Duration int    `json:"duration"`
	Notes    string `json:"notes"`
}

type InitiateCallResult struct {
	CallID     int64  `json:"call_id"`
	OperatorID *int64 `json:"operator_id,omitempty"`
	Message    string `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Statistics is the server-side dashboard summary.
type Statistics struct {
	ActiveCalls     int       `json:"active_calls"`
	QueuedCalls     int       `json:"queued_calls"`
	CallsToday      int       `json:"calls_today"`
	CompletedToday  int       `json:"completed_today"`
	OperatorsOnline int       `json:"operators_online"`
	OperatorsTotal  int       `json:"operators_total"`
	AvgDuration     float64   `json:"avg_duration"`
	Timestamp       time.Time `json:"timestamp"`
}

// NormalizeUsername trims the name and folds it to NFC so that visually
// identical logins compare equal.
func NormalizeUsername(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
