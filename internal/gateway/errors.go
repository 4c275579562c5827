package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a failed exchange.
type Kind int

const (
	// KindServer: the server answered non-2xx with an error message.
	KindServer Kind = iota + 1
	// KindConnectivity: transport failure, or non-2xx without a message.
	KindConnectivity
	// KindSchema: a 2xx body that does not match the expected shape.
	KindSchema
)

func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindConnectivity:
		return "connectivity"
	case KindSchema:
		return "schema"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is returned by every failing Client method.
type Error struct {
	Kind    Kind
	Op      string // e.g. "login", "list users"
	Status  int    // HTTP status, 0 if no response was received
	Message string // server supplied text for KindServer
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindServer:
		return fmt.Sprintf("%s: server error %d: %s", e.Op, e.Status, e.Message)
	case e.Err != nil && e.Status != 0:
		return fmt.Sprintf("%s: %s error (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s error (status %d)", e.Op, e.Kind, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of a gateway error anywhere in err's chain.
func KindOf(err error) (Kind, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind, true
	}
	return 0, false
}

// ServerMessage returns the server supplied message of err, if any.
func ServerMessage(err error) (string, bool) {
	var ge *Error
	if errors.As(err, &ge) && ge.Kind == KindServer {
		return ge.Message, true
	}
	return "", false
}
