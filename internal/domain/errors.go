package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the closed classification of failures crossing the store boundary.
type ErrorKind string

const (
	KindNotConfigured      ErrorKind = "not_configured"
	KindInvalidKey         ErrorKind = "invalid_key"
	KindNotFound           ErrorKind = "not_found"
	KindDuplicateKey       ErrorKind = "duplicate_key"
	KindPermissionDenied   ErrorKind = "permission_denied"
	KindSessionExpired     ErrorKind = "session_expired"
	KindNetworkTransient   ErrorKind = "network_transient"
	KindInvariantViolation ErrorKind = "invariant_violation"
	KindUnknown            ErrorKind = "unknown"
)

var (
	ErrNotConfigured      = errors.New("not configured")
	ErrInvalidKey         = errors.New("invalid key")
	ErrNotFound           = errors.New("resource not found")
	ErrDuplicateKey       = errors.New("record already exists")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrSessionExpired     = errors.New("session expired")
	ErrNetworkTransient   = errors.New("transient network failure")
	ErrInvariantViolation = errors.New("allocation invariant violated")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrSubmitInProgress   = errors.New("submission already in progress")
	ErrNoSession          = errors.New("no active session")
)

var kindSentinels = map[ErrorKind]error{
	KindNotConfigured:      ErrNotConfigured,
	KindInvalidKey:         ErrInvalidKey,
	KindNotFound:           ErrNotFound,
	KindDuplicateKey:       ErrDuplicateKey,
	KindPermissionDenied:   ErrPermissionDenied,
	KindSessionExpired:     ErrSessionExpired,
	KindNetworkTransient:   ErrNetworkTransient,
	KindInvariantViolation: ErrInvariantViolation,
}

// StoreError carries the classification assigned at the store boundary.
type StoreError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func NewStoreError(op string, kind ErrorKind, err error) *StoreError {
	return &StoreError{Op: op, Kind: kind, Err: err}
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + string(e.Kind)
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrDuplicateKey) match a StoreError of that kind.
func (e *StoreError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf reports the taxonomy kind of err. Unclassified errors are KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

func IsRetryable(err error) bool {
	return KindOf(err) == KindNetworkTransient
}

// IsFatal reports kinds that end the current session or widget.
func (k ErrorKind) IsFatal() bool {
	switch k {
	case KindSessionExpired, KindPermissionDenied, KindNotConfigured, KindInvalidKey:
		return true
	}
	return false
}

const (
	ErrorDismissAfter   = 5 * time.Second
	SuccessDismissAfter = 3 * time.Second
)

// UserMessage is what the presentation layer shows for a failure.
type UserMessage struct {
	Kind         ErrorKind `json:"kind,omitempty"`
	Text         string    `json:"text"`
	Persistent   bool      `json:"persistent"`
	DismissAfter int64     `json:"dismissAfterMs,omitempty"`
}

var messageTexts = map[ErrorKind]string{
	KindNotConfigured:      "This tally display is not configured. Add an artist key to the URL.",
	KindInvalidKey:         "The artist key is not valid. Check the overlay URL.",
	KindNotFound:           "We could not find that song. Try again or contact the organizer.",
	KindDuplicateKey:       "You have already voted for this song. Please refresh.",
	KindPermissionDenied:   "You are not allowed to do that. Please sign in again.",
	KindSessionExpired:     "Your session has expired. Please sign in again.",
	KindNetworkTransient:   "Network error. Please check your connection and try again.",
	KindInvariantViolation: "Something went wrong with your votes. Please refresh.",
	KindUnknown:            "Something went wrong. Please try again.",
}

func MessageFor(kind ErrorKind) UserMessage {
	text, ok := messageTexts[kind]
	if !ok {
		kind = KindUnknown
		text = messageTexts[KindUnknown]
	}
	msg := UserMessage{Kind: kind, Text: text, Persistent: kind.IsFatal()}
	if !msg.Persistent {
		msg.DismissAfter = ErrorDismissAfter.Milliseconds()
	}
	return msg
}

func SuccessMessage(text string) UserMessage {
	return UserMessage{Text: text, DismissAfter: SuccessDismissAfter.Milliseconds()}
}

// SubmitNotice is the success text for a submit that committed points.
func SubmitNotice(points int) UserMessage {
	unit := "points"
	if points == 1 {
		unit = "point"
	}
	return SuccessMessage(fmt.Sprintf("Successfully voted with %d %s!", points, unit))
}
