// Package oerror holds the OAuth2 protocol error taxonomy and its wire forms.
package oerror

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/Seann-Moser/oauth2core/utils"
)

// Error is a protocol error. Treat it as immutable; WithState and
// WithDescription return copies.
type Error struct {
	Code        Code
	Description string
	URI         string
	State       string
}

var (
	ErrInvalidRequest          = &Error{Code: InvalidRequest}
	ErrUnauthorizedClient      = &Error{Code: UnauthorizedClient}
	ErrAccessDenied            = &Error{Code: AccessDenied}
	ErrUnsupportedResponseType = &Error{Code: UnsupportedResponseType}
	ErrInvalidScope            = &Error{Code: InvalidScope}
	ErrServerError             = &Error{Code: ServerError}
	ErrTemporarilyUnavailable  = &Error{Code: TemporarilyUnavailable}
	ErrInvalidClient           = &Error{Code: InvalidClient}
	ErrInvalidGrant            = &Error{Code: InvalidGrant}
	ErrUnsupportedGrantType    = &Error{Code: UnsupportedGrantType}
	ErrUnsupportedTokenType    = &Error{Code: UnsupportedTokenType}
	ErrInvalidToken            = &Error{Code: InvalidToken}
	ErrInsufficientScope       = &Error{Code: InsufficientScope}
)

// New creates an error with the given code and description.
func New(code Code, description string) *Error {
	return &Error{Code: code, Description: description}
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code.String()
	}
	return e.Code.String() + ": " + e.Description
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithState returns a copy carrying the echoed state.
func (e *Error) WithState(state string) *Error {
	c := *e
	c.State = state
	return &c
}

// WithDescription returns a copy with a new description.
func (e *Error) WithDescription(description string) *Error {
	c := *e
	c.Description = description
	return &c
}

// Pairs returns the ordered key/value pairs of the error:
// error, error_description, error_uri, state. Empty values are left out.
func (e *Error) Pairs() utils.Params {
	p := utils.Params{{Key: "error", Value: e.Code.String()}}
	if e.Description != "" {
		p = append(p, utils.Param{Key: "error_description", Value: e.Description})
	}
	if e.URI != "" {
		p = append(p, utils.Param{Key: "error_uri", Value: e.URI})
	}
	if e.State != "" {
		p = append(p, utils.Param{Key: "state", Value: e.State})
	}
	return p
}

// URLEncoded is the form-encoded representation of Pairs.
func (e *Error) URLEncoded() string {
	return e.Pairs().Encode()
}

// JSON renders Pairs as a JSON object, keys in order.
func (e *Error) JSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, kv := range e.Pairs() {
		if i > 0 {
			b.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		b.Write(k)
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// FromParams reads an error response. ok is false when no error parameter is present.
func FromParams(v url.Values) (*Error, bool) {
	name := v.Get("error")
	if name == "" {
		return nil, false
	}
	code, known := ParseCode(name)
	if !known {
		code = ServerError
	}
	e := &Error{
		Code:        code,
		Description: v.Get("error_description"),
		URI:         v.Get("error_uri"),
		State:       v.Get("state"),
	}
	if !known && e.Description == "" {
		e.Description = name
	}
	return e, true
}

// From maps any error raised by a host callback to the nearest protocol error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(TemporarilyUnavailable, "")
	}
	return New(ServerError, "")
}
