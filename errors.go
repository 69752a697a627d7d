// SPDX-License-Identifier: Apache-2.0

package spnego

import (
	"errors"
	"fmt"
	"strconv"
)

// Sentinel values matched by the typed errors below, for use with errors.Is.
var (
	ErrMalformedOid      = errors.New("malformed object identifier")
	ErrUnsupportedScheme = errors.New("unsupported authorization scheme")
	ErrInvalidField      = errors.New("invalid token field")
	ErrMalformedToken    = errors.New("malformed token")
)

// GSS routine errors returned by the negotiator and mechanism adapters.
var ErrBadMech = errors.New("an unsupported mechanism was requested")
var ErrBadBindings = errors.New("incorrect channel bindings were supplied")
var ErrNoCred = errors.New("no credentials were supplied, or the credentials were unavailable or inaccessible")
var ErrDefectiveToken = errors.New("invalid token was supplied")
var ErrDefectiveCredential = errors.New("invalid credential was supplied")
var ErrCredentialsExpired = errors.New("the referenced credentials have expired")
var ErrFailure = errors.New("unspecified GSS failure")
var ErrUnauthorized = errors.New("the operation is forbidden by local security policy")

// MalformedOidError is returned when a string is not a canonical dotted-decimal OID.
type MalformedOidError struct {
	Value  string
	Reason string
}

func (e *MalformedOidError) Error() string {
	return fmt.Sprintf("malformed object identifier %q: %s", e.Value, e.Reason)
}

func (e *MalformedOidError) Is(target error) bool {
	return target == ErrMalformedOid
}

// UnsupportedSchemeError is returned by ParseAuthHeader for a header that does
// not carry a Negotiate or Basic credential.
type UnsupportedSchemeError struct {
	Header string
}

func (e *UnsupportedSchemeError) Error() string {
	return "unsupported authorization scheme in header " + strconv.Quote(e.Header)
}

func (e *UnsupportedSchemeError) Is(target error) bool {
	return target == ErrUnsupportedScheme
}

// InvalidFieldError reports a context-specific field tag that is not defined
// for the token being decoded.
type InvalidFieldError struct {
	Token string // NegTokenInit or NegTokenTarg
	Tag   int
}

func (e *InvalidFieldError) Error() string {
	if e.Token == "" {
		return "invalid token field [" + strconv.Itoa(e.Tag) + "]"
	}
	return "invalid " + e.Token + " field [" + strconv.Itoa(e.Tag) + "]"
}

func (e *InvalidFieldError) Is(target error) bool {
	return target == ErrInvalidField
}

// MalformedTokenError is returned when a token cannot be decoded.  The wrapped
// error carries the detail.
type MalformedTokenError struct {
	Token string
	Err   error
}

func (e *MalformedTokenError) Error() string {
	s := "malformed token"
	if e.Token != "" {
		s = "malformed " + e.Token
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}

	return s
}

func (e *MalformedTokenError) Unwrap() error {
	return e.Err
}

func (e *MalformedTokenError) Is(target error) bool {
	return target == ErrMalformedToken
}

func malformed(token, format string, args ...any) error {
	return &MalformedTokenError{Token: token, Err: fmt.Errorf(format, args...)}
}
