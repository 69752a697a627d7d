// SPDX-License-Identifier: Apache-2.0

package spnego

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// Decode parses a SPNEGO token.  The input may be a GSS-API InitialContextToken
// carrying a NegTokenInit (first byte 0x60), a bare [0] NegTokenInit (0xa0) or
// a [1] NegTokenTarg (0xa1).
//
// Structural problems are reported as *MalformedTokenError; a field tag outside
// the range defined for the token is reported as *InvalidFieldError.  The
// returned token never shares memory with b.
func Decode(b []byte) (NegotiationToken, error) {
	if len(b) == 0 {
		return nil, malformed("", "empty token")
	}

	switch b[0] {
	case byte(tagGSSInitialContext), byte(tagNegTokenInit):
		t, err := DecodeNegTokenInit(b)
		if err != nil {
			return nil, err
		}
		return t, nil
	case byte(tagNegTokenTarg):
		t, err := DecodeNegTokenTarg(b)
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	return nil, malformed("", "unrecognised token tag 0x%02x", b[0])
}

// DecodeNegTokenInit parses a NegTokenInit, with or without the GSS-API framing.
func DecodeNegTokenInit(b []byte) (*NegTokenInit, error) {
	if len(b) == 0 {
		return nil, malformed(nameNegTokenInit, "empty token")
	}

	s := cryptobyte.String(b)
	if b[0] != byte(tagGSSInitialContext) {
		return decodeNegTokenInit(s)
	}

	mech, inner, err := readInitialContextToken(s)
	if err != nil {
		return nil, err
	}
	if mech != OidSPNEGO {
		return nil, &MalformedTokenError{Token: nameNegTokenInit, Err: fmt.Errorf("%w: %s", ErrBadMech, mech)}
	}

	return decodeNegTokenInit(inner)
}

// DecodeNegTokenTarg parses a [1] NegTokenTarg.
func DecodeNegTokenTarg(b []byte) (*NegTokenTarg, error) {
	return decodeNegTokenTarg(cryptobyte.String(b))
}

// Encode returns the wire form of t; see NegTokenInit.Marshal and NegTokenTarg.Marshal.
func Encode(t NegotiationToken) ([]byte, error) {
	if t == nil {
		return nil, errors.New("cannot encode a nil token")
	}

	return t.Marshal()
}

// PeekMech returns the mechanism OID of a GSS-API InitialContextToken without
// decoding the mechanism-specific part.  It is used to spot bare Kerberos tokens
// sent in place of a SPNEGO token.
func PeekMech(b []byte) (Oid, error) {
	mech, _, err := readInitialContextToken(cryptobyte.String(b))
	return mech, err
}

func readInitialContextToken(s cryptobyte.String) (Oid, cryptobyte.String, error) {
	var inner cryptobyte.String
	if !s.ReadASN1(&inner, tagGSSInitialContext) {
		return Oid{}, nil, malformed("InitialContextToken", "missing or truncated [APPLICATION 0] wrapper")
	}
	if !s.Empty() {
		return Oid{}, nil, malformed("InitialContextToken", "trailing data after token")
	}

	mech, ok := readOid(&inner)
	if !ok {
		return Oid{}, nil, malformed("InitialContextToken", "invalid thisMech OBJECT IDENTIFIER")
	}

	return mech, inner, nil
}
