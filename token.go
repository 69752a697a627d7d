// SPDX-License-Identifier: Apache-2.0

package spnego

import (
	"strconv"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// NegotiationToken is the RFC 4178 NegotiationToken CHOICE.  It is implemented
// only by *NegTokenInit and *NegTokenTarg.
type NegotiationToken interface {
	// Marshal returns the DER encoding of the token as sent on the wire.
	Marshal() ([]byte, error)

	negotiationToken()
}

// NegResult is the negState of a NegTokenTarg.
type NegResult int

const (
	ResultUnspecified NegResult = -1 // the field was absent
	AcceptCompleted   NegResult = 0
	AcceptIncomplete  NegResult = 1
	Reject            NegResult = 2
	RequestMIC        NegResult = 3
)

func (r NegResult) String() string {
	switch r {
	case ResultUnspecified:
		return "unspecified"
	case AcceptCompleted:
		return "accept-completed"
	case AcceptIncomplete:
		return "accept-incomplete"
	case Reject:
		return "reject"
	case RequestMIC:
		return "request-mic"
	}

	return "NegResult(" + strconv.Itoa(int(r)) + ")"
}

const (
	tagGSSInitialContext = cbasn1.Tag(0x60) // [APPLICATION 0] constructed
	maxFieldTag          = 3
)

var (
	tagNegTokenInit = cbasn1.Tag(0).ContextSpecific().Constructed()
	tagNegTokenTarg = cbasn1.Tag(1).ContextSpecific().Constructed()
)

func fieldTag(n int) cbasn1.Tag {
	return cbasn1.Tag(n).ContextSpecific().Constructed()
}

// fieldReader walks the explicitly tagged fields of a NegTokenInit or
// NegTokenTarg SEQUENCE.
type fieldReader struct {
	token string
	seq   cryptobyte.String
	last  int
}

func newFieldReader(token string, seq cryptobyte.String) *fieldReader {
	return &fieldReader{token: token, seq: seq, last: -1}
}

func (r *fieldReader) more() bool {
	return !r.seq.Empty()
}

// next returns the tag number and the content of the next field.  The tag
// number is range-checked before anything else about the field.
func (r *fieldReader) next() (int, cryptobyte.String, error) {
	if len(r.seq) == 0 {
		return 0, nil, malformed(r.token, "unexpected end of fields")
	}

	id := r.seq[0]
	if id&0xc0 != 0x80 {
		return 0, nil, malformed(r.token, "field has tag 0x%02x, expected a context-specific tag", id)
	}

	num, ok := tagNumber(r.seq)
	if !ok {
		return 0, nil, malformed(r.token, "truncated field tag")
	}
	if num > maxFieldTag {
		return 0, nil, &InvalidFieldError{Token: r.token, Tag: num}
	}
	if id&0x20 == 0 {
		return 0, nil, malformed(r.token, "field [%d] is not constructed", num)
	}
	if num <= r.last {
		return 0, nil, malformed(r.token, "field [%d] follows field [%d]", num, r.last)
	}

	var content cryptobyte.String
	if !r.seq.ReadASN1(&content, fieldTag(num)) {
		return 0, nil, malformed(r.token, "field [%d] is truncated or has an invalid length", num)
	}
	r.last = num

	return num, content, nil
}

// tagNumber returns the tag number of the identifier octets at the start of s,
// including the high-tag-number form.
func tagNumber(s []byte) (int, bool) {
	if len(s) == 0 {
		return 0, false
	}
	if s[0]&0x1f != 0x1f {
		return int(s[0] & 0x1f), true
	}

	n := 0
	for i := 1; i < len(s) && i < 5; i++ {
		if i == 1 && s[i] == 0x80 {
			return 0, false
		}
		n = n<<7 | int(s[i]&0x7f)
		if s[i]&0x80 == 0 {
			return n, true
		}
	}

	return 0, false
}

// readOctets reads an OCTET STRING that must be the only content of a field.
// The result is a copy and is never nil.
func readOctets(token string, tag int, field cryptobyte.String) ([]byte, error) {
	var v cryptobyte.String
	if !field.ReadASN1(&v, cbasn1.OCTET_STRING) || !field.Empty() {
		return nil, malformed(token, "field [%d] is not a single OCTET STRING", tag)
	}

	out := make([]byte, len(v))
	copy(out, v)

	return out, nil
}

// readOidField reads an OBJECT IDENTIFIER that must be the only content of a field.
func readOidField(token string, tag int, field cryptobyte.String) (Oid, error) {
	oid, ok := readOid(&field)
	if !ok || !field.Empty() {
		return Oid{}, malformed(token, "field [%d] is not a single OBJECT IDENTIFIER", tag)
	}

	return oid, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	out := make([]byte, len(b))
	copy(out, b)

	return out
}
