// SPDX-License-Identifier: Apache-2.0

package spnego

import (
	stdasn1 "encoding/asn1"
	"math"
	"strconv"
	"strings"

	"github.com/jcmturner/gofork/encoding/asn1"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Oid represents an ASN.1 object identifier naming a security mechanism.
//
// The value holds the canonical dotted-decimal form, so two Oid values are equal
// with == exactly when they name the same identifier.  The zero Oid is used to
// mean "absent" and cannot be produced by ParseOid.
type Oid struct {
	dotted string
}

// ParseOid parses a dotted-decimal object identifier such as "1.2.840.113554.1.2.2".
// A *MalformedOidError is returned if the string is not a canonical OID.  Arcs
// are limited to 31 bits, the range the DER decoder accepts.
func ParseOid(s string) (Oid, error) {
	arcs, reason := parseArcs(s)
	if reason != "" {
		return Oid{}, &MalformedOidError{Value: s, Reason: reason}
	}

	return oidFromArcs(arcs), nil
}

// MustParseOid is like ParseOid but panics if the string cannot be parsed.  It is
// intended for package level constants where a bad literal must abort start-up.
func MustParseOid(s string) Oid {
	oid, err := ParseOid(s)
	if err != nil {
		panic(err)
	}

	return oid
}

func parseArcs(s string) ([]int, string) {
	if s == "" {
		return nil, "empty identifier"
	}

	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return nil, "at least two arcs are required"
	}

	arcs := make([]int, len(parts))
	for i, p := range parts {
		if p == "" {
			return nil, "empty arc"
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return nil, "arcs must be decimal numbers"
			}
		}
		if len(p) > 1 && p[0] == '0' {
			return nil, "arcs must not have leading zeros"
		}

		v, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return nil, "arc out of range"
		}
		arcs[i] = int(v)
	}

	if arcs[0] > 2 {
		return nil, "first arc must be 0, 1 or 2"
	}
	if arcs[0] < 2 && arcs[1] >= 40 {
		return nil, "second arc must be less than 40"
	}
	// the first two arcs share one subidentifier
	if arcs[0] == 2 && arcs[1] > math.MaxInt32-80 {
		return nil, "arc out of range"
	}

	return arcs, ""
}

func oidFromArcs(arcs []int) Oid {
	parts := make([]string, len(arcs))
	for i, a := range arcs {
		parts[i] = strconv.Itoa(a)
	}

	return Oid{dotted: strings.Join(parts, ".")}
}

// OidFromASN1 converts a gokrb5-style object identifier into an Oid.
func OidFromASN1(oid asn1.ObjectIdentifier) (Oid, error) {
	return ParseOid(oid.String())
}

// String returns the dotted-decimal form of the identifier.
func (o Oid) String() string {
	return o.dotted
}

func (o Oid) IsZero() bool {
	return o.dotted == ""
}

func (o Oid) Equal(other Oid) bool {
	return o.dotted == other.dotted
}

func (o Oid) arcs() []int {
	if o.IsZero() {
		return nil
	}

	// already validated when the Oid was constructed
	arcs, _ := parseArcs(o.dotted)
	return arcs
}

// ASN1 returns the identifier as a gofork ObjectIdentifier, which is the type used
// throughout gokrb5.
func (o Oid) ASN1() asn1.ObjectIdentifier {
	return asn1.ObjectIdentifier(o.arcs())
}

func (o Oid) stdASN1() stdasn1.ObjectIdentifier {
	return stdasn1.ObjectIdentifier(o.arcs())
}

// DER returns the complete DER encoding of the identifier, including the
// OBJECT IDENTIFIER tag and length octets.  It returns nil for the zero Oid.
func (o Oid) DER() []byte {
	if o.IsZero() {
		return nil
	}

	var b cryptobyte.Builder
	b.AddASN1ObjectIdentifier(o.stdASN1())

	return b.BytesOrPanic()
}

// readOid reads a DER encoded OBJECT IDENTIFIER from s.
func readOid(s *cryptobyte.String) (Oid, bool) {
	if !s.PeekASN1Tag(cbasn1.OBJECT_IDENTIFIER) {
		return Oid{}, false
	}

	var id stdasn1.ObjectIdentifier
	if !s.ReadASN1ObjectIdentifier(&id) {
		return Oid{}, false
	}

	oid, err := ParseOid(id.String())
	if err != nil {
		return Oid{}, false
	}

	return oid, true
}
