// SPDX-License-Identifier: Apache-2.0

package spnego

import (
	"encoding/asn1"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

const nameNegTokenInit = "NegTokenInit"

// NegTokenInit is the initiator's first SPNEGO token.  Values are immutable;
// build them with NewNegTokenInit or Decode.
type NegTokenInit struct {
	mechTypes   []Oid
	reqFlags    *asn1.BitString
	mechToken   []byte
	mechListMIC []byte
}

// InitOption sets an optional field of a NegTokenInit.
type InitOption func(t *NegTokenInit)

// WithMechTypes sets the preference-ordered list of offered mechanisms.
func WithMechTypes(mechs ...Oid) InitOption {
	return func(t *NegTokenInit) {
		t.mechTypes = append([]Oid{}, mechs...)
	}
}

// WithReqFlags sets the raw reqFlags BIT STRING.  Bits past BitLength are
// cleared, DER requires the padding to be zero.
func WithReqFlags(flags asn1.BitString) InitOption {
	return func(t *NegTokenInit) {
		t.reqFlags = &asn1.BitString{Bytes: cloneBytes(flags.Bytes), BitLength: flags.BitLength}
		if t.reqFlags.Bytes == nil {
			t.reqFlags.Bytes = []byte{}
		}

		n := len(t.reqFlags.Bytes)
		if padding := n*8 - t.reqFlags.BitLength; n > 0 && padding > 0 && padding < 8 {
			t.reqFlags.Bytes[n-1] &= 0xff << padding
		}
	}
}

// WithContextFlags sets reqFlags from GSS-API context flags.
func WithContextFlags(flags ContextFlag) InitOption {
	return WithReqFlags(flags.ReqFlags())
}

// WithMechToken sets the optimistic token of the first offered mechanism.
func WithMechToken(tok []byte) InitOption {
	return func(t *NegTokenInit) {
		t.mechToken = append([]byte{}, tok...)
	}
}

// WithMechListMIC sets the mechListMIC field.
func WithMechListMIC(mic []byte) InitOption {
	return func(t *NegTokenInit) {
		t.mechListMIC = append([]byte{}, mic...)
	}
}

// NewNegTokenInit builds a NegTokenInit.  Fields not set by an option are absent.
func NewNegTokenInit(opts ...InitOption) *NegTokenInit {
	t := &NegTokenInit{}
	for _, o := range opts {
		o(t)
	}

	return t
}

func (*NegTokenInit) negotiationToken() {}

// MechTypes returns the offered mechanisms, or nil if the field is absent.
func (t *NegTokenInit) MechTypes() []Oid {
	return slices.Clone(t.mechTypes)
}

// ReqFlags returns the reqFlags BIT STRING and whether it was present.
func (t *NegTokenInit) ReqFlags() (asn1.BitString, bool) {
	if t.reqFlags == nil {
		return asn1.BitString{}, false
	}

	return asn1.BitString{Bytes: cloneBytes(t.reqFlags.Bytes), BitLength: t.reqFlags.BitLength}, true
}

// ContextFlags interprets reqFlags as GSS-API context flags.
func (t *NegTokenInit) ContextFlags() ContextFlag {
	if t.reqFlags == nil {
		return 0
	}

	return FlagsFromReqFlags(*t.reqFlags)
}

// MechToken returns the embedded mechanism token, or nil if absent.
func (t *NegTokenInit) MechToken() []byte {
	return cloneBytes(t.mechToken)
}

// MechListMIC returns the mechListMIC, or nil if absent.
func (t *NegTokenInit) MechListMIC() []byte {
	return cloneBytes(t.mechListMIC)
}

// MechListBytes returns the DER encoding of the MechTypeList, the input to the
// mechListMIC.  It returns nil when mechTypes is absent.
func (t *NegTokenInit) MechListBytes() ([]byte, error) {
	if t.mechTypes == nil {
		return nil, nil
	}

	var b cryptobyte.Builder
	addMechList(&b, t.mechTypes)

	return b.Bytes()
}

// Marshal returns the token wrapped in a GSS-API InitialContextToken carrying
// the SPNEGO mechanism OID, which is the form sent in an Authorization header.
func (t *NegTokenInit) Marshal() ([]byte, error) {
	for _, m := range t.mechTypes {
		if m.IsZero() {
			return nil, errors.New("cannot marshal NegTokenInit: empty mechanism OID")
		}
	}
	if err := checkBitString(t.reqFlags); err != nil {
		return nil, err
	}

	var b cryptobyte.Builder
	b.AddASN1(tagGSSInitialContext, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(OidSPNEGO.stdASN1())
		t.build(b)
	})

	return b.Bytes()
}

// MarshalRaw returns the bare [0] NegTokenInit without the GSS-API framing.
func (t *NegTokenInit) MarshalRaw() ([]byte, error) {
	if err := checkBitString(t.reqFlags); err != nil {
		return nil, err
	}

	var b cryptobyte.Builder
	t.build(&b)

	return b.Bytes()
}

func (t *NegTokenInit) build(b *cryptobyte.Builder) {
	b.AddASN1(tagNegTokenInit, func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			if t.mechTypes != nil {
				b.AddASN1(fieldTag(0), func(b *cryptobyte.Builder) {
					addMechList(b, t.mechTypes)
				})
			}
			if t.reqFlags != nil {
				b.AddASN1(fieldTag(1), func(b *cryptobyte.Builder) {
					addBitString(b, *t.reqFlags)
				})
			}
			if t.mechToken != nil {
				b.AddASN1(fieldTag(2), func(b *cryptobyte.Builder) {
					b.AddASN1OctetString(t.mechToken)
				})
			}
			if t.mechListMIC != nil {
				b.AddASN1(fieldTag(3), func(b *cryptobyte.Builder) {
					b.AddASN1OctetString(t.mechListMIC)
				})
			}
		})
	})
}

func addMechList(b *cryptobyte.Builder, mechs []Oid) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, m := range mechs {
			b.AddASN1ObjectIdentifier(m.stdASN1())
		}
	})
}

func addBitString(b *cryptobyte.Builder, bs asn1.BitString) {
	b.AddASN1(cbasn1.BIT_STRING, func(b *cryptobyte.Builder) {
		b.AddUint8(uint8(len(bs.Bytes)*8 - bs.BitLength))
		b.AddBytes(bs.Bytes)
	})
}

func checkBitString(bs *asn1.BitString) error {
	if bs == nil {
		return nil
	}

	padding := len(bs.Bytes)*8 - bs.BitLength
	if padding < 0 || padding > 7 || (len(bs.Bytes) == 0 && bs.BitLength != 0) {
		return fmt.Errorf("cannot marshal reqFlags: %d bits in %d bytes", bs.BitLength, len(bs.Bytes))
	}
	if padding > 0 && bs.Bytes[len(bs.Bytes)-1]&(1<<padding-1) != 0 {
		return errors.New("cannot marshal reqFlags: padding bits are set")
	}

	return nil
}

// initBuilder accumulates decoded fields; it is discarded once the token is built.
type initBuilder struct {
	mechTypes   []Oid
	reqFlags    *asn1.BitString
	mechToken   []byte
	mechListMIC []byte
}

func (ib *initBuilder) build() *NegTokenInit {
	return &NegTokenInit{
		mechTypes:   ib.mechTypes,
		reqFlags:    ib.reqFlags,
		mechToken:   ib.mechToken,
		mechListMIC: ib.mechListMIC,
	}
}

// decodeNegTokenInit decodes a complete [0] NegTokenInit TLV.
func decodeNegTokenInit(s cryptobyte.String) (*NegTokenInit, error) {
	var body, seq cryptobyte.String
	if !s.ReadASN1(&body, tagNegTokenInit) {
		return nil, malformed(nameNegTokenInit, "missing or truncated [0] wrapper")
	}
	if !s.Empty() {
		return nil, malformed(nameNegTokenInit, "trailing data after token")
	}
	if !body.ReadASN1(&seq, cbasn1.SEQUENCE) || !body.Empty() {
		return nil, malformed(nameNegTokenInit, "body is not a single SEQUENCE")
	}

	var ib initBuilder
	fr := newFieldReader(nameNegTokenInit, seq)
	for fr.more() {
		tag, field, err := fr.next()
		if err != nil {
			return nil, err
		}

		switch tag {
		case 0:
			ib.mechTypes, err = readMechList(field)
		case 1:
			ib.reqFlags, err = readReqFlags(field)
		case 2:
			ib.mechToken, err = readOctets(nameNegTokenInit, tag, field)
		case 3:
			ib.mechListMIC, err = readOctets(nameNegTokenInit, tag, field)
		default:
			err = &InvalidFieldError{Token: nameNegTokenInit, Tag: tag}
		}
		if err != nil {
			return nil, err
		}
	}

	return ib.build(), nil
}

func readMechList(field cryptobyte.String) ([]Oid, error) {
	var seq cryptobyte.String
	if !field.ReadASN1(&seq, cbasn1.SEQUENCE) || !field.Empty() {
		return nil, malformed(nameNegTokenInit, "mechTypes is not a single SEQUENCE")
	}

	mechs := []Oid{}
	for !seq.Empty() {
		oid, ok := readOid(&seq)
		if !ok {
			return nil, malformed(nameNegTokenInit, "mechTypes[%d] is not a valid OBJECT IDENTIFIER", len(mechs))
		}
		mechs = append(mechs, oid)
	}

	return mechs, nil
}

func readReqFlags(field cryptobyte.String) (*asn1.BitString, error) {
	var bs asn1.BitString
	if !field.ReadASN1BitString(&bs) || !field.Empty() {
		return nil, malformed(nameNegTokenInit, "reqFlags is not a single valid BIT STRING")
	}

	return &asn1.BitString{Bytes: append([]byte{}, bs.Bytes...), BitLength: bs.BitLength}, nil
}
