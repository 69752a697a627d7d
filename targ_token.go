// SPDX-License-Identifier: Apache-2.0

package spnego

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

const nameNegTokenTarg = "NegTokenTarg"

// NegTokenTarg is the acceptor's response token (negTokenResp in RFC 4178).
type NegTokenTarg struct {
	result        NegResult
	supportedMech Oid
	responseToken []byte
	mechListMIC   []byte
}

// TargOption sets an optional field of a NegTokenTarg.
type TargOption func(t *NegTokenTarg)

// WithSupportedMech sets the mechanism selected by the acceptor.
func WithSupportedMech(mech Oid) TargOption {
	return func(t *NegTokenTarg) {
		t.supportedMech = mech
	}
}

// WithResponseToken sets the mechanism token returned to the initiator.
func WithResponseToken(tok []byte) TargOption {
	return func(t *NegTokenTarg) {
		t.responseToken = append([]byte{}, tok...)
	}
}

// WithResponseMIC sets the mechListMIC field.
func WithResponseMIC(mic []byte) TargOption {
	return func(t *NegTokenTarg) {
		t.mechListMIC = append([]byte{}, mic...)
	}
}

// NewNegTokenTarg builds a NegTokenTarg.  Pass ResultUnspecified to omit negState.
func NewNegTokenTarg(result NegResult, opts ...TargOption) *NegTokenTarg {
	t := &NegTokenTarg{result: result}
	for _, o := range opts {
		o(t)
	}

	return t
}

func (*NegTokenTarg) negotiationToken() {}

func (t *NegTokenTarg) Result() NegResult {
	return t.result
}

// SupportedMech returns the selected mechanism; the zero Oid if absent.
func (t *NegTokenTarg) SupportedMech() Oid {
	return t.supportedMech
}

// ResponseToken returns the mechanism token, or nil if absent.
func (t *NegTokenTarg) ResponseToken() []byte {
	return cloneBytes(t.responseToken)
}

// MechListMIC returns the mechListMIC, or nil if absent.
func (t *NegTokenTarg) MechListMIC() []byte {
	return cloneBytes(t.mechListMIC)
}

// Marshal returns the [1] NegTokenTarg DER encoding.
func (t *NegTokenTarg) Marshal() ([]byte, error) {
	if t.result < ResultUnspecified {
		return nil, fmt.Errorf("cannot marshal NegTokenTarg: invalid negState %d", int(t.result))
	}

	var b cryptobyte.Builder
	b.AddASN1(tagNegTokenTarg, func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			if t.result != ResultUnspecified {
				b.AddASN1(fieldTag(0), func(b *cryptobyte.Builder) {
					b.AddASN1Enum(int64(t.result))
				})
			}
			if !t.supportedMech.IsZero() {
				b.AddASN1(fieldTag(1), func(b *cryptobyte.Builder) {
					b.AddASN1ObjectIdentifier(t.supportedMech.stdASN1())
				})
			}
			if t.responseToken != nil {
				b.AddASN1(fieldTag(2), func(b *cryptobyte.Builder) {
					b.AddASN1OctetString(t.responseToken)
				})
			}
			if t.mechListMIC != nil {
				b.AddASN1(fieldTag(3), func(b *cryptobyte.Builder) {
					b.AddASN1OctetString(t.mechListMIC)
				})
			}
		})
	})

	return b.Bytes()
}

type targBuilder struct {
	result        NegResult
	supportedMech Oid
	responseToken []byte
	mechListMIC   []byte
}

func (tb *targBuilder) build() *NegTokenTarg {
	return &NegTokenTarg{
		result:        tb.result,
		supportedMech: tb.supportedMech,
		responseToken: tb.responseToken,
		mechListMIC:   tb.mechListMIC,
	}
}

// decodeNegTokenTarg decodes a complete [1] NegTokenTarg TLV.
func decodeNegTokenTarg(s cryptobyte.String) (*NegTokenTarg, error) {
	var body, seq cryptobyte.String
	if !s.ReadASN1(&body, tagNegTokenTarg) {
		return nil, malformed(nameNegTokenTarg, "missing or truncated [1] wrapper")
	}
	if !s.Empty() {
		return nil, malformed(nameNegTokenTarg, "trailing data after token")
	}
	if !body.ReadASN1(&seq, cbasn1.SEQUENCE) || !body.Empty() {
		return nil, malformed(nameNegTokenTarg, "body is not a single SEQUENCE")
	}

	tb := targBuilder{result: ResultUnspecified}
	fr := newFieldReader(nameNegTokenTarg, seq)
	for fr.more() {
		tag, field, err := fr.next()
		if err != nil {
			return nil, err
		}

		switch tag {
		case 0:
			tb.result, err = readNegResult(field)
		case 1:
			tb.supportedMech, err = readOidField(nameNegTokenTarg, tag, field)
		case 2:
			tb.responseToken, err = readOctets(nameNegTokenTarg, tag, field)
		case 3:
			tb.mechListMIC, err = readOctets(nameNegTokenTarg, tag, field)
		default:
			err = &InvalidFieldError{Token: nameNegTokenTarg, Tag: tag}
		}
		if err != nil {
			return nil, err
		}
	}

	return tb.build(), nil
}

func readNegResult(field cryptobyte.String) (NegResult, error) {
	var v int
	if !field.ReadASN1Enum(&v) || !field.Empty() {
		return 0, malformed(nameNegTokenTarg, "negState is not a single ENUMERATED")
	}
	if v < 0 {
		return 0, malformed(nameNegTokenTarg, "negState %d is negative", v)
	}

	return NegResult(v), nil
}
