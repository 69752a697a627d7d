// SPDX-License-Identifier: Apache-2.0

package krb5

/*
 * Derived from github.com/jcmturner/gokrb5/v8/spnego/krb5Token.go
 *
 * The modified version marshals AP-REP and KRB-ERROR tokens for the acceptor,
 * accepts the Microsoft Kerberos OID, and moves verification out.
 */

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/jcmturner/gofork/encoding/asn1"
	"github.com/jcmturner/gokrb5/v8/asn1tools"
	"github.com/jcmturner/gokrb5/v8/messages"

	spnego "github.com/golang-auth/go-spnego"
)

// GSSAPI KRB5 MechToken IDs.
const (
	TOK_ID_KRB_AP_REQ = "0100"
	TOK_ID_KRB_AP_REP = "0200"
	TOK_ID_KRB_ERROR  = "0300"
)

// kRB5Token is the RFC 4121 section 4.1 framing of a Kerberos context token.
type kRB5Token struct {
	OID      asn1.ObjectIdentifier
	tokID    []byte
	APReq    *messages.APReq
	APRep    *aPRep
	KRBError *messages.KRBError
}

func newKRB5Token(oid spnego.Oid, tokID string) kRB5Token {
	tb, _ := hex.DecodeString(tokID)
	return kRB5Token{OID: oid.ASN1(), tokID: tb}
}

// marshal a KRB5Token into a slice of bytes.
func (m *kRB5Token) marshal() (outTok []byte, err error) {
	// Create the header
	b, err := asn1.Marshal(m.OID)
	if err != nil {
		return nil, fmt.Errorf("error marshalling KRB5Token OID: %w", err)
	}
	b = append(b, m.tokID...)

	var tb []byte
	switch hex.EncodeToString(m.tokID) {
	case TOK_ID_KRB_AP_REQ:
		tb, err = m.APReq.Marshal()
		if err != nil {
			err = fmt.Errorf("error marshalling AP-REQ for MechToken: %w", err)
		}
	case TOK_ID_KRB_AP_REP:
		tb, err = m.APRep.marshal()
		if err != nil {
			err = fmt.Errorf("error marshalling AP-REP for MechToken: %w", err)
		}
	case TOK_ID_KRB_ERROR:
		tb, err = m.KRBError.Marshal()
		if err != nil {
			err = fmt.Errorf("error marshalling KRB-ERROR for MechToken: %w", err)
		}
	default:
		err = fmt.Errorf("unknown KRB5Token ID %x", m.tokID)
	}
	if err != nil {
		return
	}
	b = append(b, tb...)

	outTok = asn1tools.AddASNAppTag(b, 0)
	return
}

// unmarshal a KRB5Token.  Both the standard and the Microsoft Kerberos OIDs
// are accepted.
func (m *kRB5Token) unmarshal(b []byte) error {
	m.APReq = nil
	m.APRep = nil
	m.KRBError = nil

	var oid asn1.ObjectIdentifier
	r, err := asn1.UnmarshalWithParams(b, &oid, fmt.Sprintf("application,explicit,tag:%v", 0))
	if err != nil {
		return fmt.Errorf("error unmarshalling KRB5Token OID: %w", err)
	}
	if !oid.Equal(spnego.OidKRB5.ASN1()) && !oid.Equal(spnego.OidMSKRB5.ASN1()) {
		return fmt.Errorf("error unmarshalling KRB5Token, OID is %s not %s", oid.String(), spnego.OidKRB5)
	}
	m.OID = oid
	if len(r) < 2 {
		return fmt.Errorf("krb5token too short")
	}
	m.tokID = r[0:2]
	switch hex.EncodeToString(m.tokID) {
	case TOK_ID_KRB_AP_REQ:
		var a messages.APReq
		err = a.Unmarshal(r[2:])
		if err != nil {
			return fmt.Errorf("error unmarshalling KRB5Token AP_REQ: %w", err)
		}
		m.APReq = &a
	case TOK_ID_KRB_AP_REP:
		var a aPRep
		err = a.unmarshal(r[2:])
		if err != nil {
			return fmt.Errorf("error unmarshalling KRB5Token AP_REP: %w", err)
		}
		m.APRep = &a
	case TOK_ID_KRB_ERROR:
		var a messages.KRBError
		err = a.Unmarshal(r[2:])
		if err != nil {
			return fmt.Errorf("error unmarshalling KRB5Token KRBError: %w", err)
		}
		m.KRBError = &a
	default:
		return fmt.Errorf("unknown KRB5Token ID %x", m.tokID)
	}
	return nil
}

// gssChecksumLen is the length of the GSSAPI authenticator checksum up to and
// including the context-establishment flags.
const gssChecksumLen = 24

// Create the GSSAPI checksum for the authenticator.  This isn't really
// a checksum, it is a way to carry GSSAPI level context infromation in
// the Kerberos AP-REQ message. See RFC 4121 § 4.1.1
func newAuthenticatorChksum(flags spnego.ContextFlag, binding *spnego.ChannelBinding) []byte {
	a := make([]byte, gssChecksumLen)

	// 4-byte length of "channel binding" info, always 16 bytes
	binary.LittleEndian.PutUint32(a[:4], 16)

	// Octets 4..19: Channel binding info, zero when unbound
	if binding != nil {
		bnd := channelBindingHash(binding)
		copy(a[4:20], bnd[:])
	}

	// Context-establishment flags
	binary.LittleEndian.PutUint32(a[20:24], uint32(flags))

	return a
}

// authenticatorChksum is the decoded GSSAPI authenticator checksum.
type authenticatorChksum struct {
	bnd   [16]byte
	flags spnego.ContextFlag
}

func parseAuthenticatorChksum(b []byte) (authenticatorChksum, error) {
	var c authenticatorChksum
	if len(b) < gssChecksumLen {
		return c, fmt.Errorf("GSSAPI checksum is %d bytes, need at least %d", len(b), gssChecksumLen)
	}
	if l := binary.LittleEndian.Uint32(b[:4]); l != 16 {
		return c, fmt.Errorf("GSSAPI checksum has channel binding length %d", l)
	}

	copy(c.bnd[:], b[4:20])
	c.flags = spnego.ContextFlag(binary.LittleEndian.Uint32(b[20:24]))

	return c, nil
}
