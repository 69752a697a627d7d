// SPDX-License-Identifier: Apache-2.0

package spnego

import (
	"testing"

	"github.com/jcmturner/gofork/encoding/asn1"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/cryptobyte"

	"github.com/golang-auth/go-spnego/test"
)

func TestParseOid(t *testing.T) {
	assert := test.NewAssert(t)

	oid, err := ParseOid("1.2.840.113554.1.2.2")
	assert.NoErrorFatal(err)
	assert.Equal("1.2.840.113554.1.2.2", oid.String())
	assert.Equal(OidKRB5, oid)
	assert.True(oid.Equal(OidKRB5))
	assert.False(oid.IsZero())
	assert.True(Oid{}.IsZero())

	oid, err = ParseOid("2.999.3")
	assert.NoError(err)
	assert.Equal("2.999.3", oid.String())
}

func TestParseOidMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"1",
		"1..2",
		"1.2.",
		".1.2",
		"1.a.2",
		"-1.2",
		"1.+2",
		"01.2",
		"1.02",
		"3.1",
		"1.40",
		"0.99",
		"1.2.99999999999",
		"1.2.2147483648",
		"2.2147483600",
	} {
		t.Run(s, func(t *testing.T) {
			assert := test.NewAssert(t)

			_, err := ParseOid(s)
			assert.ErrorIs(err, ErrMalformedOid)

			var oe *MalformedOidError
			assert.ErrorAsFatal(err, &oe)
			assert.Equal(s, oe.Value)
			assert.NotEmpty(oe.Reason)
		})
	}
}

func TestOidLargeArcs(t *testing.T) {
	for _, s := range []string{"1.2.2147483647", "2.2147483567", "2.999.2147483647.1"} {
		t.Run(s, func(t *testing.T) {
			assert := test.NewAssert(t)

			oid, err := ParseOid(s)
			assert.NoErrorFatal(err)

			der := cryptobyte.String(oid.DER())
			got, ok := readOid(&der)
			assert.True(ok)
			assert.Equal(oid, got)
			assert.Empty(der)
		})
	}
}

func TestMustParseOid(t *testing.T) {
	assert.NotPanics(t, func() { MustParseOid("1.3.6.1.5.5.2") })
	assert.Panics(t, func() { MustParseOid("1.3.6.1.5.5.") })
}

func TestOidDER(t *testing.T) {
	assert.Equal(t, []byte{0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x12, 0x01, 0x02, 0x02}, OidKRB5.DER())
	assert.Equal(t, []byte{0x06, 0x09, 0x2a, 0x86, 0x48, 0x82, 0xf7, 0x12, 0x01, 0x02, 0x02}, OidMSKRB5.DER())
	assert.Equal(t, []byte{0x06, 0x06, 0x2b, 0x06, 0x01, 0x05, 0x05, 0x02}, OidSPNEGO.DER())
	assert.Nil(t, Oid{}.DER())
}

func TestOidASN1(t *testing.T) {
	assert := test.NewAssert(t)

	assert.True(OidSPNEGO.ASN1().Equal(asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 2}))

	oid, err := OidFromASN1(asn1.ObjectIdentifier{1, 2, 840, 48018, 1, 2, 2})
	assert.NoError(err)
	assert.Equal(OidMSKRB5, oid)

	_, err = OidFromASN1(asn1.ObjectIdentifier{5})
	assert.ErrorIs(err, ErrMalformedOid)
}
