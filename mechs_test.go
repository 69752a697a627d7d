// SPDX-License-Identifier: Apache-2.0

package spnego

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/golang-auth/go-spnego/test"
)

func TestSupportedOids(t *testing.T) {
	assert := test.NewAssert(t)

	oids := SupportedOids()
	assert.Equal([]Oid{OidSPNEGO, OidKRB5}, oids)

	// callers get their own copy
	oids[0] = OidNTLMSSP
	assert.Equal(OidSPNEGO, SupportedOids()[0])
}

func TestMechFromOid(t *testing.T) {
	assert := test.NewAssert(t)

	mech, err := MechFromOid(OidKRB5)
	assert.NoError(err)
	assert.Equal(MechKRB5, mech)
	assert.Equal("Kerberos 5", mech.String())
	assert.Equal("1.2.840.113554.1.2.2", mech.OidString())

	mech, err = MechFromOid(OidMSKRB5)
	assert.NoError(err)
	assert.Equal(MechKRB5, mech)
	assert.Equal(OidKRB5, mech.Oid())

	mech, err = MechFromOid(OidSPNEGO)
	assert.NoError(err)
	assert.Equal(MechSPNEGO, mech)

	_, err = MechFromOid(MustParseOid("1.2.3.4"))
	assert.ErrorIs(err, ErrBadMech)
}

func TestMechBounds(t *testing.T) {
	assert.Panics(t, func() { _ = _MECH_LAST.Oid() })
	assert.Panics(t, func() { _ = gssMechImpl(-1).String() })
}
