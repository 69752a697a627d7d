// SPDX-License-Identifier: Apache-2.0

package spnego

// Well known mechanism and pseudo-mechanism object identifiers.
var (
	OidSPNEGO  = MustParseOid("1.3.6.1.5.5.2")
	OidKRB5    = MustParseOid("1.2.840.113554.1.2.2")
	OidMSKRB5  = MustParseOid("1.2.840.48018.1.2.2") // Microsoft's mistaken encoding of the Kerberos OID
	OidIAKERB  = MustParseOid("1.3.6.1.5.2.5")
	OidNTLMSSP = MustParseOid("1.3.6.1.4.1.311.2.2.10")
)

// SupportedOids returns the mechanisms this package can receive tokens for.  Kerberos
// is included alongside SPNEGO because some browsers (Chromium) answer a SPNEGO
// challenge with a bare Kerberos GSS token.  The caller owns the returned slice.
func SupportedOids() []Oid {
	return []Oid{OidSPNEGO, OidKRB5}
}

// GssMech describes a GSSAPI mechanism.  Mechanisms are identified by unique
// object identifiers (OIDs).
type GssMech interface {
	// Oid returns the object identifier corresponding to the mechanism.
	Oid() Oid
	// OidString returns a printable version of the object identifier associated with the mechanism.
	OidString() string
	// String returns a printable version of the mechanism name.
	String() string
}

// gssMechImpl implements GssMech for the well known mechanisms.
type gssMechImpl int

const (
	// Official Kerberos Mechanism (IETF)
	MechKRB5 gssMechImpl = iota
	MechIAKERB
	MechSPNEGO
	MechNTLMSSP
	_MECH_LAST
)

type mechInfo struct {
	oid     Oid
	altOids []Oid
	mech    string
}

var mechs = [...]mechInfo{
	MechKRB5:    {oid: OidKRB5, altOids: []Oid{OidMSKRB5}, mech: "Kerberos 5"},
	MechIAKERB:  {oid: OidIAKERB, mech: "IAKerb"},
	MechSPNEGO:  {oid: OidSPNEGO, mech: "SPNEGO"},
	MechNTLMSSP: {oid: OidNTLMSSP, mech: "NTLMSSP"},
}

func (mech gssMechImpl) Oid() Oid {
	if mech < 0 || mech >= _MECH_LAST {
		panic(ErrBadMech)
	}

	return mechs[mech].oid
}

func (mech gssMechImpl) OidString() string {
	return mech.Oid().String()
}

func (mech gssMechImpl) String() string {
	if mech < 0 || mech >= _MECH_LAST {
		panic(ErrBadMech)
	}

	return mechs[mech].mech
}

// MechFromOid returns the well known mechanism identified by oid.  Alternate
// identifiers, such as the Microsoft Kerberos OID, resolve to their canonical
// mechanism.
//
// Returns ErrBadMech if the OID is not recognized.
func MechFromOid(oid Oid) (GssMech, error) {
	for i, mech := range mechs {
		if mech.oid == oid {
			return gssMechImpl(i), nil
		}

		for _, alt := range mech.altOids {
			if alt == oid {
				return gssMechImpl(i), nil
			}
		}
	}

	return nil, ErrBadMech
}
