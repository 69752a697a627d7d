// SPDX-License-Identifier: Apache-2.0

package spnego

type registryEntry struct {
	oid      Oid
	acceptor Acceptor
}

// registry maps mechanism OIDs to acceptors, in registration order.
type registry struct {
	entries []registryEntry
}

// register adds the mechanisms of a.  An OID that is already registered keeps
// its original acceptor.
func (r *registry) register(a Acceptor) {
	for _, oid := range a.Mechs() {
		if r.find(oid) != nil {
			continue
		}

		r.entries = append(r.entries, registryEntry{oid: oid, acceptor: a})
	}
}

func (r *registry) find(oid Oid) Acceptor {
	for _, e := range r.entries {
		if e.oid == oid {
			return e.acceptor
		}
	}

	return nil
}

// lookup returns the acceptor for oid, also trying the canonical OID when oid is
// a known alternate such as the Microsoft Kerberos OID.
func (r *registry) lookup(oid Oid) Acceptor {
	if a := r.find(oid); a != nil {
		return a
	}

	mech, err := MechFromOid(oid)
	if err != nil || mech.Oid() == oid {
		return nil
	}

	return r.find(mech.Oid())
}

func (r *registry) oids() []Oid {
	l := make([]Oid, 0, len(r.entries))
	for _, e := range r.entries {
		l = append(l, e.oid)
	}

	return l
}
