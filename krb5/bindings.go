// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"crypto/md5" //nolint:gosec // RFC 4121 mandates MD5 for the Bnd field
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	spnego "github.com/golang-auth/go-spnego"
)

// channelBindingHash computes the Bnd field of the GSSAPI checksum, RFC 4121
// § 4.1.1.2.  Initiator and acceptor addresses are always null.
func channelBindingHash(binding *spnego.ChannelBinding) [16]byte {
	// initiator addrtype + length, acceptor addrtype + length, application data length
	buf := make([]byte, 20, 20+len(binding.Data))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(binding.Data)))
	buf = append(buf, binding.Data...)

	return md5.Sum(buf) //nolint:gosec
}

// verifyChannelBinding checks the Bnd field sent by the initiator.  An unbound
// initiator (all zero Bnd) is accepted unless the binding is required.
func verifyChannelBinding(bnd [16]byte, binding *spnego.ChannelBinding) error {
	if binding == nil {
		return nil
	}

	if bnd == ([16]byte{}) {
		if binding.Required {
			return fmt.Errorf("%w: initiator did not supply channel bindings", spnego.ErrBadBindings)
		}
		return nil
	}

	want := channelBindingHash(binding)
	if subtle.ConstantTimeCompare(want[:], bnd[:]) != 1 {
		return spnego.ErrBadBindings
	}

	return nil
}
