// SPDX-License-Identifier: Apache-2.0

package spnego

import "bytes"

// Some JDK releases (JDK-8078439) emit the Microsoft Kerberos OID ahead of the
// standard Kerberos OID in the mechTypes of their NegTokenInit, in a fixed layout.
const (
	jdkPatternOffset = 24
	jdkOidLen        = 11
	jdkMinTokenLen   = 48
)

var jdkBadMechPattern = []byte{
	0x06, 0x09, 0x2a, 0x86, 0x48, 0x82, 0xf7, 0x12, 0x01, 0x02, 0x02, // 1.2.840.48018.1.2.2
	0x06, 0x09, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x12, 0x01, 0x02, 0x02, // 1.2.840.113554.1.2.2
}

// FixJDKRegression swaps the two Kerberos mechanism OIDs of a token produced by
// an affected JDK.  Only an exact match of the known layout is rewritten, in which
// case a new buffer is returned; any other input is returned as is.
func FixJDKRegression(token []byte) []byte {
	if len(token) < jdkMinTokenLen {
		return token
	}

	end := jdkPatternOffset + len(jdkBadMechPattern)
	if !bytes.Equal(token[jdkPatternOffset:end], jdkBadMechPattern) {
		return token
	}

	mid := jdkPatternOffset + jdkOidLen
	fixed := make([]byte, len(token))
	copy(fixed, token[:jdkPatternOffset])
	copy(fixed[jdkPatternOffset:], token[mid:end])
	copy(fixed[jdkPatternOffset+jdkOidLen:], token[jdkPatternOffset:mid])
	copy(fixed[end:], token[end:])

	return fixed
}
