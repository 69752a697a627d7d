// SPDX-License-Identifier: Apache-2.0

package spnego

import (
	"encoding/asn1"
	"strings"
)

type ContextFlag uint32

// GSS-API context flags assigned numbers.
const (
	ContextFlagDeleg    ContextFlag = 1 << iota // delegate credentials, not currently supported
	ContextFlagMutual                           // request remote peer authenticates itself
	ContextFlagReplay                           // enable replay detection for signed/sealed messages
	ContextFlagSequence                         // enable detection of out of sequence signed/sealed messages
	ContextFlagConf                             // confidentiality available
	ContextFlagInteg                            // integrity available
	ContextFlagAnon                             // do not reveal the initiator's identity
)

// bit positions of the ContextFlags named bit list in RFC 4178 section 4.2.1
var reqFlagBits = []struct {
	flag ContextFlag
	bit  int
}{
	{ContextFlagDeleg, 0},
	{ContextFlagMutual, 1},
	{ContextFlagReplay, 2},
	{ContextFlagSequence, 3},
	{ContextFlagAnon, 4},
	{ContextFlagConf, 5},
	{ContextFlagInteg, 6},
}

func FlagList(f ContextFlag) (fl []ContextFlag) {
	t := ContextFlag(1)
	for i := 0; i < 32; i++ {
		if f&t != 0 {
			fl = append(fl, t)
		}

		t <<= 1
	}

	return
}

func FlagName(f ContextFlag) string {
	switch f {
	case ContextFlagDeleg:
		return "Delegation"
	case ContextFlagMutual:
		return "Mutual authentication"
	case ContextFlagReplay:
		return "Message replay detection"
	case ContextFlagSequence:
		return "Out of sequence message detection"
	case ContextFlagConf:
		return "Confidentiality"
	case ContextFlagInteg:
		return "Integrity"
	case ContextFlagAnon:
		return "Anonymous"
	}

	return "Unknown"
}

func (f ContextFlag) String() string {
	names := []string{}
	for _, fl := range FlagList(f) {
		names = append(names, FlagName(fl))
	}

	return strings.Join(names, ", ")
}

// ReqFlags converts the flags to the ContextFlags BIT STRING carried in a
// NegTokenInit.  Trailing zero bits are dropped as DER requires for named bit lists.
func (f ContextFlag) ReqFlags() asn1.BitString {
	var bs asn1.BitString
	for _, m := range reqFlagBits {
		if f&m.flag == 0 {
			continue
		}
		if bs.Bytes == nil {
			bs.Bytes = []byte{0}
		}
		bs.Bytes[0] |= 0x80 >> m.bit
		if m.bit+1 > bs.BitLength {
			bs.BitLength = m.bit + 1
		}
	}

	return bs
}

// FlagsFromReqFlags is the inverse of ContextFlag.ReqFlags.  Bits that have
// no GSS-API meaning are ignored.
func FlagsFromReqFlags(bs asn1.BitString) ContextFlag {
	var f ContextFlag
	for _, m := range reqFlagBits {
		if bs.At(m.bit) != 0 {
			f |= m.flag
		}
	}

	return f
}
