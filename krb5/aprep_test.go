// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/jcmturner/gokrb5/v8/iana"
	"github.com/jcmturner/gokrb5/v8/iana/errorcode"
	"github.com/jcmturner/gokrb5/v8/iana/msgtype"
	"github.com/jcmturner/gokrb5/v8/iana/nametype"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/test/testdata"
	"github.com/jcmturner/gokrb5/v8/types"

	"github.com/golang-auth/go-spnego/test"
)

// encAPRepPart matching the MIT krb5 ASN.1 test vectors in gokrb5's testdata
func sampleEncAPRepPart(t *testing.T) encAPRepPart {
	tm, err := time.Parse(testdata.TEST_TIME_FORMAT, testdata.TEST_TIME)
	if err != nil {
		t.Fatalf("parsing test time: %v", err)
	}

	return encAPRepPart{
		CTime:          tm,
		Cusec:          123456,
		Subkey:         types.EncryptionKey{KeyType: 1, KeyValue: []byte("12345678")},
		SequenceNumber: 17,
	}
}

func testVector(t *testing.T, s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("decoding test vector: %v", err)
	}
	return b
}

func TestAPRepVector(t *testing.T) {
	assert := test.NewAssert(t)
	want := testVector(t, testdata.MarshaledKRB5ap_rep)

	var rep aPRep
	assert.NoErrorFatal(rep.unmarshal(want))
	assert.Equal(iana.PVNO, rep.PVNO)
	assert.Equal(msgtype.KRB_AP_REP, rep.MsgType)
	assert.Equal(testdata.TEST_ETYPE, rep.EncPart.EType)
	assert.Equal(iana.PVNO, rep.EncPart.KVNO)
	assert.Equal([]byte(testdata.TEST_CIPHERTEXT), rep.EncPart.Cipher)

	b, err := rep.marshal()
	assert.NoErrorFatal(err)
	assert.Equal(want, b)
}

func TestEncAPRepPartVectors(t *testing.T) {
	full := sampleEncAPRepPart(t)
	bare := full
	bare.Subkey = types.EncryptionKey{}
	bare.SequenceNumber = 0

	tests := []struct {
		name   string
		vector string
		part   encAPRepPart
	}{
		{"all fields", testdata.MarshaledKRB5ap_rep_enc_part, full},
		{"optionals absent", testdata.MarshaledKRB5ap_rep_enc_partOptionalsNULL, bare},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := test.NewAssert(t)
			want := testVector(t, tt.vector)

			b, err := tt.part.marshal()
			assert.NoErrorFatal(err)
			assert.Equal(want, b)

			var got encAPRepPart
			assert.NoErrorFatal(got.unmarshal(want))
			assert.True(tt.part.CTime.Equal(got.CTime))
			assert.Equal(tt.part.Cusec, got.Cusec)
			assert.Equal(tt.part.SequenceNumber, got.SequenceNumber)
			assert.Equal(tt.part.Subkey.KeyType, got.Subkey.KeyType)
		})
	}
}

func TestNewAPRep(t *testing.T) {
	assert := test.NewAssert(t)

	tkt, key := testServiceTicket(t, testClient(t))
	part := encAPRepPart{CTime: time.Now().UTC().Truncate(time.Second), Cusec: 4711, SequenceNumber: 99}

	rep, err := newAPRep(tkt, key, part)
	assert.NoErrorFatal(err)
	assert.Equal(msgtype.KRB_AP_REP, rep.MsgType)
	assert.Equal(key.KeyType, rep.EncPart.EType)

	got, err := rep.decryptEncPart(key)
	assert.NoErrorFatal(err)
	assert.True(part.CTime.Equal(got.CTime))
	assert.Equal(4711, got.Cusec)
	assert.Equal(int64(99), got.SequenceNumber)

	_, otherKey := testServiceTicket(t, testClient(t))
	_, err = rep.decryptEncPart(otherKey)
	assert.Error(err)
}

// A KRB-ERROR in place of the AP-REP is returned as the error.
func TestAPRepKRBError(t *testing.T) {
	assert := test.NewAssert(t)

	sname := types.PrincipalName{NameType: nametype.KRB_NT_PRINCIPAL, NameString: []string{"HTTP", "host.test.gokrb5"}}
	sent := messages.NewKRBError(sname, "TEST.GOKRB5", errorcode.KRB_AP_ERR_MODIFIED, "integrity check failed")
	b, err := sent.Marshal()
	assert.NoErrorFatal(err)

	var rep aPRep
	err = rep.unmarshal(b)

	var krbErr messages.KRBError
	assert.ErrorAsFatal(err, &krbErr)
	assert.Equal(errorcode.KRB_AP_ERR_MODIFIED, krbErr.ErrorCode)
}
