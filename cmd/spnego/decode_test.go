// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	spnego "github.com/golang-auth/go-spnego"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, string, error) {
	cmd := newRootCmd()

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func marshalled(t *testing.T, tok interface{ Marshal() ([]byte, error) }) []byte {
	b, err := tok.Marshal()
	require.NoError(t, err)
	return b
}

func TestDecodeInit(t *testing.T) {
	b := marshalled(t, spnego.NewNegTokenInit(
		spnego.WithMechTypes(spnego.OidKRB5, spnego.OidNTLMSSP),
		spnego.WithContextFlags(spnego.ContextFlagMutual),
		spnego.WithMechToken([]byte{0xde, 0xad}),
	))

	out, _, err := runCmd(t, "", "decode", "--hex", base64.StdEncoding.EncodeToString(b))
	require.NoError(t, err)

	var got decodedToken
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "NegTokenInit", got.Type)
	assert.Equal(t, []string{"1.2.840.113554.1.2.2 (Kerberos 5)", "1.3.6.1.4.1.311.2.2.10 (NTLMSSP)"}, got.MechTypes)
	assert.Equal(t, []string{"Mutual authentication"}, got.ReqFlags)
	require.NotNil(t, got.MechToken)
	assert.Equal(t, 2, got.MechToken.Length)
	assert.Equal(t, "dead", got.MechToken.Hex)
	assert.Nil(t, got.MechListMIC)
	assert.False(t, got.JDKFixed)
}

func TestDecodeTargFromStdin(t *testing.T) {
	b := marshalled(t, spnego.NewNegTokenTarg(spnego.AcceptCompleted,
		spnego.WithSupportedMech(spnego.OidKRB5),
		spnego.WithResponseToken([]byte("ap-rep")),
	))

	out, _, err := runCmd(t, "WWW-Authenticate: Negotiate "+base64.StdEncoding.EncodeToString(b)+"\n", "decode")
	require.NoError(t, err)

	var got decodedToken
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "NegTokenTarg", got.Type)
	assert.Equal(t, "accept-completed", got.NegState)
	assert.Equal(t, "1.2.840.113554.1.2.2 (Kerberos 5)", got.SupportedMech)
	require.NotNil(t, got.ResponseToken)
	assert.Equal(t, 6, got.ResponseToken.Length)
	assert.Empty(t, got.ResponseToken.Hex)
}

func TestDecodeErrors(t *testing.T) {
	_, _, err := runCmd(t, "", "decode", "not base64!")
	assert.Error(t, err)

	_, _, err = runCmd(t, "", "decode", base64.StdEncoding.EncodeToString([]byte{0xa1, 0x05, 0x00}))
	assert.ErrorIs(t, err, spnego.ErrMalformedToken)

	_, _, err = runCmd(t, "", "decode", "")
	assert.Error(t, err)
}

func jdkToken(t *testing.T) []byte {
	return marshalled(t, spnego.NewNegTokenInit(
		spnego.WithMechTypes(spnego.OidMSKRB5, spnego.OidKRB5),
		spnego.WithMechToken(bytes.Repeat([]byte{0x5a}, 300)),
	))
}

func TestFixJDK(t *testing.T) {
	out, errOut, err := runCmd(t, "", "fix-jdk", base64.StdEncoding.EncodeToString(jdkToken(t)))
	require.NoError(t, err)
	assert.Empty(t, errOut)

	fixed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out))
	require.NoError(t, err)

	tok, err := spnego.DecodeNegTokenInit(fixed)
	require.NoError(t, err)
	assert.Equal(t, []spnego.Oid{spnego.OidKRB5, spnego.OidMSKRB5}, tok.MechTypes())
}

func TestFixJDKUnchanged(t *testing.T) {
	b := marshalled(t, spnego.NewNegTokenInit(spnego.WithMechTypes(spnego.OidKRB5)))
	in := base64.StdEncoding.EncodeToString(b)

	out, errOut, err := runCmd(t, "", "fix-jdk", in)
	require.NoError(t, err)
	assert.Equal(t, in, strings.TrimSpace(out))
	assert.Contains(t, errOut, "token unchanged")
}

func TestDecodeJDKToken(t *testing.T) {
	out, _, err := runCmd(t, "", "decode", base64.StdEncoding.EncodeToString(jdkToken(t)))
	require.NoError(t, err)

	var got decodedToken
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.True(t, got.JDKFixed)
	assert.Equal(t, "1.2.840.113554.1.2.2 (Kerberos 5)", got.MechTypes[0])
}
