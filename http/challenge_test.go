// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/golang-auth/go-spnego/test"
)

func TestParseChallenges(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []challenge
	}{
		{"empty", "", nil},
		{"bare negotiate", "Negotiate", []challenge{{scheme: "Negotiate"}}},
		{"negotiate token", "Negotiate oRQwEqADCgEAoQsGCSqGSIb3EgECAg==",
			[]challenge{{scheme: "Negotiate", token68: "oRQwEqADCgEAoQsGCSqGSIb3EgECAg=="}}},
		{"extra whitespace", "  Negotiate \t YWJj  ", []challenge{{scheme: "Negotiate", token68: "YWJj"}}},
		{"basic params", `Basic realm="Intranet", charset="UTF-8"`,
			[]challenge{{scheme: "Basic", params: map[string]string{"realm": "Intranet", "charset": "UTF-8"}}}},
		{"negotiate then basic", `Negotiate, Basic realm="Intranet"`,
			[]challenge{{scheme: "Negotiate"}, {scheme: "Basic", params: map[string]string{"realm": "Intranet"}}}},
		{"basic then negotiate token", `Basic realm="a, b", charset=UTF-8, Negotiate YWJj`,
			[]challenge{
				{scheme: "Basic", params: map[string]string{"realm": "a, b", "charset": "UTF-8"}},
				{scheme: "Negotiate", token68: "YWJj"},
			}},
		{"quoted escapes", `Basic realm="say \"hi\""`,
			[]challenge{{scheme: "Basic", params: map[string]string{"realm": `say "hi"`}}}},
		{"whitespace around equals", `Basic realm = "Intranet"`,
			[]challenge{{scheme: "Basic", params: map[string]string{"realm": "Intranet"}}}},
		{"negotiate with param", `Negotiate realm="x"`,
			[]challenge{{scheme: "Negotiate", params: map[string]string{"realm": "x"}}}},
		{"empty elements", ", ,Negotiate,,", []challenge{{scheme: "Negotiate"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseChallenges(tt.value))
		})
	}
}

func TestSchemeChallenges(t *testing.T) {
	assert := test.NewAssert(t)

	h := http.Header{}
	h.Add("WWW-Authenticate", `Basic realm="Intranet"`)
	h.Add("WWW-Authenticate", "negotiate YWJj")
	h.Add("WWW-Authenticate", "Bearer, NEGOTIATE")

	got := schemeChallenges(h, "Negotiate")
	assert.Equal([]challenge{{scheme: "negotiate", token68: "YWJj"}, {scheme: "NEGOTIATE"}}, got)

	assert.Len(schemeChallenges(h, "Basic"), 1)
	assert.Empty(schemeChallenges(http.Header{}, "Negotiate"))
}

func TestIsToken68(t *testing.T) {
	for _, s := range []string{"YWJj", "YWI=", "YQ==", "a-b_c.d~e+f/g"} {
		assert.True(t, isToken68(s), s)
	}
	for _, s := range []string{"", "==", "realm=x", "a b", `"abc"`} {
		assert.False(t, isToken68(s), s)
	}
}
