// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/base64"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/iana/nametype"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/messages"
	gokrb5spnego "github.com/jcmturner/gokrb5/v8/spnego"
	"github.com/jcmturner/gokrb5/v8/test/testdata"
	"github.com/jcmturner/gokrb5/v8/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeytab(t *testing.T) string {
	b, err := hex.DecodeString(testdata.HTTP_KEYTAB)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "http.keytab")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

// negotiateToken builds a SPNEGO token for HTTP/host.test.gokrb5 without a KDC.
func negotiateToken(t *testing.T) string {
	c, err := config.NewFromString(testdata.KRB5_CONF)
	require.NoError(t, err)

	ktb, err := hex.DecodeString(testdata.KEYTAB_TESTUSER1_TEST_GOKRB5)
	require.NoError(t, err)
	kt := keytab.New()
	require.NoError(t, kt.Unmarshal(ktb))

	cl := client.NewWithKeytab("testuser1", "TEST.GOKRB5", kt, c)

	httpKtb, err := hex.DecodeString(testdata.HTTP_KEYTAB)
	require.NoError(t, err)
	httpKt := keytab.New()
	require.NoError(t, httpKt.Unmarshal(httpKtb))

	sname := types.PrincipalName{NameType: nametype.KRB_NT_PRINCIPAL, NameString: []string{"HTTP", "host.test.gokrb5"}}
	st := time.Now().UTC()
	tkt, key, err := messages.NewTicket(cl.Credentials.CName(), cl.Credentials.Domain(), sname, "TEST.GOKRB5",
		types.NewKrbFlags(), httpKt, 18, 1, st, st, st.Add(time.Hour), st.Add(2*time.Hour))
	require.NoError(t, err)

	negInit, err := gokrb5spnego.NewNegTokenInitKRB5(cl, tkt, key)
	require.NoError(t, err)

	b, err := (&gokrb5spnego.SPNEGOToken{Init: true, NegTokenInit: negInit}).Marshal()
	require.NoError(t, err)

	return base64.StdEncoding.EncodeToString(b)
}

func get(t *testing.T, url, authz string) (*http.Response, string) {
	req, err := http.NewRequest("GET", url, nil)
	require.NoError(t, err)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Keytab = writeKeytab(t)
	require.NoError(t, cfg.Validate())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := newServer(cfg, logger, prometheus.NewRegistry())
	require.NoError(t, err)
	assert.Nil(t, srv.TLSConfig)

	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, _ := get(t, ts.URL+"/hello", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Negotiate", resp.Header.Get("WWW-Authenticate"))

	resp, body := get(t, ts.URL+"/hello", "Negotiate "+negotiateToken(t))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "principal: testuser1@TEST.GOKRB5")
	assert.Contains(t, body, "channel bound: false")

	resp, body = get(t, ts.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `spnego_http_authentications_total{outcome="success",scheme="negotiate"} 1`)
}

func TestServerMissingKeytab(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Keytab = filepath.Join(t.TempDir(), "missing.keytab")

	_, err := newServer(cfg, slog.Default(), prometheus.NewRegistry())
	assert.Error(t, err)
}
