// SPDX-License-Identifier: Apache-2.0

package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"net/http/httputil"
	"strings"

	spnego "github.com/golang-auth/go-spnego"
)

// ClientTrace records what a NegotiateTransport did for one request.  Attach
// one to the request context with WithClientTrace and read it once the
// request has completed.
type ClientTrace struct {
	// RoundTrips counts the requests sent to the server, including the
	// retry carrying the Negotiate token
	RoundTrips int

	WaitedFor100Continue bool
	Got100Continue       bool
}

type clientTraceKey struct{}

func WithClientTrace(ctx context.Context, trace *ClientTrace) context.Context {
	return context.WithValue(ctx, clientTraceKey{}, trace)
}

func GetClientTrace(ctx context.Context) *ClientTrace {
	trace, _ := ctx.Value(clientTraceKey{}).(*ClientTrace)
	return trace
}

// traceRequest hooks connection events into the transport's logger and the
// caller's ClientTrace.  An httptrace.ClientTrace already on the request wins.
func (t *NegotiateTransport) traceRequest(req *http.Request) *http.Request {
	if !t.httpLogging || httptrace.ContextClientTrace(req.Context()) != nil {
		return req
	}

	trace := GetClientTrace(req.Context())
	ct := &httptrace.ClientTrace{
		GetConn: func(hostPort string) {
			t.logger.Debug("getting connection", "host", hostPort)
		},
		GotConn: func(info httptrace.GotConnInfo) {
			t.logger.Debug("got connection", "local", info.Conn.LocalAddr(), "remote", info.Conn.RemoteAddr(), "reused", info.Reused)
		},
		Wait100Continue: func() {
			t.logger.Debug("waiting for 100-continue")
			if trace != nil {
				trace.WaitedFor100Continue = true
			}
		},
		Got100Continue: func() {
			t.logger.Debug("got 100-continue")
			if trace != nil {
				trace.Got100Continue = true
			}
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			t.logger.Debug("wrote request", "error", info.Err)
		},
	}

	return req.WithContext(httptrace.WithClientTrace(req.Context(), ct))
}

// logRequest writes the request headers to the debug log.  Credentials are
// replaced by a fingerprint.
func (t *NegotiateTransport) logRequest(req *http.Request) error {
	if authz := req.Header.Get("Authorization"); authz != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", redactCredential(authz))
	}

	b, err := httputil.DumpRequestOut(req, false)
	if err != nil {
		return fmt.Errorf("dumping request: %w", err)
	}
	t.logDump("> ", b)

	return nil
}

// logResponse writes the response headers to the debug log.
func (t *NegotiateTransport) logResponse(resp *http.Response) error {
	b, err := httputil.DumpResponse(resp, false)
	if err != nil {
		return fmt.Errorf("dumping response: %w", err)
	}
	t.logDump("< ", b)

	return nil
}

func (t *NegotiateTransport) logDump(prefix string, b []byte) {
	for _, line := range strings.Split(strings.TrimRight(string(b), "\r\n"), "\n") {
		t.logger.Debug(prefix + strings.TrimRight(line, "\r"))
	}
}

// redactCredential keeps the scheme of an Authorization value and replaces
// the credential with its fingerprint.
func redactCredential(authz string) string {
	scheme, cred, _ := strings.Cut(authz, " ")
	return scheme + " sha256:" + spnego.Fingerprint([]byte(cred))
}
