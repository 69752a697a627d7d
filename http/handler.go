// SPDX-License-Identifier: Apache-2.0

package http

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	spnego "github.com/golang-auth/go-spnego"
)

// BasicValidator checks the credentials of an HTTP Basic Authorization header
// and returns the authenticated principal name.  krb5.BasicValidator validates
// them against a KDC.
type BasicValidator interface {
	Validate(ctx context.Context, username, password string) (string, error)
}

// Handler is a http.Handler that performs Negotiate (and optionally Basic)
// authentication and passes the initiator name to the next handler
type Handler struct {
	negotiator *spnego.Negotiator
	next       http.Handler

	basic                     BasicValidator
	realm                     string
	channelBindingDisposition ChannelBindingDisposition
	serverCert                *x509.Certificate
	metrics                   *Metrics
	logger                    *slog.Logger
}

// HandlerOption is a function that can be used to configure the Handler
type HandlerOption func(s *Handler)

// WithAcceptorBasicValidator enables Basic authentication as a fallback for
// clients that cannot use Negotiate.
func WithAcceptorBasicValidator(v BasicValidator) HandlerOption {
	return func(s *Handler) {
		s.basic = v
	}
}

// WithAcceptorRealm sets the realm advertised in the Basic challenge.
func WithAcceptorRealm(realm string) HandlerOption {
	return func(s *Handler) {
		s.realm = realm
	}
}

// WithAcceptorChannelBindingDisposition sets the TLS channel binding policy.
// Bindings need the server certificate, see [WithAcceptorServerCertificate].
func WithAcceptorChannelBindingDisposition(disposition ChannelBindingDisposition) HandlerOption {
	return func(s *Handler) {
		s.channelBindingDisposition = disposition
	}
}

// WithAcceptorServerCertificate sets the certificate the server presents to
// clients, used to compute TLS channel bindings.
func WithAcceptorServerCertificate(cert *x509.Certificate) HandlerOption {
	return func(s *Handler) {
		s.serverCert = cert
	}
}

func WithAcceptorMetrics(m *Metrics) HandlerOption {
	return func(s *Handler) {
		s.metrics = m
	}
}

func WithAcceptorLogger(l *slog.Logger) HandlerOption {
	return func(s *Handler) {
		s.logger = l
	}
}

// NewHandler creates a new Handler that authenticates requests with the
// negotiator before calling next.
func NewHandler(negotiator *spnego.Negotiator, next http.Handler, options ...HandlerOption) (*Handler, error) {
	if negotiator == nil {
		return nil, errors.New("a negotiator is required")
	}

	h := &Handler{
		negotiator: negotiator,
		next:       next,
		realm:      "Restricted",
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(h)
	}

	if h.channelBindingDisposition != ChannelBindingDispositionIgnore && h.serverCert == nil {
		return nil, errors.New("channel bindings need the server certificate")
	}

	return h, nil
}

// ServeHTTP authenticates the request and passes the initiator name to the next handler.
// Only one Negotiate round trip per request is supported: the Go [http.Server]
// gives no way to hold a context across requests without hijacking the connection.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth, err := spnego.ParseAuthHeader(r.Header.Get("Authorization"))
	if err != nil {
		h.logger.Debug("unsupported authorization header", "remote", r.RemoteAddr, "error", err)
		h.challenge(w, "none")
		return
	}

	var in *InitiatorName
	switch auth.Scheme {
	case spnego.SchemeNegotiate:
		in = h.negotiate(w, r, auth)
	case spnego.SchemeBasic:
		if h.basic == nil {
			h.challenge(w, "basic")
			return
		}
		in = h.basicAuth(w, r, auth)
	default:
		h.challenge(w, "none")
		return
	}

	if in == nil {
		return
	}

	ctx := stashInitiatorName(r.Context(), in)
	if in.channelBound {
		ctx = stashHasChannelBindings(ctx, true)
	}
	h.next.ServeHTTP(w, r.WithContext(ctx))
}

// negotiate processes a Negotiate token.  It writes the response itself and
// returns nil unless the client was authenticated.
func (h *Handler) negotiate(w http.ResponseWriter, r *http.Request, auth spnego.AuthScheme) *InitiatorName {
	start := time.Now()

	token, err := auth.DecodeToken()
	if err != nil || len(token) == 0 {
		h.fail(w, "negotiate", start, "undecodable Negotiate token", auth, err)
		return nil
	}

	binding, err := channelBinding(h.channelBindingDisposition, r.TLS, h.serverCert)
	if err != nil {
		h.fail(w, "negotiate", start, "channel bindings unavailable", auth, err)
		return nil
	}

	out, err := h.negotiator.Accept(r.Context(), token, binding)
	if out != nil && out.Response != nil {
		w.Header().Set("WWW-Authenticate", "Negotiate "+base64.StdEncoding.EncodeToString(out.Response))
	}
	if err != nil {
		h.fail(w, "negotiate", start, "negotiation failed", auth, err)
		return nil
	}

	if !out.Established() {
		// the client has to send another token
		h.metrics.record("negotiate", outcomeContinue, time.Since(start))
		h.logger.Debug("negotiation continues", "remote", r.RemoteAddr, "mech", out.Mech, "result", out.Result)
		unauthorized(w)
		return nil
	}

	h.metrics.record("negotiate", outcomeSuccess, time.Since(start))
	h.logger.Info("authenticated", "remote", r.RemoteAddr, "scheme", "Negotiate",
		"principal", out.Accepted.InitiatorName, "mech", out.Mech, "channel_bound", binding != nil)

	return &InitiatorName{
		PrincipalName: out.Accepted.InitiatorName,
		Scheme:        spnego.SchemeNegotiate,
		Flags:         out.Accepted.Flags,
		channelBound:  binding != nil,
	}
}

func (h *Handler) basicAuth(w http.ResponseWriter, r *http.Request, auth spnego.AuthScheme) *InitiatorName {
	start := time.Now()

	user, pass, err := auth.BasicCredentials()
	if err != nil {
		h.fail(w, "basic", start, "undecodable Basic credentials", auth, err)
		return nil
	}

	principal, err := h.basic.Validate(r.Context(), user, pass)
	if err != nil {
		h.fail(w, "basic", start, "basic authentication failed", auth, err)
		return nil
	}

	h.metrics.record("basic", outcomeSuccess, time.Since(start))
	h.logger.Info("authenticated", "remote", r.RemoteAddr, "scheme", "Basic", "principal", principal)

	return &InitiatorName{PrincipalName: principal, Scheme: spnego.SchemeBasic}
}

// fail logs the detail of a failed attempt; the client only sees a bare 401.
func (h *Handler) fail(w http.ResponseWriter, scheme string, start time.Time, msg string, auth spnego.AuthScheme, err error) {
	h.metrics.record(scheme, outcomeFailure, time.Since(start))
	h.logger.Warn(msg, "auth", auth, "error", err)
	h.writeChallenges(w)
	unauthorized(w)
}

func (h *Handler) challenge(w http.ResponseWriter, scheme string) {
	h.metrics.record(scheme, outcomeChallenge, 0)
	h.writeChallenges(w)
	unauthorized(w)
}

func (h *Handler) writeChallenges(w http.ResponseWriter) {
	if w.Header().Get("WWW-Authenticate") != "" {
		return
	}

	w.Header().Add("WWW-Authenticate", "Negotiate")
	if h.basic != nil {
		realm := strings.ReplaceAll(h.realm, `"`, `'`)
		w.Header().Add("WWW-Authenticate", `Basic realm="`+realm+`", charset="UTF-8"`)
	}
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
}
