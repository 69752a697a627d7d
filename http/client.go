// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	spnego "github.com/golang-auth/go-spnego"
)

// InitiatorFunc returns a fresh mechanism initiator.  The transport calls it
// once per request, as an initiator holds the state of a single context.
type InitiatorFunc func() (spnego.Initiator, error)

// SpnFunc is a function that returns the Service Principal Name (SPN) for a given URL.
type SpnFunc func(url url.URL) string

func defaultSpnFunc(url url.URL) string {
	return "HTTP@" + url.Hostname()
}

// DefaultSpnFunc is the default SPN function used for new clients.
var DefaultSpnFunc SpnFunc = defaultSpnFunc

// OpportunisticFunc is a function that returns true if opportunistic authentication should be used for a given URL.
type OpportunisticFunc func(url url.URL) bool

func opportunisticsFuncAlways(url url.URL) bool {
	return true
}

// NegotiateTransport is a http.RoundTripper implementation that includes
// SPNEGO (HTTP Negotiate) authentication.
type NegotiateTransport struct {
	transport http.RoundTripper

	newInitiator              InitiatorFunc
	spnFunc                   SpnFunc
	opportunisticFunc         OpportunisticFunc
	mutual                    bool
	expect100Threshold        int64
	channelBindingDisposition ChannelBindingDisposition

	httpLogging bool
	logger      *slog.Logger
}

// ClientOption is a function that configures a Client
type ClientOption func(c *NegotiateTransport)

// WithInitiatorOpportunistic configures the client to opportunisticly authenticate
//
// Opportunistic authentication means that the client does not wait for the server to
// respond with a 401 status code before sending an authentication token.  This
// is a performance optimization that can be used to reduce the number of round trips
// between the client and server, at the cost of initializing the security context and
// potentially exposing authentcation credentials to the server unnecessarily.
func WithInitiatorOpportunistic() ClientOption {
	return func(c *NegotiateTransport) {
		c.opportunisticFunc = opportunisticsFuncAlways
	}
}

// WithInitiatorOpportunisticFunc configures the client to use a custom function to determine
// if opportunistic authentication should be used for a given URL.
func WithInitiatorOpportunisticFunc(opportunisticFunc OpportunisticFunc) ClientOption {
	return func(c *NegotiateTransport) {
		c.opportunisticFunc = opportunisticFunc
	}
}

// WithInitiatorMutual configures the client to request mutual authentication
//
// Mutual authentication means that the client and server both authenticate each other.
// It causes the server to respond with a token in the WWW-Authenticate header
// that the client uses to complete the context establishment and verify the server's identity.
func WithInitiatorMutual() ClientOption {
	return func(c *NegotiateTransport) {
		c.mutual = true
	}
}

// WithInitiatorSpnFunc provides a custom function to provide the Service Principal Name (SPN) for a given URL.
//
// The default uses "HTTP@" + the host name of the URL.
func WithInitiatorSpnFunc(spnFunc SpnFunc) ClientOption {
	return func(c *NegotiateTransport) {
		c.spnFunc = spnFunc
	}
}

// WithInitiatorExpect100Threshold configures the client to use the Expect: Continue header
// if the request body is larger than the threshold.
//
// Use of the Expect: Continue header is disabled by default due to concerns about the
// correct implementation by some servers.
func WithInitiatorExpect100Threshold(threshold int64) ClientOption {
	return func(c *NegotiateTransport) {
		c.expect100Threshold = threshold
	}
}

// WithInitiatorChannelBindingDisposition configures the use of TLS channel bindings.
// Bindings are computed from the server's certificate, so they can only be
// supplied once the server has challenged the client.
func WithInitiatorChannelBindingDisposition(disposition ChannelBindingDisposition) ClientOption {
	return func(c *NegotiateTransport) {
		c.channelBindingDisposition = disposition
	}
}

// WithInitiatorRoundTripper configures the client to use a custom round tripper
func WithInitiatorRoundTripper(transport http.RoundTripper) ClientOption {
	return func(c *NegotiateTransport) {
		c.transport = transport
	}
}

// WithInitiatorHttpLogging configures the client to log the HTTP requests and
// responses at debug level
func WithInitiatorHttpLogging() ClientOption {
	return func(c *NegotiateTransport) {
		c.httpLogging = true
	}
}

func WithInitiatorLogger(l *slog.Logger) ClientOption {
	return func(c *NegotiateTransport) {
		c.logger = l
	}
}

// NewTransport creates a new Negotiate transport that authenticates with
// initiators returned by newInitiator.
//
// The transport is a wrapper around the standard [http.Transport] that adds Negotiate
// authentication support. By default it wraps [http.DefaultTransport] - this can be
// overridden by passing a custom round tripper with [WithInitiatorRoundTripper].
func NewTransport(newInitiator InitiatorFunc, options ...ClientOption) (*NegotiateTransport, error) {
	t := &NegotiateTransport{
		transport:    http.DefaultTransport,
		newInitiator: newInitiator,
		spnFunc:      DefaultSpnFunc,
		logger:       slog.Default(),
	}
	for _, option := range options {
		option(t)
	}

	if t.channelBindingDisposition == ChannelBindingDispositionRequire && t.opportunisticFunc != nil {
		return nil, errors.New("required channel bindings cannot be used with opportunistic authentication")
	}

	return t, nil
}

// NewClient returns a [http.Client] that uses [NegotiateTransport] to enable Negotiate authentication.
//
// If an existing client is provided, it will be copied and the [http.RoundTripper] will be replaced with a
// new [NegotiateTransport].  Otherwise the default [http.Client] will be used. The [http.RoundTripper] in the
// returned client will wrap the transport from the supplied client or [http.DefaultTransport].
func NewClient(newInitiator InitiatorFunc, client *http.Client, options ...ClientOption) (*http.Client, error) {
	if client == nil {
		client = http.DefaultClient
	}

	if client.Transport != nil {
		options = append(options, WithInitiatorRoundTripper(client.Transport))
	}

	transport, err := NewTransport(newInitiator, options...)
	if err != nil {
		return nil, err
	}

	// Copy the client to avoid modifying the original
	newClient := *client
	newClient.Transport = transport
	return &newClient, nil
}

func (t *NegotiateTransport) requestFlags() spnego.ContextFlag {
	// always request integrity
	flags := spnego.ContextFlagInteg
	if t.mutual {
		// optionally request mutual authentication
		flags |= spnego.ContextFlagMutual
	}

	return flags
}

// initialToken starts the context and leaves the token in the request's
// Authorization header, to be sent in the next round trip.
func (t *NegotiateTransport) initialToken(initiator spnego.Initiator, req *http.Request, binding *spnego.ChannelBinding) error {
	spn := t.spnFunc(*req.URL)

	tok, err := spnego.InitialToken(req.Context(), initiator, spn, t.requestFlags(), binding)
	if err != nil {
		return fmt.Errorf("initializing context for %s: %w", spn, err)
	}

	req.Header.Set("Authorization", "Negotiate "+base64.StdEncoding.EncodeToString(tok))
	t.logger.Debug("sending Negotiate token", "spn", spn, "channel_bound", binding != nil)

	return nil
}

func (t *NegotiateTransport) processToken(initiator spnego.Initiator, req *http.Request, inToken string) (spnego.NegResult, error) {
	rawInToken, err := base64.StdEncoding.DecodeString(inToken)
	if err != nil {
		return spnego.ResultUnspecified, fmt.Errorf("decoding Negotiate challenge: %w", err)
	}

	return spnego.ProcessResponse(req.Context(), initiator, rawInToken)
}

// Use the underlying transport's RoundTripper wrapped in HTTP logging
// if enabled.
func (t *NegotiateTransport) roundTrip(req *http.Request) (*http.Response, error) {
	if trace := GetClientTrace(req.Context()); trace != nil {
		trace.RoundTrips++
	}

	if t.httpLogging {
		err := t.logRequest(req)
		if err != nil {
			return nil, err
		}
	}

	resp, err := t.transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if t.httpLogging {
		err := t.logResponse(resp)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// rewindBody prepares the request to be sent again after a challenge.
func rewindBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	if req.GetBody == nil {
		return errors.New("request body cannot be resent after a Negotiate challenge")
	}

	body, err := req.GetBody()
	if err != nil {
		return err
	}
	req.Body = body

	return nil
}

func discardResponse(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// RoundTrip implements the [http.RoundTripper] interface and performs one HTTP
// request, including potentially multiple round-trips to the server to complete the
// context establishment.
func (t *NegotiateTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.newInitiator == nil {
		return nil, errors.New("no initiator configured")
	}

	req = t.traceRequest(req)

	// We are not meant to modify the request, so we need to create a new one
	req = req.Clone(req.Context())

	initiator, err := t.newInitiator()
	if err != nil {
		return nil, err
	}

	started := false

	// Should we opportunistically set the initial token?
	if t.opportunisticFunc != nil && t.opportunisticFunc(*req.URL) {
		if err := t.initialToken(initiator, req, nil); err != nil {
			return nil, err
		}
		started = true
	} else if t.expect100Threshold > 0 {
		// use Expect: Continue for large requests or if we can't rewind the body
		useExpect100 := false
		if req.ContentLength > t.expect100Threshold {
			t.logger.Debug("using Expect: 100-continue for large request body", "threshold", t.expect100Threshold)
			useExpect100 = true
		} else if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
			t.logger.Debug("using Expect: 100-continue because the request body is not rewindable")
			useExpect100 = true
		}
		if useExpect100 {
			req.Header.Set("Expect", "100-continue")
		}
	}

	var resp *http.Response
	for {
		resp, err = t.roundTrip(req)
		if err != nil {
			return nil, err
		}

		// Check for a negotiate challenge in the response - which can be in a 401 or any other final response
		challenges := schemeChallenges(resp.Header, "Negotiate")
		if len(challenges) == 0 {
			// no challenge - the context should be fully established or never have started (eg. URL doesn't need auth)
			break
		}
		if len(challenges) > 1 {
			discardResponse(resp)
			return nil, fmt.Errorf("multiple negotiate challenges found in response")
		}

		negotiateChallenge := challenges[0]

		// Negotiate doesn't use parameters
		if len(negotiateChallenge.params) > 0 {
			discardResponse(resp)
			return nil, fmt.Errorf("negotiate challenge must not have parameters")
		}

		if negotiateChallenge.token68 != "" {
			if !started {
				discardResponse(resp)
				return nil, fmt.Errorf("negotiate token received before context establishment started")
			}

			result, err := t.processToken(initiator, req, negotiateChallenge.token68)
			if err != nil {
				discardResponse(resp)
				return nil, err
			}
			if result == spnego.AcceptIncomplete && resp.StatusCode == http.StatusUnauthorized {
				discardResponse(resp)
				return nil, fmt.Errorf("server requested a further negotiation round trip")
			}
			break
		}

		// The challenge should have a token unless this is a 401 response
		if resp.StatusCode != http.StatusUnauthorized {
			discardResponse(resp)
			return nil, fmt.Errorf("negotiate challenge must have a token unless this is a 401 response")
		}

		// A bare challenge after we sent a token means the server refused it
		if started {
			discardResponse(resp)
			return nil, fmt.Errorf("%w: server rejected the Negotiate token", spnego.ErrUnauthorized)
		}

		binding, err := channelBinding(t.channelBindingDisposition, resp.TLS, nil)
		if err != nil {
			discardResponse(resp)
			return nil, err
		}

		discardResponse(resp)
		if err := rewindBody(req); err != nil {
			return nil, err
		}
		if err := t.initialToken(initiator, req, binding); err != nil {
			return nil, err
		}
		started = true
	}

	// If we never started authentication then we should return the response we got
	if !started {
		return resp, nil
	}

	// We started authentication and should be fully established by now
	if resp.StatusCode == http.StatusUnauthorized {
		return resp, nil
	}
	if !initiator.Established() {
		discardResponse(resp)
		return nil, fmt.Errorf("context not fully established")
	}

	// verify that we have the flags we requested
	if t.mutual && initiator.Flags()&spnego.ContextFlagMutual == 0 {
		discardResponse(resp)
		return nil, fmt.Errorf("mutual authentication requested but not available")
	}

	return resp, nil
}
