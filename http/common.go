// SPDX-License-Identifier: Apache-2.0

package http

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	cb "github.com/golang-auth/go-channelbinding"

	spnego "github.com/golang-auth/go-spnego"
)

// ChannelBindingDisposition controls the use of TLS channel bindings (RFC 5929
// tls-server-end-point) in Negotiate contexts.
type ChannelBindingDisposition int

const (
	// Never bind contexts to the TLS channel
	ChannelBindingDispositionIgnore ChannelBindingDisposition = iota
	// Bind contexts when the connection uses TLS; the peer may leave them unbound
	ChannelBindingDispositionIfAvailable
	// Refuse contexts that are not bound to the TLS channel
	ChannelBindingDispositionRequire
)

func (d ChannelBindingDisposition) String() string {
	switch d {
	case ChannelBindingDispositionIgnore:
		return "ignore"
	case ChannelBindingDispositionIfAvailable:
		return "if-available"
	case ChannelBindingDispositionRequire:
		return "require"
	}

	return fmt.Sprintf("ChannelBindingDisposition(%d)", int(d))
}

// ParseChannelBindingDisposition is the inverse of ChannelBindingDisposition.String.
func ParseChannelBindingDisposition(s string) (ChannelBindingDisposition, error) {
	switch s {
	case "", "ignore":
		return ChannelBindingDispositionIgnore, nil
	case "if-available":
		return ChannelBindingDispositionIfAvailable, nil
	case "require":
		return ChannelBindingDispositionRequire, nil
	}

	return 0, fmt.Errorf("unknown channel binding disposition %q", s)
}

var (
	errNoChannelBinding      = errors.New("channel bindings required but the connection does not use TLS")
	errUnsupportedTLSVersion = errors.New("tls-server-end-point channel bindings are not available above TLS 1.2")
)

func krbEndpointBinding(tlsState *tls.ConnectionState, serverCert *x509.Certificate) (*spnego.ChannelBinding, error) {
	if tlsState == nil && serverCert != nil {
		return nil, errNoChannelBinding
	}
	if serverCert == nil {
		// must be the client then -- the server cert is in the peer certificates list
		if tlsState == nil || len(tlsState.PeerCertificates) == 0 {
			return nil, fmt.Errorf("no server certificate found in TLS connection state, needed for channel binding")
		}
		serverCert = tlsState.PeerCertificates[0]
	}

	data, err := cb.MakeTLSChannelBinding(*tlsState, serverCert, cb.TLSChannelBindingEndpoint)
	if err != nil {
		return nil, fmt.Errorf("channel binding: %w", err)
	}

	binding := &spnego.ChannelBinding{
		Data: data,
	}
	return binding, nil
}

// channelBinding returns the binding for a connection according to the
// disposition.  A nil binding means bindings are not used.
func channelBinding(d ChannelBindingDisposition, tlsState *tls.ConnectionState, serverCert *x509.Certificate) (*spnego.ChannelBinding, error) {
	if d == ChannelBindingDispositionIgnore {
		return nil, nil
	}

	if tlsState == nil {
		if d == ChannelBindingDispositionRequire {
			return nil, errNoChannelBinding
		}
		return nil, nil
	}

	// tls-server-end-point is only defined up to TLS 1.2
	if tlsState.Version > tls.VersionTLS12 {
		if d == ChannelBindingDispositionRequire {
			return nil, fmt.Errorf("%w (negotiated %s)", errUnsupportedTLSVersion, tls.VersionName(tlsState.Version))
		}
		return nil, nil
	}

	binding, err := krbEndpointBinding(tlsState, serverCert)
	if err != nil {
		return nil, err
	}
	binding.Required = d == ChannelBindingDispositionRequire

	return binding, nil
}
