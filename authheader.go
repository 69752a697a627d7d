// SPDX-License-Identifier: Apache-2.0

package spnego

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Scheme identifies the HTTP authentication scheme found in an Authorization header.
type Scheme int

const (
	SchemeNone Scheme = iota
	SchemeNegotiate
	SchemeBasic
)

const (
	prefixNegotiate = "Negotiate "
	prefixBasic     = "Basic "
)

func (s Scheme) String() string {
	switch s {
	case SchemeNone:
		return "none"
	case SchemeNegotiate:
		return "Negotiate"
	case SchemeBasic:
		return "Basic"
	}

	return "unknown"
}

// AuthScheme is the result of parsing an Authorization header.  Token is the
// base64 text that followed the scheme name; it is empty for SchemeNone.
type AuthScheme struct {
	Scheme Scheme
	Token  string
}

// ParseAuthHeader classifies an HTTP Authorization header value.
//
// An empty header means no authentication was attempted and yields SchemeNone
// with a nil error.  Headers beginning "Negotiate " or "Basic " yield the
// corresponding scheme with the remainder of the header as the token.  Any
// other value is rejected with an *UnsupportedSchemeError.
func ParseAuthHeader(header string) (AuthScheme, error) {
	var as AuthScheme

	switch {
	case header == "":
		as = AuthScheme{Scheme: SchemeNone}
	case strings.HasPrefix(header, prefixNegotiate):
		as = AuthScheme{Scheme: SchemeNegotiate, Token: header[len(prefixNegotiate):]}
	case strings.HasPrefix(header, prefixBasic):
		as = AuthScheme{Scheme: SchemeBasic, Token: header[len(prefixBasic):]}
	default:
		return AuthScheme{}, &UnsupportedSchemeError{Header: header}
	}

	slog.Debug("parsed authorization header", "auth", as)
	return as, nil
}

// Present reports whether the header carried any credential.
func (a AuthScheme) Present() bool {
	return a.Scheme != SchemeNone
}

// DecodeToken base64-decodes the token.
func (a AuthScheme) DecodeToken() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(a.Token)
	if err != nil {
		return nil, fmt.Errorf("decoding %s token: %w", a.Scheme, err)
	}

	return b, nil
}

// BasicCredentials returns the username and password of a Basic credential.
func (a AuthScheme) BasicCredentials() (username, password string, err error) {
	if a.Scheme != SchemeBasic {
		return "", "", fmt.Errorf("%s credential is not Basic: %w", a.Scheme, ErrUnsupportedScheme)
	}

	b, err := a.DecodeToken()
	if err != nil {
		return "", "", err
	}

	username, password, ok := strings.Cut(string(b), ":")
	if !ok {
		return "", "", errors.New("basic credential has no ':' separator")
	}

	return username, password, nil
}

// LogValue implements slog.LogValuer.  Secrets are never logged: Basic
// passwords and Negotiate tokens are reduced to a fingerprint.
func (a AuthScheme) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("scheme", a.Scheme.String())}

	switch a.Scheme {
	case SchemeBasic:
		if user, pass, err := a.BasicCredentials(); err == nil {
			attrs = append(attrs,
				slog.String("user", user),
				slog.String("password_sha256", Fingerprint([]byte(pass))))
		} else {
			attrs = append(attrs, slog.Bool("undecodable", true))
		}
	case SchemeNegotiate:
		attrs = append(attrs,
			slog.Int("token_len", len(a.Token)),
			slog.String("token_sha256", Fingerprint([]byte(a.Token))))
	}

	return slog.GroupValue(attrs...)
}

// Fingerprint returns a short hex SHA-256 digest of b that is safe to log.
func Fingerprint(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}
