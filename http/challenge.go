// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"
	"strings"
)

// challenge is one auth-scheme challenge from a WWW-Authenticate header
// (RFC 7235 section 2.1).  A Negotiate challenge is bare or carries a token68.
type challenge struct {
	scheme  string
	token68 string
	params  map[string]string
}

// schemeChallenges returns the challenges for scheme from every
// WWW-Authenticate header in h, in header order.  Scheme names compare
// case-insensitively.
func schemeChallenges(h http.Header, scheme string) []challenge {
	var found []challenge
	for _, v := range h.Values("WWW-Authenticate") {
		for _, c := range parseChallenges(v) {
			if strings.EqualFold(c.scheme, scheme) {
				found = append(found, c)
			}
		}
	}

	return found
}

// parseChallenges parses a single WWW-Authenticate value.  Commas separate
// challenges and also the auth-params within one, so an element that starts
// with name=value continues the previous challenge.
func parseChallenges(value string) []challenge {
	var out []challenge
	for _, elem := range splitList(value) {
		scheme, rest := elem, ""
		if i := strings.IndexAny(elem, " \t"); i >= 0 {
			scheme, rest = elem[:i], strings.TrimSpace(elem[i+1:])
		}

		if strings.Contains(scheme, "=") || strings.HasPrefix(rest, "=") {
			if len(out) > 0 {
				addParam(&out[len(out)-1], elem)
			}
			continue
		}

		c := challenge{scheme: scheme}
		switch {
		case rest == "":
		case isToken68(rest):
			c.token68 = rest
		default:
			addParam(&c, rest)
		}
		out = append(out, c)
	}

	return out
}

// splitList splits s at commas outside quoted strings, dropping empty elements.
func splitList(s string) []string {
	var (
		elems   []string
		start   int
		quoted  bool
		escaped bool
	)

	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case escaped:
			escaped = false
		case c == '\\' && quoted:
			escaped = true
		case c == '"':
			quoted = !quoted
		case c == ',' && !quoted:
			elems = appendElem(elems, s[start:i])
			start = i + 1
		}
	}

	return appendElem(elems, s[start:])
}

func appendElem(elems []string, e string) []string {
	if e = strings.TrimSpace(e); e != "" {
		elems = append(elems, e)
	}
	return elems
}

func addParam(c *challenge, param string) {
	name, value, ok := strings.Cut(param, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return
	}

	if c.params == nil {
		c.params = make(map[string]string)
	}
	c.params[strings.ToLower(name)] = unquote(strings.TrimSpace(value))
}

func unquote(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}

	var b strings.Builder
	for i := 1; i < len(s)-1; i++ {
		if s[i] == '\\' && i+1 < len(s)-1 {
			i++
		}
		b.WriteByte(s[i])
	}

	return b.String()
}

// isToken68 reports whether s matches the token68 rule: base64 or base64url
// characters followed by optional '=' padding.
func isToken68(s string) bool {
	s = strings.TrimRight(s, "=")
	if s == "" {
		return false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
			continue
		}
		if strings.IndexByte("-._~+/", c) < 0 {
			return false
		}
	}

	return true
}
