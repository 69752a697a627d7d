// SPDX-License-Identifier: Apache-2.0

package http

import (
	"context"
	"net/http"

	spnego "github.com/golang-auth/go-spnego"
)

type contextKey struct {
	name string
}

func (k *contextKey) String() string { return "spnego/http context value " + k.name }

var initiatorContextKey = &contextKey{"initiator"}
var hasCBContextKey = &contextKey{"has-cb"}

// InitiatorName describes the authenticated client.  It is available to the
// next handler through GetInitiatorName.
type InitiatorName struct {
	// PrincipalName is the fully qualified name of the initiator
	PrincipalName string

	// Scheme is the HTTP authentication scheme the client used
	Scheme spnego.Scheme

	// Flags are the context flags of a Negotiate context; zero for Basic
	Flags spnego.ContextFlag

	channelBound bool
}

// Record the initiator name in the request context
func stashInitiatorName(ctx context.Context, initiatorName *InitiatorName) context.Context {
	return context.WithValue(ctx, initiatorContextKey, initiatorName)
}

func stashHasChannelBindings(ctx context.Context, has bool) context.Context {
	return context.WithValue(ctx, hasCBContextKey, has)
}

func getInitiatorNameContext(ctx context.Context) *InitiatorName {
	initiatorName, ok := ctx.Value(initiatorContextKey).(*InitiatorName)
	if !ok {
		return nil
	}
	return initiatorName
}

func getHasCBContext(ctx context.Context) bool {
	hasCB, ok := ctx.Value(hasCBContextKey).(bool)
	if !ok {
		return false
	}

	return hasCB
}

// GetInitiatorName returns the initiator name from the request context if available.
// This can be used by the 'next' http handler called by [Handler.ServeHTTP]
func GetInitiatorName(r *http.Request) (*InitiatorName, bool) {
	in := getInitiatorNameContext(r.Context())
	return in, in != nil
}

// HasChannelBindings reports whether the Negotiate context of the request was
// bound to the TLS channel.
func HasChannelBindings(r *http.Request) bool {
	return getHasCBContext(r.Context())
}
