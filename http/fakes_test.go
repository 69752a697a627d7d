// SPDX-License-Identifier: Apache-2.0

package http

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"

	spnego "github.com/golang-auth/go-spnego"
)

type fakeAcceptor struct {
	mu     sync.Mutex
	result *spnego.AcceptResult
	err    error
	calls  []spnego.AcceptRequest
}

func (a *fakeAcceptor) Mechs() []spnego.Oid {
	return []spnego.Oid{spnego.OidKRB5}
}

func (a *fakeAcceptor) Accept(_ context.Context, req spnego.AcceptRequest) (*spnego.AcceptResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, req)
	return a.result, a.err
}

func (a *fakeAcceptor) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.calls)
}

func newFakeAcceptor() *fakeAcceptor {
	return &fakeAcceptor{
		result: &spnego.AcceptResult{
			Complete:      true,
			ResponseToken: []byte("ap-rep"),
			InitiatorName: "alice@EXAMPLE.COM",
			Flags:         spnego.ContextFlagInteg | spnego.ContextFlagMutual,
		},
	}
}

type fakeInitiator struct {
	token     []byte
	err       error
	flags     spnego.ContextFlag
	targets   []string
	bindings  []*spnego.ChannelBinding
	continued [][]byte
	done      bool
}

func (i *fakeInitiator) Mech() spnego.Oid {
	return spnego.OidKRB5
}

func (i *fakeInitiator) Init(_ context.Context, target string, flags spnego.ContextFlag, binding *spnego.ChannelBinding) ([]byte, error) {
	i.targets = append(i.targets, target)
	i.bindings = append(i.bindings, binding)
	i.flags = flags
	i.done = flags&spnego.ContextFlagMutual == 0
	return i.token, i.err
}

func (i *fakeInitiator) Continue(_ context.Context, tok []byte) error {
	i.continued = append(i.continued, tok)
	i.done = true
	return nil
}

func (i *fakeInitiator) Established() bool {
	return i.done
}

func (i *fakeInitiator) Flags() spnego.ContextFlag {
	if !i.done {
		return 0
	}
	return i.flags
}

func negotiateHeader(t *testing.T, mechToken []byte) string {
	b, err := spnego.NewNegTokenInit(
		spnego.WithMechTypes(spnego.OidKRB5),
		spnego.WithMechToken(mechToken),
	).Marshal()
	if err != nil {
		t.Fatalf("marshalling NegTokenInit: %v", err)
	}

	return "Negotiate " + b64(b)
}

func b64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
