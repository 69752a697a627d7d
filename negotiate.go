// SPDX-License-Identifier: Apache-2.0

package spnego

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Acceptor is the server side of a GSS-API mechanism.  It consumes the initiator's
// mechanism token and produces the reply, if any.  Implementations must be safe
// for concurrent use.
type Acceptor interface {
	// Mechs returns the mechanism OIDs the acceptor handles.
	Mechs() []Oid
	// Accept processes one initiator token.
	Accept(ctx context.Context, req AcceptRequest) (*AcceptResult, error)
}

// ChannelBinding is the application data of GSS-API channel bindings, such as
// the TLS server endpoint binding.  Addresses are not supported.
type ChannelBinding struct {
	Data []byte
	// Required makes an acceptor reject initiators that did not bind the context.
	Required bool
}

// AcceptRequest carries one initiator token to an Acceptor.
type AcceptRequest struct {
	Mech    Oid             // the mechanism OID as sent by the initiator
	Token   []byte          // the mechanism's InitialContextToken
	Binding *ChannelBinding // nil when bindings are not in use
}

// AcceptResult is the outcome of a successful Acceptor.Accept call.
type AcceptResult struct {
	Complete      bool
	ResponseToken []byte
	InitiatorName string
	Flags         ContextFlag
	Lifetime      *GssLifetime
}

// Initiator is the client side of a GSS-API mechanism for a single context.
// Initiators are not safe for concurrent use.
type Initiator interface {
	// Mech returns the mechanism OID of the tokens produced.
	Mech() Oid
	// Init returns the first mechanism token for the named service.
	Init(ctx context.Context, target string, flags ContextFlag, binding *ChannelBinding) ([]byte, error)
	// Continue processes the acceptor's reply.
	Continue(ctx context.Context, token []byte) error
	// Established reports whether the context is complete.
	Established() bool
	// Flags returns the flags in effect for the context.
	Flags() ContextFlag
}

// Outcome describes the response to send after processing an initiator token.
type Outcome struct {
	Response []byte    // token for the WWW-Authenticate header, nil if none
	Result   NegResult // negState placed in the response
	Mech     Oid       // the mechanism that handled the token
	Wrapped  bool      // Response is a SPNEGO token rather than a bare mechanism token
	Accepted *AcceptResult
}

// Established reports whether the initiator was authenticated.
func (o *Outcome) Established() bool {
	return o != nil && o.Accepted != nil && o.Accepted.Complete
}

// Negotiator performs the acceptor side of SPNEGO on top of registered mechanism
// acceptors.  It is immutable once built and safe for concurrent use.
type Negotiator struct {
	registry *registry
	logger   *slog.Logger
	noJDKFix bool
}

type NegotiatorOption func(n *Negotiator)

// WithAcceptor registers a mechanism acceptor.  Acceptors are consulted in the
// order they are registered; the first registration of an OID wins.
func WithAcceptor(a Acceptor) NegotiatorOption {
	return func(n *Negotiator) {
		n.registry.register(a)
	}
}

func WithLogger(l *slog.Logger) NegotiatorOption {
	return func(n *Negotiator) {
		n.logger = l
	}
}

// WithoutJDKFix disables FixJDKRegression on incoming tokens.
func WithoutJDKFix() NegotiatorOption {
	return func(n *Negotiator) {
		n.noJDKFix = true
	}
}

func NewNegotiator(opts ...NegotiatorOption) *Negotiator {
	n := &Negotiator{
		registry: &registry{},
		logger:   slog.Default(),
	}

	for _, o := range opts {
		o(n)
	}

	return n
}

// Mechs returns the OIDs of the registered acceptors in preference order.
func (n *Negotiator) Mechs() []Oid {
	return n.registry.oids()
}

// Accept processes a decoded (not base64) Negotiate token.
//
// A SPNEGO NegTokenInit is answered with a NegTokenTarg.  A bare mechanism token,
// as sent by some browsers in place of SPNEGO, is handed straight to the matching
// acceptor and its reply is returned without SPNEGO framing.  When the peer is
// rejected the returned Outcome still carries the reject token along with the error.
func (n *Negotiator) Accept(ctx context.Context, raw []byte, binding *ChannelBinding) (*Outcome, error) {
	token := raw
	if !n.noJDKFix {
		token = FixJDKRegression(raw)
		if !bytes.Equal(token, raw) {
			n.logger.Debug("reordered mechanism list of token from affected JDK")
		}
	}

	if mech, err := PeekMech(token); err == nil && mech != OidSPNEGO {
		return n.acceptBare(ctx, mech, token, binding)
	}

	tok, err := Decode(token)
	if err != nil {
		return nil, err
	}

	init, ok := tok.(*NegTokenInit)
	if !ok {
		return nil, fmt.Errorf("%w: expected NegTokenInit from initiator", ErrDefectiveToken)
	}

	offered := init.MechTypes()
	idx, acc := n.selectMech(offered)
	if acc == nil {
		n.logger.Debug("no common mechanism", "offered", offered)
		return n.reject(Oid{}, fmt.Errorf("%w: none of %v", ErrBadMech, offered))
	}
	mech := offered[idx]

	// The optimistic token belongs to the first offered mechanism only.
	mechToken := init.MechToken()
	if idx != 0 || mechToken == nil {
		return n.respond(&Outcome{Result: AcceptIncomplete, Mech: mech})
	}

	res, err := acc.Accept(ctx, AcceptRequest{Mech: mech, Token: mechToken, Binding: binding})
	if err != nil {
		return n.reject(mech, fmt.Errorf("%s acceptor: %w", mech, err))
	}

	result := AcceptIncomplete
	if res.Complete {
		result = AcceptCompleted
	}
	n.logger.Debug("mechanism token accepted", "mech", mech, "result", result, "initiator", res.InitiatorName)

	return n.respond(&Outcome{Result: result, Mech: mech, Accepted: res})
}

func (n *Negotiator) acceptBare(ctx context.Context, mech Oid, token []byte, binding *ChannelBinding) (*Outcome, error) {
	acc := n.registry.lookup(mech)
	if acc == nil {
		return nil, fmt.Errorf("%w: %s", ErrBadMech, mech)
	}

	n.logger.Debug("accepting bare mechanism token", "mech", mech)
	res, err := acc.Accept(ctx, AcceptRequest{Mech: mech, Token: token, Binding: binding})
	if err != nil {
		return nil, fmt.Errorf("%s acceptor: %w", mech, err)
	}

	result := AcceptIncomplete
	if res.Complete {
		result = AcceptCompleted
	}

	return &Outcome{Response: cloneBytes(res.ResponseToken), Result: result, Mech: mech, Accepted: res}, nil
}

func (n *Negotiator) selectMech(offered []Oid) (int, Acceptor) {
	for i, m := range offered {
		if acc := n.registry.lookup(m); acc != nil {
			return i, acc
		}
	}

	return -1, nil
}

func (n *Negotiator) respond(o *Outcome) (*Outcome, error) {
	opts := []TargOption{WithSupportedMech(o.Mech)}
	if o.Accepted != nil && o.Accepted.ResponseToken != nil {
		opts = append(opts, WithResponseToken(o.Accepted.ResponseToken))
	}

	resp, err := NewNegTokenTarg(o.Result, opts...).Marshal()
	if err != nil {
		return nil, err
	}

	o.Response = resp
	o.Wrapped = true

	return o, nil
}

func (n *Negotiator) reject(mech Oid, cause error) (*Outcome, error) {
	var opts []TargOption
	if !mech.IsZero() {
		opts = append(opts, WithSupportedMech(mech))
	}

	resp, err := NewNegTokenTarg(Reject, opts...).Marshal()
	if err != nil {
		return nil, errors.Join(cause, err)
	}

	return &Outcome{Response: resp, Result: Reject, Mech: mech, Wrapped: true}, cause
}

// InitialToken runs the first step of i and wraps its token in a NegTokenInit
// offering i's mechanism.
func InitialToken(ctx context.Context, i Initiator, target string, flags ContextFlag, binding *ChannelBinding) ([]byte, error) {
	mechToken, err := i.Init(ctx, target, flags, binding)
	if err != nil {
		return nil, err
	}

	opts := []InitOption{WithMechTypes(i.Mech()), WithMechToken(mechToken)}
	if flags != 0 {
		opts = append(opts, WithContextFlags(flags))
	}

	return NewNegTokenInit(opts...).Marshal()
}

// ProcessResponse decodes the acceptor's NegTokenTarg and feeds any response
// token to i.  A rejection is reported as ErrUnauthorized.
func ProcessResponse(ctx context.Context, i Initiator, b []byte) (NegResult, error) {
	targ, err := DecodeNegTokenTarg(b)
	if err != nil {
		return ResultUnspecified, err
	}

	result := targ.Result()
	if result == Reject {
		return result, fmt.Errorf("%w: acceptor rejected the context", ErrUnauthorized)
	}

	if mech := targ.SupportedMech(); !mech.IsZero() {
		want, _ := MechFromOid(i.Mech())
		got, _ := MechFromOid(mech)
		if mech != i.Mech() && (want == nil || want != got) {
			return result, fmt.Errorf("%w: acceptor selected %s", ErrBadMech, mech)
		}
	}

	if tok := targ.ResponseToken(); tok != nil {
		if err := i.Continue(ctx, tok); err != nil {
			return result, err
		}
	}

	return result, nil
}
