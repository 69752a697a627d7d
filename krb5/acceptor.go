// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jcmturner/gokrb5/v8/iana/chksumtype"
	ianaflags "github.com/jcmturner/gokrb5/v8/iana/flags"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/service"
	"github.com/jcmturner/gokrb5/v8/types"

	spnego "github.com/golang-auth/go-spnego"
)

// Acceptor verifies Kerberos AP-REQ context tokens against a keytab.  It
// implements spnego.Acceptor and is safe for concurrent use.
type Acceptor struct {
	keytab       *keytab.Keytab
	principal    string
	maxClockSkew time.Duration
	decodePAC    bool
	logger       *slog.Logger
}

type AcceptorOption func(a *Acceptor)

// WithKeytabPrincipal selects the keytab entry used to decrypt tickets, instead
// of the service name found in the ticket.
func WithKeytabPrincipal(principal string) AcceptorOption {
	return func(a *Acceptor) {
		a.principal = principal
	}
}

func WithMaxClockSkew(d time.Duration) AcceptorOption {
	return func(a *Acceptor) {
		a.maxClockSkew = d
	}
}

// WithDecodePAC controls decoding of the Microsoft PAC authorization data.
func WithDecodePAC(b bool) AcceptorOption {
	return func(a *Acceptor) {
		a.decodePAC = b
	}
}

func WithAcceptorLogger(l *slog.Logger) AcceptorOption {
	return func(a *Acceptor) {
		a.logger = l
	}
}

func NewAcceptor(kt *keytab.Keytab, opts ...AcceptorOption) *Acceptor {
	a := &Acceptor{
		keytab:       kt,
		maxClockSkew: 5 * time.Minute,
		logger:       slog.Default(),
	}

	for _, o := range opts {
		o(a)
	}

	return a
}

// NewAcceptorFromFile loads the keytab at path.
func NewAcceptorFromFile(path string, opts ...AcceptorOption) (*Acceptor, error) {
	kt, err := keytab.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading keytab %s: %w", path, err)
	}

	return NewAcceptor(kt, opts...), nil
}

// Mechs returns the standard and Microsoft Kerberos OIDs.
func (a *Acceptor) Mechs() []spnego.Oid {
	return []spnego.Oid{spnego.OidKRB5, spnego.OidMSKRB5}
}

func (a *Acceptor) settings() *service.Settings {
	s := []func(*service.Settings){
		service.MaxClockSkew(a.maxClockSkew),
		service.DecodePAC(a.decodePAC),
		service.Logger(slog.NewLogLogger(a.logger.Handler(), slog.LevelDebug)),
	}
	if a.principal != "" {
		s = append(s, service.KeytabPrincipal(a.principal))
	}

	return service.NewSettings(a.keytab, s...)
}

// Accept verifies the AP-REQ carried by req.Token.  When the initiator asked
// for mutual authentication the result carries an AP-REP token.
func (a *Acceptor) Accept(ctx context.Context, req spnego.AcceptRequest) (*spnego.AcceptResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tok kRB5Token
	if err := tok.unmarshal(req.Token); err != nil {
		return nil, fmt.Errorf("%w: %w", spnego.ErrDefectiveToken, err)
	}
	if tok.APReq == nil {
		return nil, fmt.Errorf("%w: expected an AP-REQ token", spnego.ErrDefectiveToken)
	}

	ok, creds, err := service.VerifyAPREQ(tok.APReq, a.settings())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", spnego.ErrDefectiveCredential, err)
	}
	if !ok {
		return nil, spnego.ErrDefectiveCredential
	}

	cksum := tok.APReq.Authenticator.Cksum
	if cksum.CksumType != chksumtype.GSSAPI {
		return nil, fmt.Errorf("%w: authenticator checksum type %d is not GSSAPI", spnego.ErrDefectiveToken, cksum.CksumType)
	}
	gssCksum, err := parseAuthenticatorChksum(cksum.Checksum)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", spnego.ErrDefectiveToken, err)
	}
	if err := verifyChannelBinding(gssCksum.bnd, req.Binding); err != nil {
		return nil, err
	}

	flags := gssCksum.flags
	if types.IsFlagSet(&tok.APReq.APOptions, ianaflags.APOptionMutualRequired) {
		flags |= spnego.ContextFlagMutual
	}

	var respToken []byte
	if flags&spnego.ContextFlagMutual != 0 {
		respToken, err = newMutualAPRepToken(&tok)
		if err != nil {
			return nil, fmt.Errorf("%w: building AP-REP: %w", spnego.ErrFailure, err)
		}
	}

	name := creds.CName().PrincipalNameString() + "@" + creds.Realm()
	a.logger.Debug("verified AP-REQ", "initiator", name, "flags", flags.String())

	return &spnego.AcceptResult{
		Complete:      true,
		ResponseToken: respToken,
		InitiatorName: name,
		Flags:         flags,
		Lifetime:      spnego.LifetimeUntil(creds.ValidUntil()),
	}, nil
}
