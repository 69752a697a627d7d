// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/iana/chksumtype"
	ianaflags "github.com/jcmturner/gokrb5/v8/iana/flags"
	"github.com/jcmturner/gokrb5/v8/keytab"
	"github.com/jcmturner/gokrb5/v8/messages"
	"github.com/jcmturner/gokrb5/v8/types"

	spnego "github.com/golang-auth/go-spnego"
)

// flags the Kerberos mechanism can honour
const supportedFlags = spnego.ContextFlagConf | spnego.ContextFlagInteg |
	spnego.ContextFlagMutual | spnego.ContextFlagReplay | spnego.ContextFlagSequence

// Initiator establishes a Kerberos context with a service.  It implements
// spnego.Initiator; an Initiator holds the state of one context and must not be
// shared between concurrent exchanges.
type Initiator struct {
	krbClient *client.Client
	mech      spnego.Oid
	logger    *slog.Logger

	isEstablished    bool
	waitingForMutual bool
	service          string
	ticket           *messages.Ticket
	sessionKey       *types.EncryptionKey
	clientCTime      time.Time
	clientCusec      int
	sessionFlags     spnego.ContextFlag
}

type InitiatorOption func(i *Initiator)

// WithMech sets the Kerberos OID placed in tokens.  Some Windows peers expect the
// Microsoft OID (spnego.OidMSKRB5).
func WithMech(oid spnego.Oid) InitiatorOption {
	return func(i *Initiator) {
		i.mech = oid
	}
}

func WithInitiatorLogger(l *slog.Logger) InitiatorOption {
	return func(i *Initiator) {
		i.logger = l
	}
}

// NewInitiator returns an initiator using an existing gokrb5 client.
func NewInitiator(cl *client.Client, opts ...InitiatorOption) *Initiator {
	i := &Initiator{
		krbClient: cl,
		mech:      spnego.OidKRB5,
		logger:    slog.Default(),
	}

	for _, o := range opts {
		o(i)
	}

	return i
}

// NewInitiatorFromCCache returns an initiator using the credentials cache named by
// KRB5CCNAME and the configuration named by KRB5_CONFIG.
func NewInitiatorFromCCache(opts ...InitiatorOption) (*Initiator, error) {
	cfg, err := LoadConfig("")
	if err != nil {
		return nil, err
	}

	ccache, err := credentials.LoadCCache(krbCCFile())
	if err != nil {
		return nil, fmt.Errorf("loading credentials cache: %w", err)
	}

	cl, err := client.NewFromCCache(ccache, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating krb5 client: %w", err)
	}

	return NewInitiator(cl, opts...), nil
}

// NewInitiatorWithKeytab returns an initiator that logs in as username@realm
// using a key from kt.
func NewInitiatorWithKeytab(username, realm string, kt *keytab.Keytab, cfg *config.Config, opts ...InitiatorOption) *Initiator {
	cl := client.NewWithKeytab(username, realm, kt, cfg, client.DisablePAFXFAST(true))
	return NewInitiator(cl, opts...)
}

// NewInitiatorWithPassword returns an initiator that logs in as username@realm
// with a password.
func NewInitiatorWithPassword(username, realm, password string, cfg *config.Config, opts ...InitiatorOption) *Initiator {
	cl := client.NewWithPassword(username, realm, password, cfg, client.DisablePAFXFAST(true))
	return NewInitiator(cl, opts...)
}

func (m *Initiator) Mech() spnego.Oid {
	return m.mech
}

func (m *Initiator) Established() bool {
	return m.isEstablished
}

func (m *Initiator) Flags() (f spnego.ContextFlag) {
	if m.isEstablished {
		f = m.sessionFlags
	}
	return
}

// Init obtains a service ticket for target and returns the AP-REQ token.  The
// target may be a Kerberos service principal ("HTTP/host.example.com") or a GSS
// host-based service name ("HTTP@host.example.com").
func (m *Initiator) Init(ctx context.Context, target string, requestFlags spnego.ContextFlag, binding *spnego.ChannelBinding) ([]byte, error) {
	m.isEstablished = false
	m.waitingForMutual = false

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Obtain a Kerberos ticket for the service
	if err := m.krbInit(servicePrincipal(target)); err != nil {
		return nil, err
	}

	return m.initToken(requestFlags, binding)
}

// initToken builds the AP-REQ token once a service ticket is available.
func (m *Initiator) initToken(requestFlags spnego.ContextFlag, binding *spnego.ChannelBinding) ([]byte, error) {
	// Stash the subset of the request flags that we support
	m.sessionFlags = requestFlags & supportedFlags

	// Create a Kerberos AP-REQ message with GSSAPI checksum
	apreq, err := m.getAPReqMessage(binding)
	if err != nil {
		return nil, err
	}

	gssToken := newKRB5Token(m.mech, TOK_ID_KRB_AP_REQ)
	gssToken.APReq = &apreq

	tokenOut, err := gssToken.marshal()
	if err != nil {
		return nil, err
	}

	// we need another round if we're doing mutual auth - we will receive an AP-REP from the server
	if m.sessionFlags&spnego.ContextFlagMutual == 0 {
		m.isEstablished = true
	} else {
		m.waitingForMutual = true
	}

	m.logger.Debug("created AP-REQ", "service", m.service, "flags", m.sessionFlags.String())
	return tokenOut, nil
}

// Continue verifies the acceptor's AP-REP when mutual authentication was requested.
func (m *Initiator) Continue(ctx context.Context, tokenIn []byte) error {
	if m.isEstablished {
		return errors.New("context already established")
	}

	if !m.waitingForMutual {
		return errors.New("context is not ready, call Init to initalize a new context")
	}

	gssToken := kRB5Token{}
	if err := gssToken.unmarshal(tokenIn); err != nil {
		return fmt.Errorf("%w: %w", spnego.ErrDefectiveToken, err)
	}
	if gssToken.KRBError != nil {
		return fmt.Errorf("%w: %w", spnego.ErrFailure, *gssToken.KRBError)
	}
	if gssToken.APRep == nil {
		return fmt.Errorf("%w: expected an AP-REP token", spnego.ErrDefectiveToken)
	}

	// decrypt the private part of the AP-REP message
	msg, err := gssToken.APRep.decryptEncPart(*m.sessionKey)
	if err != nil {
		return err
	}

	// check the response has the same time values as the request
	// Note - we can't use time.Equal() as m.clientCTime has a monotomic clock value and
	// which causes the equality to fail
	if !(msg.CTime.Unix() == m.clientCTime.Unix() && msg.Cusec == m.clientCusec) {
		return fmt.Errorf("%w: mutual authentication failed", spnego.ErrUnauthorized)
	}

	// we're done!
	m.isEstablished = true
	m.waitingForMutual = false
	return nil
}

func (m *Initiator) getAPReqMessage(binding *spnego.ChannelBinding) (apreq messages.APReq, err error) {
	auth, err := types.NewAuthenticator(m.krbClient.Credentials.Domain(), m.krbClient.Credentials.CName())
	if err != nil {
		err = fmt.Errorf("generating new authenticator: %w", err)
		return
	}

	auth.Cksum = types.Checksum{
		CksumType: chksumtype.GSSAPI,
		Checksum:  newAuthenticatorChksum(m.sessionFlags, binding),
	}

	apreq, err = messages.NewAPReq(*m.ticket, *m.sessionKey, auth)
	if err != nil {
		return
	}

	// set the Kerberos APREQ MUTUAL-REQUIRED option if we've been asked to perform mutual auth
	if m.sessionFlags&spnego.ContextFlagMutual != 0 {
		types.SetFlag(&apreq.APOptions, ianaflags.APOptionMutualRequired)
	}

	// stash the APReq time flags for use in mutual authentication
	m.clientCTime = auth.CTime
	m.clientCusec = auth.Cusec

	return
}

func (m *Initiator) krbInit(service string) error {
	if err := m.krbClient.AffirmLogin(); err != nil {
		return fmt.Errorf("%w: checking TGT: %w", spnego.ErrNoCred, err)
	}

	tkt, key, err := m.krbClient.GetServiceTicket(service)
	if err != nil {
		return fmt.Errorf("getting service ticket for '%s': %w", service, err)
	}
	m.ticket, m.sessionKey, m.service = &tkt, &key, service

	return nil
}

// servicePrincipal converts a GSS host-based service name to a Kerberos
// principal name.
func servicePrincipal(target string) string {
	if strings.Contains(target, "/") {
		return target
	}

	return strings.Replace(target, "@", "/", 1)
}

// LoadConfig loads a krb5.conf file.  An empty path means KRB5_CONFIG or the
// system default.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = krbConfFile()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading krb5.conf: %w", err)
	}

	return cfg, nil
}

func krbConfFile() string {
	cfgFile, ok := os.LookupEnv("KRB5_CONFIG")
	if !ok {
		cfgFile = "/etc/krb5.conf"
	}

	return cfgFile
}

func krbCCFile() string {
	ccFile, ok := os.LookupEnv("KRB5CCNAME")
	if !ok {
		ccFile = fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
	}

	return strings.TrimPrefix(ccFile, "FILE:")
}
