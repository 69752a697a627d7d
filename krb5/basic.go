// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"

	spnego "github.com/golang-auth/go-spnego"
)

// BasicValidator checks HTTP Basic credentials by logging in to the KDC with
// them.  It is the fallback for clients that cannot do Negotiate.
type BasicValidator struct {
	cfg    *config.Config
	realm  string
	logger *slog.Logger

	// login is replaced in tests
	login func(username, realm, password string) error
}

// NewBasicValidator returns a validator for users of the given default realm.  A
// username of the form user@REALM overrides the default realm.
func NewBasicValidator(cfg *config.Config, realm string, logger *slog.Logger) *BasicValidator {
	if logger == nil {
		logger = slog.Default()
	}

	v := &BasicValidator{cfg: cfg, realm: realm, logger: logger}
	v.login = v.kdcLogin

	return v
}

func (v *BasicValidator) kdcLogin(username, realm, password string) error {
	cl := client.NewWithPassword(username, realm, password, v.cfg, client.DisablePAFXFAST(true))
	defer cl.Destroy()

	return cl.Login()
}

// Validate returns the principal name of the authenticated user.
func (v *BasicValidator) Validate(ctx context.Context, username, password string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if username == "" || password == "" {
		return "", fmt.Errorf("%w: empty username or password", spnego.ErrNoCred)
	}

	realm := v.realm
	if user, r, ok := strings.Cut(username, "@"); ok {
		username, realm = user, r
	}
	if realm == "" {
		if v.cfg == nil {
			return "", errors.New("no realm for Basic credentials")
		}
		realm = v.cfg.LibDefaults.DefaultRealm
	}
	if realm == "" {
		return "", errors.New("no realm for Basic credentials")
	}

	principal := username + "@" + realm
	if err := v.login(username, realm, password); err != nil {
		v.logger.Debug("basic login failed", "principal", principal, "error", err)
		return "", fmt.Errorf("%w: %w", spnego.ErrDefectiveCredential, err)
	}

	return principal, nil
}
