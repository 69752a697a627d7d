// SPDX-License-Identifier: Apache-2.0

package krb5

import (
	"context"
	"errors"
	"testing"

	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/test/testdata"
	"github.com/stretchr/testify/assert"

	spnego "github.com/golang-auth/go-spnego"
	"github.com/golang-auth/go-spnego/test"
)

type loginCall struct {
	username, realm, password string
}

func stubValidator(t *testing.T, cfg *config.Config, realm string, loginErr error) (*BasicValidator, *[]loginCall) {
	var calls []loginCall

	v := NewBasicValidator(cfg, realm, nil)
	v.login = func(username, realm, password string) error {
		calls = append(calls, loginCall{username, realm, password})
		return loginErr
	}

	return v, &calls
}

func TestBasicValidator(t *testing.T) {
	cfg, err := config.NewFromString(testdata.KRB5_CONF)
	if err != nil {
		t.Fatalf("loading krb5.conf: %v", err)
	}

	tests := []struct {
		name      string
		realm     string
		username  string
		principal string
		login     loginCall
	}{
		{"default realm from config", "", "alice", "alice@TEST.GOKRB5", loginCall{"alice", "TEST.GOKRB5", "secret"}},
		{"configured realm", "EXAMPLE.COM", "alice", "alice@EXAMPLE.COM", loginCall{"alice", "EXAMPLE.COM", "secret"}},
		{"realm in username", "EXAMPLE.COM", "bob@OTHER.ORG", "bob@OTHER.ORG", loginCall{"bob", "OTHER.ORG", "secret"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert := test.NewAssert(t)

			v, calls := stubValidator(t, cfg, tt.realm, nil)
			principal, err := v.Validate(context.Background(), tt.username, "secret")
			assert.NoErrorFatal(err)
			assert.Equal(tt.principal, principal)
			assert.Equal([]loginCall{tt.login}, *calls)
		})
	}
}

func TestBasicValidatorFailures(t *testing.T) {
	assert := test.NewAssert(t)

	v, calls := stubValidator(t, nil, "EXAMPLE.COM", errors.New("preauth failed"))

	_, err := v.Validate(context.Background(), "", "secret")
	assert.ErrorIs(err, spnego.ErrNoCred)
	_, err = v.Validate(context.Background(), "alice", "")
	assert.ErrorIs(err, spnego.ErrNoCred)
	assert.Empty(*calls)

	_, err = v.Validate(context.Background(), "alice", "wrong")
	assert.ErrorIs(err, spnego.ErrDefectiveCredential)
	assert.Len(*calls, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = v.Validate(ctx, "alice", "secret")
	assert.ErrorIs(err, context.Canceled)
}

func TestBasicValidatorNoRealm(t *testing.T) {
	v, calls := stubValidator(t, nil, "", nil)

	_, err := v.Validate(context.Background(), "alice", "secret")
	assert.Error(t, err)
	assert.Empty(t, *calls)
}
