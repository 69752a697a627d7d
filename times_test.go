// SPDX-License-Identifier: Apache-2.0

package spnego

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMakeGssLifetime(t *testing.T) {
	l := MakeGssLifetime(time.Hour)
	assert.Equal(t, GssLifetimeAvailable, l.Status)
	assert.WithinDuration(t, time.Now().Add(time.Hour), l.ExpiresAt, time.Minute)
	assert.True(t, l.Remaining() > 59*time.Minute)

	l = MakeGssLifetime(0)
	assert.Equal(t, GssLifetimeExpired, l.Status)
	assert.Zero(t, l.Remaining())
}

func TestLifetimeUntil(t *testing.T) {
	l := LifetimeUntil(time.Time{})
	assert.Equal(t, GssLifetimeIndefinite, l.Status)
	assert.True(t, l.Remaining() > 100*365*24*time.Hour)

	l = LifetimeUntil(time.Now().Add(-time.Second))
	assert.Equal(t, GssLifetimeExpired, l.Status)

	end := time.Now().Add(10 * time.Hour)
	l = LifetimeUntil(end)
	assert.Equal(t, GssLifetimeAvailable, l.Status)
	assert.WithinDuration(t, end, l.ExpiresAt, time.Second)
}
