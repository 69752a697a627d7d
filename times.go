// SPDX-License-Identifier: Apache-2.0

package spnego

import "time"

// GssLifetimeStatus defines the possible states of a GssLifetime
// instance
type GssLifetimeStatus int

const (
	// Indicates that the lifetime ExpiresAt value is valid
	GssLifetimeAvailable GssLifetimeStatus = iota

	// Indicates that the lifetime has expired and the ExpiresAt value is not valid
	GssLifetimeExpired

	// Indicates that the lifetime is indefinite;  the ExpiresAt value is not valid
	GssLifetimeIndefinite
)

// GssLifetime represents the lifetime of an established context, usually the
// end time of the Kerberos ticket that authenticated it.
type GssLifetime struct {
	Status    GssLifetimeStatus
	ExpiresAt time.Time
}

func MakeGssLifetime(lifetime time.Duration) *GssLifetime {
	status := GssLifetimeAvailable
	if lifetime <= 0 {
		status = GssLifetimeExpired
	}

	return &GssLifetime{
		Status:    status,
		ExpiresAt: time.Now().Add(lifetime),
	}
}

// LifetimeUntil returns the lifetime of a context that expires at end.  A zero
// end time means the lifetime is indefinite.
func LifetimeUntil(end time.Time) *GssLifetime {
	if end.IsZero() {
		return &GssLifetime{Status: GssLifetimeIndefinite}
	}

	return MakeGssLifetime(time.Until(end))
}

// Remaining returns the time left before expiry, zero once expired.
func (l *GssLifetime) Remaining() time.Duration {
	switch l.Status {
	case GssLifetimeIndefinite:
		return time.Duration(1<<63 - 1)
	case GssLifetimeExpired:
		return 0
	}

	if d := time.Until(l.ExpiresAt); d > 0 {
		return d
	}
	return 0
}
