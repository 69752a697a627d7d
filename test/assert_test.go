// SPDX-License-Identifier: Apache-2.0

package test

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

// failed runs fn against a detached testing.T, in its own goroutine so that
// FailNow only stops fn, and reports whether it failed.
func failed(fn func(a *Assert)) bool {
	tt := &testing.T{}
	done := make(chan struct{})

	go func() {
		defer close(done)
		fn(NewAssert(tt))
	}()
	<-done

	return tt.Failed()
}

func TestFatalHelpers(t *testing.T) {
	wrapped := fmt.Errorf("opening keytab: %w", &fs.PathError{Op: "open", Path: "/etc/krb5.keytab", Err: fs.ErrNotExist})

	tests := []struct {
		name     string
		fn       func(a *Assert)
		wantFail bool
	}{
		{"no error", func(a *Assert) { a.NoErrorFatal(nil) }, false},
		{"error", func(a *Assert) { a.NoErrorFatal(errors.New("no credentials")) }, true},
		{"error as match", func(a *Assert) {
			var pe *fs.PathError
			a.ErrorAsFatal(wrapped, &pe)
		}, false},
		{"error as mismatch", func(a *Assert) {
			var le *fs.PathError
			a.ErrorAsFatal(errors.New("no credentials"), &le)
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := failed(tt.fn); got != tt.wantFail {
				t.Errorf("failed = %v, want %v", got, tt.wantFail)
			}
		})
	}
}

func TestFatalStopsTest(t *testing.T) {
	reached := false
	failed(func(a *Assert) {
		a.NoErrorFatal(errors.New("no credentials"))
		reached = true
	})

	if reached {
		t.Error("test continued after a fatal error")
	}
}

func TestNewAssert(t *testing.T) {
	assert := NewAssert(t)
	assert.NotNil(assert.Assertions)
}
