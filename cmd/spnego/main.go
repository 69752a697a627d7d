// SPDX-License-Identifier: Apache-2.0

// Command spnego inspects SPNEGO tokens and runs a Negotiate protected test server.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
