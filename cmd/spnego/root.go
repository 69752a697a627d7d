// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spnego",
		Short: "SPNEGO token and HTTP Negotiate tool",
		Long: `spnego decodes and repairs SPNEGO tokens as found in HTTP Negotiate
headers, and can run a Negotiate protected echo server backed by a keytab.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newDecodeCmd())
	rootCmd.AddCommand(newFixJDKCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}
