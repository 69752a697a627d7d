// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	spnego "github.com/golang-auth/go-spnego"
)

// decodedToken is the YAML view of a Negotiate token.
type decodedToken struct {
	Type          string   `yaml:"type"`
	Mech          string   `yaml:"mech,omitempty"`
	JDKFixed      bool     `yaml:"jdkFixed,omitempty"`
	MechTypes     []string `yaml:"mechTypes,omitempty"`
	ReqFlags      []string `yaml:"reqFlags,omitempty"`
	MechToken     *blob    `yaml:"mechToken,omitempty"`
	MechListMIC   *blob    `yaml:"mechListMIC,omitempty"`
	NegState      string   `yaml:"negState,omitempty"`
	SupportedMech string   `yaml:"supportedMech,omitempty"`
	ResponseToken *blob    `yaml:"responseToken,omitempty"`
}

type blob struct {
	Length      int    `yaml:"length"`
	Fingerprint string `yaml:"sha256"`
	Hex         string `yaml:"hex,omitempty"`
}

func newBlob(b []byte, withHex bool) *blob {
	if b == nil {
		return nil
	}

	bl := &blob{Length: len(b), Fingerprint: spnego.Fingerprint(b)}
	if withHex {
		bl.Hex = hex.EncodeToString(b)
	}
	return bl
}

func mechName(oid spnego.Oid) string {
	if m, err := spnego.MechFromOid(oid); err == nil {
		return fmt.Sprintf("%s (%s)", oid, m)
	}
	return oid.String()
}

func flagNames(f spnego.ContextFlag) (names []string) {
	for _, fl := range spnego.FlagList(f) {
		names = append(names, spnego.FlagName(fl))
	}
	return
}

// readToken returns the raw token from the argument, or from in when there
// is no argument.  A full "Negotiate <token>" header value is accepted.
func readToken(args []string, in io.Reader) ([]byte, error) {
	var text string
	if len(args) > 0 {
		text = args[0]
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		text = line
	}

	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "Authorization: ")
	text = strings.TrimPrefix(text, "WWW-Authenticate: ")

	if strings.HasPrefix(text, "Negotiate ") {
		auth, err := spnego.ParseAuthHeader(text)
		if err != nil {
			return nil, err
		}
		return auth.DecodeToken()
	}

	b, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 token: %w", err)
	}
	if len(b) == 0 {
		return nil, errors.New("empty token")
	}
	return b, nil
}

func describeToken(raw []byte, withHex bool) (*decodedToken, error) {
	fixed := spnego.FixJDKRegression(raw)
	out := &decodedToken{JDKFixed: !bytes.Equal(fixed, raw)}

	if mech, err := spnego.PeekMech(fixed); err == nil && mech != spnego.OidSPNEGO {
		out.Type = "mechanism token"
		out.Mech = mechName(mech)
		out.MechToken = newBlob(fixed, withHex)
		return out, nil
	}

	tok, err := spnego.Decode(fixed)
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case *spnego.NegTokenInit:
		out.Type = "NegTokenInit"
		for _, m := range t.MechTypes() {
			out.MechTypes = append(out.MechTypes, mechName(m))
		}
		out.ReqFlags = flagNames(t.ContextFlags())
		out.MechToken = newBlob(t.MechToken(), withHex)
		out.MechListMIC = newBlob(t.MechListMIC(), withHex)
	case *spnego.NegTokenTarg:
		out.Type = "NegTokenTarg"
		out.NegState = t.Result().String()
		if m := t.SupportedMech(); !m.IsZero() {
			out.SupportedMech = mechName(m)
		}
		out.ResponseToken = newBlob(t.ResponseToken(), withHex)
		out.MechListMIC = newBlob(t.MechListMIC(), withHex)
	}

	return out, nil
}

func newDecodeCmd() *cobra.Command {
	var withHex bool

	cmd := &cobra.Command{
		Use:   "decode [token]",
		Short: "Decode a base64 SPNEGO token and print it as YAML",
		Long: `Decode a base64 SPNEGO token, or a whole "Negotiate <token>" header
value, and print its fields as YAML.  The token is read from standard input
when no argument is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readToken(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			out, err := describeToken(raw, withHex)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(out); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.Flags().BoolVar(&withHex, "hex", false, "include hex dumps of embedded tokens")

	return cmd
}

func newFixJDKCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fix-jdk [token]",
		Short: "Repair the mechanism list of a token from an affected JDK",
		Long: `Reorder the mechanism list of a NegTokenInit produced by JDKs affected by
bug 8078439, so that the Kerberos OID comes first.  Other tokens are printed
unchanged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readToken(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			fixed := spnego.FixJDKRegression(raw)
			if bytes.Equal(fixed, raw) {
				cmd.PrintErrln("token unchanged")
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(fixed))
			return err
		},
	}
}
