package cli

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	keygenBytes  int
	keygenExport bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an API key for the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		n := keygenBytes
		if n < 16 {
			n = 16
		}

		raw := make([]byte, n)
		if _, err := rand.Read(raw); err != nil {
			return fmt.Errorf("read entropy: %w", err)
		}

		key := base64.RawURLEncoding.EncodeToString(raw)
		if keygenExport {
			fmt.Fprintf(cmd.OutOrStdout(), "export HELEAKS_AUTH_API_KEYS=%q\n", key)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

func init() {
	keygenCmd.Flags().IntVar(&keygenBytes, "bytes", 32, "Entropy bytes (minimum 16)")
	keygenCmd.Flags().BoolVar(&keygenExport, "export", false, "Print as shell export line")
}
