// =============================================================================
// X9 Cash Letter Encoder - Seal Command
// =============================================================================
//
// MICR lines and bank account attributes can be stored sealed ("enc:...")
// in manifests and profiles. This command creates the key and seals values.
//
// COMMAND USAGE:
//   x9export seal key                 # print a new X9_SEAL_KEY
//   x9export seal value <plaintext>   # seal with the key from X9_SEAL_KEY
//
// =============================================================================

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/x9-cash-letter/internal/secure"
)

// sealCmd groups the sealing subcommands.
var sealCmd = &cobra.Command{
	Use:   "seal",
	Short: "Generate a sealing key or seal a value",
}

var sealKeyCmd = &cobra.Command{
	Use:   "key",
	Short: "Print a new random sealing key",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := secure.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Printf("%s=%s\n", secure.KeyEnv, key)
		return nil
	},
}

var sealValueCmd = &cobra.Command{
	Use:   "value [plaintext]",
	Short: "Seal a value; reads stdin when no argument is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
		sealer, err := secure.FromEnv()
		if err != nil {
			return err
		}
		if sealer == nil {
			return fmt.Errorf("%s is not set; create one with 'x9export seal key'", secure.KeyEnv)
		}

		plain := ""
		if len(args) == 1 {
			plain = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read value: %w", err)
			}
			plain = strings.TrimRight(line, "\r\n")
		}

		sealed, err := sealer.Seal(plain)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sealed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sealCmd)
	sealCmd.AddCommand(sealKeyCmd, sealValueCmd)
}
