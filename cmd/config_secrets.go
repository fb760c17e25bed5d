package cmd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/8b-is/feedgate/internal/credential"
	"github.com/8b-is/feedgate/internal/token"
)

var configHashPasswordCmd = &cobra.Command{
	Use:   "hash-password [PASSWORD]",
	Short: "Hash an admin password for the admins section",
	Long: `Prints the "sha256:<hex>" form accepted as admins[].password_hash.
If no argument is given the password is read from stdin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var password string
		if len(args) == 1 {
			password = args[0]
		} else {
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading password from stdin: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if password == "" {
			return fmt.Errorf("password cannot be empty")
		}
		fmt.Println(credential.HashPassword(password))
		return nil
	},
}

var configGenerateKeyCmd = &cobra.Command{
	Use:   "generate-key",
	Short: "Generate a random signing key for auth.signing_key",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := token.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(key))
		return nil
	},
}

var configGenerateSecretCmd = &cobra.Command{
	Use:   "generate-secret",
	Short: "Generate a random agent secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := credential.GenerateSecret()
		if err != nil {
			return err
		}
		fmt.Println(secret)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configHashPasswordCmd, configGenerateKeyCmd, configGenerateSecretCmd)
}
