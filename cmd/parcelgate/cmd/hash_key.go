package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parcelgate/parcelgate/internal/domain/auth"
)

var hashKeyArgon2id bool

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <key>",
	Short: "Hash an API key for use in auth.api_keys",
	Long: `Hashes an API key so the plaintext never has to appear in the
config file. The output goes directly into auth.api_keys.

By default the key is hashed with SHA-256. Pass --argon2id for a salted
Argon2id hash; verification is slower but resistant to offline guessing.

Note: the key is passed as an argument and may end up in shell history.
Prefer reading it from a file or environment variable in scripts.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if hashKeyArgon2id {
			hash, err := auth.HashKeyArgon2id(args[0])
			if err != nil {
				return fmt.Errorf("failed to hash key: %w", err)
			}
			fmt.Println(hash)
			return nil
		}
		fmt.Println("sha256:" + auth.HashKey(args[0]))
		return nil
	},
}

func init() {
	hashKeyCmd.Flags().BoolVar(&hashKeyArgon2id, "argon2id", false, "use Argon2id instead of SHA-256")
	rootCmd.AddCommand(hashKeyCmd)
}
