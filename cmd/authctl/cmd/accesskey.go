package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"go.pilab.hu/authcore/token"
)

var (
	keySecret    string
	keyUser      string
	keyMethods   []string
	keyPaths     []string
	keyTemporary bool
)

var accessKeyCmd = &cobra.Command{
	Use:   "accesskey",
	Short: "Mint and inspect API access keys",
}

var accessKeyMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a new API access key",
	Long: `Mint a signed API access key in the compact encoding. The key is
printed once and not stored; register durable keys with the server so they
can be revoked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if keyUser == "" {
			return fmt.Errorf("--user is required")
		}
		codec := token.NewCompactCodec(token.NewSigner([]byte(keySecret)))
		key := token.NewAPIAccessKey(keyUser, keyMethods, keyPaths, keyTemporary)
		encoded, err := codec.Encode(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "key id: %s\n%s\n", key.ID, encoded)
		return nil
	},
}

var accessKeyInspectCmd = &cobra.Command{
	Use:   "inspect <key>",
	Short: "Verify and print an API access key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec := token.NewCompactCodec(token.NewSigner([]byte(keySecret)))
		key, err := codec.Decode(args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(key, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	accessKeyCmd.PersistentFlags().StringVar(&keySecret, "secret", "lab-environment",
		"token signing secret (plaintext)")
	accessKeyMintCmd.Flags().StringVar(&keyUser, "user", "", "user the key acts as")
	accessKeyMintCmd.Flags().StringSliceVar(&keyMethods, "method", nil,
		"HTTP methods the key allows (default: all)")
	accessKeyMintCmd.Flags().StringSliceVar(&keyPaths, "path", nil,
		"path patterns the key allows (default: all)")
	accessKeyMintCmd.Flags().BoolVar(&keyTemporary, "temporary", false,
		"mint a self-expiring temporary key")
	accessKeyCmd.AddCommand(accessKeyMintCmd, accessKeyInspectCmd)
	rootCmd.AddCommand(accessKeyCmd)
}
