package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.pilab.hu/authcore/masterkey"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage encrypted configuration secrets",
}

var secretEncryptCmd = &cobra.Command{
	Use:   "encrypt <plaintext>",
	Short: "Encrypt a secret for use in the configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := masterkey.New(masterSecret64, masterIV64)
		if err != nil {
			return err
		}
		encrypted, err := key.Encrypt([]byte(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), encrypted)
		return nil
	},
}

var secretDecryptCmd = &cobra.Command{
	Use:   "decrypt <ciphertext>",
	Short: "Decrypt an encrypted configuration secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := masterkey.New(masterSecret64, masterIV64)
		if err != nil {
			return err
		}
		plaintext, err := key.Decrypt(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(plaintext))
		return nil
	},
}

func init() {
	secretCmd.AddCommand(secretEncryptCmd, secretDecryptCmd)
	rootCmd.AddCommand(secretCmd)
}
