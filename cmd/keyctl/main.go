package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jmerrifield20/keygate/internal/digest"
	"github.com/jmerrifield20/keygate/internal/keygen"
	"github.com/jmerrifield20/keygate/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	adminKey  string
	keySalt   string
	cfgFile   string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "keyctl",
		Short: "Operator CLI for a keygate server",
		Long: `keyctl inspects the keys a keygate server has issued.

Keys are stored only as HMAC digests. Use "keyctl check" with the
server's KEY_SALT to confirm that a key a user presents was really issued.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cfgFile != "" {
				viper.SetConfigFile(cfgFile)
			} else {
				home, _ := os.UserHomeDir()
				viper.AddConfigPath(home + "/.keyctl")
				viper.SetConfigName("config")
				viper.SetConfigType("yaml")
			}
			viper.AutomaticEnv()
			_ = viper.ReadInConfig()

			if serverURL == "" {
				serverURL = viper.GetString("server_url")
			}
			if serverURL == "" {
				serverURL = "http://localhost:8080"
			}
			if adminKey == "" {
				adminKey = viper.GetString("admin_key")
			}
			if keySalt == "" {
				keySalt = viper.GetString("key_salt")
			}
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.keyctl/config.yaml)")
	root.PersistentFlags().StringVar(&serverURL, "server", "", "keygate server URL (default http://localhost:8080)")
	root.PersistentFlags().StringVar(&adminKey, "admin-key", "", "admin secret (env ADMIN_KEY)")
	root.PersistentFlags().StringVar(&keySalt, "salt", "", "HMAC salt used by the server (env KEY_SALT)")

	root.AddCommand(newListCmd(), newDigestCmd(), newCheckCmd(), newGenerateCmd(), newVersionCmd())
	return root
}

// ── list ─────────────────────────────────────────────────────────────────────

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every completion hash that has been exchanged for a key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			c := client.New(serverURL, client.WithAdminKey(adminKey))
			keys, err := c.ListIssued(ctx)
			if errors.Is(err, client.ErrForbidden) {
				return fmt.Errorf("server rejected the admin key (set --admin-key or ADMIN_KEY)")
			}
			if err != nil {
				return err
			}
			writeKeyTable(cmd.OutOrStdout(), keys)
			return nil
		},
	}
}

func writeKeyTable(out io.Writer, keys []client.IssuedKey) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HASH\tCREATED\tKEY DIGEST")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\t%s\n", k.Hash, k.Created.UTC().Format(time.RFC3339), k.KeyHash)
	}
	w.Flush() //nolint:errcheck
	fmt.Fprintf(out, "\n%d key(s) issued\n", len(keys))
}

// ── digest ───────────────────────────────────────────────────────────────────

func newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest <key>",
		Short: "Print the digest the server would store for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keySalt == "" {
				return errors.New("--salt (or KEY_SALT) is required")
			}
			fmt.Fprintln(cmd.OutOrStdout(), digest.NewHasher(keySalt).Digest(args[0]))
			return nil
		},
	}
}

// ── check ────────────────────────────────────────────────────────────────────

func newCheckCmd() *cobra.Command {
	var want string
	cmd := &cobra.Command{
		Use:   "check <key>",
		Short: "Check a key against a stored digest",
		Long: `check re-hashes the key with the server salt and compares it to the
digest given with --digest, or, when --digest is omitted, to every digest
returned by the server's admin listing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keySalt == "" {
				return errors.New("--salt (or KEY_SALT) is required")
			}
			key := args[0]
			if !keygen.Valid(key) {
				return fmt.Errorf("%q is not a well-formed key", key)
			}
			h := digest.NewHasher(keySalt)

			if want != "" {
				if !h.Match(key, want) {
					return errors.New("key does not match digest")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "key matches digest")
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			keys, err := client.New(serverURL, client.WithAdminKey(adminKey)).ListIssued(ctx)
			if err != nil {
				return err
			}
			for _, k := range keys {
				if h.Match(key, k.KeyHash) {
					fmt.Fprintf(cmd.OutOrStdout(), "key was issued for hash %s at %s\n",
						k.Hash, k.Created.UTC().Format(time.RFC3339))
					return nil
				}
			}
			return errors.New("key was not issued by this server")
		},
	}
	cmd.Flags().StringVar(&want, "digest", "", "expected digest (hex)")
	return cmd
}

// ── generate ─────────────────────────────────────────────────────────────────

func newGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Print a freshly generated key (not recorded anywhere)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keygen.Generate()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

// ── version ──────────────────────────────────────────────────────────────────

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the keyctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "keyctl %s\n", version)
		},
	}
}
