package cli

import (
	"fmt"

	"github.com/open-rails/castingkit/config"
	"github.com/spf13/cobra"
)

// cmdJWKS fetches the configured key set once and lists it, to check the
// issuer configuration before starting the API.
func cmdJWKS() *cobra.Command {
	return &cobra.Command{
		Use:   "jwks",
		Short: "Fetch the issuer's signing keys and print their ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			rdb := newRedis(cfg)
			if rdb != nil {
				defer rdb.Close()
			}
			keys, err := newKeySet(cfg, log, rdb)
			if err != nil {
				return err
			}

			set, err := keys.Current(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch %s: %w", keys.URL(), err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", keys.URL())
			for _, kid := range set.KeyIDs() {
				k := set[kid]
				alg := k.Algorithm
				if alg == "" {
					alg = "-"
				}
				fmt.Fprintf(out, "%s\t%s\t%T\n", kid, alg, k.Public)
			}
			return nil
		},
	}
}
