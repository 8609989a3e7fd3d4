package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "castingd",
	Short: "Casting agency API with permission-gated bearer authentication",
}

func Execute() error { return rootCmd.Execute() }

func init() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "YAML config file (environment variables override it)")
	rootCmd.AddCommand(cmdServe(), cmdJWKS(), cmdVersion())

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}
