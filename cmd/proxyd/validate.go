package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/llmgateway/proxycore/internal/config"
)

// validateConfigCmd loads and validates the configured file without
// starting the server, exiting 1 on a config error per spec's exit codes.
func validateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate the proxy configuration, then exit",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			if errs := config.Validate(cfg); len(errs) > 0 {
				for _, e := range errs {
					fmt.Fprintln(os.Stderr, e)
				}
				os.Exit(1)
			}
			fmt.Println("config OK")
		},
	}
}
