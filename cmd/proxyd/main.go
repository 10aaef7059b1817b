// Command proxyd runs the interactive LLM proxy's HTTP server. Grounded on
// vanducng-goclaw's cmd/root.go cobra layout (persistent --config flag,
// subcommands added in init), generalized from goclaw's gateway/agent
// command tree to this proxy's two-verb surface: serve and validate-config.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "proxyd",
	Short: "proxyd — interactive LLM proxy",
	Long:  "proxyd fronts OpenAI, Anthropic, and Gemini compatible backends behind one session-aware HTTP API, with in-band commands, failover routing, and response steering.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.proxycore/config.yaml)")
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(validateConfigCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("proxyd dev")
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
