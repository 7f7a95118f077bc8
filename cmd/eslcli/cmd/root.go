// Package cmd implements the eslcli command tree: a thin wrapper over
// the client facade for manual verification against a real or mocked
// FreeSWITCH instance, grounded on
// icegreg-chat-smpl/cmd/rtuccli/cmd/root.go's cobra skeleton.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	host     string
	port     int
	password string
)

var rootCmd = &cobra.Command{
	Use:     "eslcli",
	Short:   "eslcli - FreeSWITCH Event Socket client",
	Long:    `eslcli dials or listens for FreeSWITCH Event Socket connections and prints events as they arrive.`,
	Version: "1.0.0",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&host, "host", getEnv("ESL_HOST", "127.0.0.1"), "FreeSWITCH ESL host (inbound mode)")
	rootCmd.PersistentFlags().IntVar(&port, "port", 8021, "FreeSWITCH ESL port")
	rootCmd.PersistentFlags().StringVar(&password, "password", getEnv("ESL_PASSWORD", "ClueCon"), "FreeSWITCH ESL password")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
