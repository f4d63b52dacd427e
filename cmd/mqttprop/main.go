package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/DrmagicE/coremqtt/cmd/mqttprop/command"
)

var Version = "unknown"

var (
	rootCmd = &cobra.Command{
		Use:     "mqttprop",
		Long:    "mqttprop encodes MQTT v5.0 properties, serializes PUBLISH packets and decodes acknowledgments",
		Version: Version,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&command.ConfigFile, "config", "c", "", "The configuration file path")

	rootCmd.AddCommand(command.NewConnectCmd())
	rootCmd.AddCommand(command.NewPublishCmd())
	rootCmd.AddCommand(command.NewDecodeAckCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
