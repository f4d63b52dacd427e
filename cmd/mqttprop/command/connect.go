package command

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/DrmagicE/coremqtt/pkg/packets"
)

// NewConnectCmd creates a *cobra.Command object for connect command.
func NewConnectCmd() *cobra.Command {
	var bufSize int
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Encode the CONNECT properties of the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd.OutOrStdout(), bufSize)
		},
	}
	cmd.Flags().IntVar(&bufSize, "buffer-size", 512, "The size of the property buffer")
	return cmd
}

func runConnect(w io.Writer, bufSize int) error {
	c, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()
	b, err := packets.NewPropBuilder(make([]byte, bufSize))
	if err != nil {
		return err
	}
	if err = c.MQTT.BuildConnectProperties(b); err != nil {
		return err
	}
	fmt.Fprintf(w, "properties (%d bytes): %s\n", b.Size(), hex.EncodeToString(b.Bytes()))
	return printProperties(w, b.Bytes())
}
