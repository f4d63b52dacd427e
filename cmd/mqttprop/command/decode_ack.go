package command

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/DrmagicE/coremqtt/pkg/packets"
)

// NewDecodeAckCmd creates a *cobra.Command object for decode-ack command.
func NewDecodeAckCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "decode-ack <hex>",
		Short:   "Decode a MQTT v5.0 acknowledgment packet",
		Example: "mqttprop decode-ack 400400018000",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecodeAck(cmd.OutOrStdout(), args[0])
		},
	}
}

func runDecodeAck(w io.Writer, s string) error {
	c, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	s = strings.TrimPrefix(strings.ReplaceAll(s, " ", ""), "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return errors.Wrap(err, "invalid hex")
	}
	fh, n, err := packets.DecodeFixHeader(raw)
	if err != nil {
		return err
	}
	if fh.RemainLength != len(raw)-n {
		return errors.Wrapf(packets.ErrBadResponse, "remaining length %d, got %d bytes", fh.RemainLength, len(raw)-n)
	}
	ack, err := packets.DecodeAckV5(fh.PacketType, raw[n:], make([]packets.UserProperty, c.MQTT.AckScratchSize))
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "type: %s\n", packets.PacketTypeName(ack.PacketType))
	if ack.PacketID != 0 {
		fmt.Fprintf(w, "packet_id: %d\n", ack.PacketID)
	}
	if len(ack.Properties.ReasonCodes) > 0 {
		fmt.Fprintf(w, "reason_codes: % X\n", ack.Properties.ReasonCodes)
	} else {
		fmt.Fprintf(w, "reason_code: 0x%02X\n", ack.Code)
	}
	if ack.Properties.ReasonString != nil {
		fmt.Fprintf(w, "reason_string: %q\n", ack.Properties.ReasonString)
	}
	for _, u := range ack.Properties.UserProperties {
		fmt.Fprintf(w, "user_property: %s\n", u)
	}
	if ack.SessionExpiryInterval != nil {
		fmt.Fprintf(w, "session_expiry_interval: %d\n", *ack.SessionExpiryInterval)
	}
	if ack.ServerReference != nil {
		fmt.Fprintf(w, "server_reference: %q\n", ack.ServerReference)
	}
	if ack.AuthMethod != nil {
		fmt.Fprintf(w, "authentication_method: %q\n", ack.AuthMethod)
	}
	if ack.AuthData != nil {
		fmt.Fprintf(w, "authentication_data: 0x%s\n", hex.EncodeToString(ack.AuthData))
	}
	if err := ack.Err(); err != nil {
		fmt.Fprintf(w, "error: %s\n", err)
	}
	return nil
}
