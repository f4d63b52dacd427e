package command

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/iancoleman/strcase"
	"go.uber.org/zap"

	"github.com/DrmagicE/coremqtt/config"
	"github.com/DrmagicE/coremqtt/pkg/packets"
)

var (
	// ConfigFile is the configuration file path, the default configuration is used if it is empty.
	ConfigFile string
)

func loadConfig() (c config.Config, logger *zap.Logger, err error) {
	c, err = config.ParseConfig(ConfigFile)
	if err != nil {
		return
	}
	logger, err = c.GetLogger(c.Log)
	return
}

// printProperties prints one property per line, named in snake case.
func printProperties(w io.Writer, props []byte) error {
	return packets.ForEachProperty(props, func(id packets.PropertyID, num uint32, data, value []byte) error {
		name := strcase.ToSnake(packets.PropertyName(id))
		switch packets.PropertyTypeOf(id) {
		case packets.PropTypeUTF8String:
			fmt.Fprintf(w, "  %s: %q\n", name, data)
		case packets.PropTypeBinary:
			fmt.Fprintf(w, "  %s: 0x%s\n", name, hex.EncodeToString(data))
		case packets.PropTypeStringPair:
			fmt.Fprintf(w, "  %s: %s\n", name, packets.NewUserProperty(data, value))
		default:
			fmt.Fprintf(w, "  %s: %d\n", name, num)
		}
		return nil
	})
}
