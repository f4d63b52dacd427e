package command

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/DrmagicE/coremqtt"
	"github.com/DrmagicE/coremqtt/pkg/packets"
	promplugin "github.com/DrmagicE/coremqtt/plugin/prometheus"
)

type publishOptions struct {
	topic   string
	payload string
	qos     uint8
	retain  bool
	dup     bool
	pid     uint16
	v311    bool
	bufSize int
	metrics bool

	payloadFormatUTF8 bool
	messageExpiry     uint32
	topicAlias        uint16
	responseTopic     string
	correlationData   string
	contentType       string
	userProperties    []string
}

// NewPublishCmd creates a *cobra.Command object for publish command.
func NewPublishCmd() *cobra.Command {
	o := &publishOptions{}
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Serialize a PUBLISH packet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.OutOrStdout(), o)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.topic, "topic", "t", "", "The topic name")
	f.StringVarP(&o.payload, "payload", "m", "", "The application message")
	f.Uint8VarP(&o.qos, "qos", "q", 0, "The QoS level")
	f.BoolVarP(&o.retain, "retain", "r", false, "Set the retain flag")
	f.BoolVar(&o.dup, "dup", false, "Set the dup flag")
	f.Uint16Var(&o.pid, "packet-id", 1, "The packet id, used if qos > 0")
	f.BoolVar(&o.v311, "v311", false, "Serialize a MQTT v3.1.1 packet, properties are ignored")
	f.IntVar(&o.bufSize, "buffer-size", 512, "The size of the property buffer")
	f.BoolVar(&o.metrics, "metrics", false, "Print the prometheus metrics after publishing")
	f.BoolVar(&o.payloadFormatUTF8, "payload-format-utf8", false, "Indicate the payload is UTF-8 encoded")
	f.Uint32Var(&o.messageExpiry, "message-expiry", 0, "The message expiry interval in seconds")
	f.Uint16Var(&o.topicAlias, "topic-alias", 0, "The topic alias")
	f.StringVar(&o.responseTopic, "response-topic", "", "The response topic")
	f.StringVar(&o.correlationData, "correlation-data", "", "The correlation data, default to a random uuid if response-topic is set")
	f.StringVar(&o.contentType, "content-type", "", "The content type")
	f.StringArrayVarP(&o.userProperties, "user-property", "u", nil, "A user property in key=value form, can be repeated")
	cmd.MarkFlagRequired("topic")
	return cmd
}

func parseUserProperties(kvs []string) ([]packets.UserProperty, error) {
	var props []packets.UserProperty
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, errors.Errorf("invalid user property %q, want key=value", kv)
		}
		props = append(props, packets.NewUserProperty([]byte(k), []byte(v)))
	}
	return props, nil
}

func (o *publishOptions) buildProperties(b *packets.PropBuilder) error {
	if o.payloadFormatUTF8 {
		if err := b.AddPubPayloadFormat(true); err != nil {
			return errors.WithMessage(err, "payload-format-utf8")
		}
	}
	if o.messageExpiry > 0 {
		if err := b.AddPubMessageExpiry(o.messageExpiry); err != nil {
			return errors.WithMessage(err, "message-expiry")
		}
	}
	if o.topicAlias > 0 {
		if err := b.AddPubTopicAlias(o.topicAlias); err != nil {
			return errors.WithMessage(err, "topic-alias")
		}
	}
	if o.responseTopic != "" {
		if err := b.AddPubResponseTopic([]byte(o.responseTopic)); err != nil {
			return errors.WithMessage(err, "response-topic")
		}
		if o.correlationData == "" {
			o.correlationData = uuid.New().String()
		}
	}
	if o.correlationData != "" {
		if err := b.AddPubCorrelationData([]byte(o.correlationData)); err != nil {
			return errors.WithMessage(err, "correlation-data")
		}
	}
	if o.contentType != "" {
		if err := b.AddPubContentType([]byte(o.contentType)); err != nil {
			return errors.WithMessage(err, "content-type")
		}
	}
	if len(o.userProperties) > 0 {
		props, err := parseUserProperties(o.userProperties)
		if err != nil {
			return err
		}
		if err = b.AddPubUserProps(props); err != nil {
			return errors.WithMessage(err, "user-property")
		}
	}
	return nil
}

func runPublish(w io.Writer, o *publishOptions) error {
	c, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	info := &packets.PublishInfo{
		QoS:       o.qos,
		Retain:    o.retain,
		Dup:       o.dup,
		TopicName: []byte(o.topic),
		Payload:   []byte(o.payload),
	}
	if !packets.ValidTopicName(info.TopicName) {
		return errors.Wrapf(packets.ErrBadParameter, "invalid topic name %q", o.topic)
	}
	var b *packets.PropBuilder
	if !o.v311 {
		b, err = packets.NewPropBuilder(make([]byte, o.bufSize))
		if err != nil {
			return err
		}
		if err = o.buildProperties(b); err != nil {
			return err
		}
	}
	var pid packets.PacketID
	if o.qos > packets.Qos0 {
		pid = o.pid
	}

	var out bytes.Buffer
	stats := coremqtt.NewStats()
	pc := coremqtt.New(&out,
		coremqtt.WithLogger(logger),
		coremqtt.WithClientID(c.MQTT.ClientID),
		coremqtt.WithStats(stats),
		coremqtt.WithAckScratchSize(c.MQTT.AckScratchSize),
	)
	if err = pc.SetStatus(coremqtt.Connected, c.MQTT.CleanStart); err != nil {
		return err
	}
	if err = pc.Publish(info, pid, b); err != nil {
		return err
	}
	fmt.Fprintf(w, "packet (%d bytes): %s\n", out.Len(), hex.EncodeToString(out.Bytes()))
	if b != nil && b.Size() > 0 {
		fmt.Fprintln(w, "properties:")
		if err = printProperties(w, b.Bytes()); err != nil {
			return err
		}
	}
	if o.metrics {
		return writeMetrics(w, stats)
	}
	return nil
}

func writeMetrics(w io.Writer, r coremqtt.StatsReader) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(promplugin.NewCollector(r)); err != nil {
		return err
	}
	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err = expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
