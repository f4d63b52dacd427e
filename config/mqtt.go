package config

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/DrmagicE/coremqtt/pkg/packets"
)

const defaultReceiveMax = 65535

var (
	// DefaultMQTTConfig
	DefaultMQTTConfig = MQTT{
		CleanStart:         true,
		SessionExpiry:      2 * time.Hour,
		ReceiveMax:         defaultReceiveMax,
		MaxPacketSize:      packets.MaximumSize,
		RequestProblemInfo: true,
		AckScratchSize:     16,
	}
)

// UserProperty is a user property in the configuration file.
type UserProperty struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// MQTT is the connection configuration. It is sent to the broker as CONNECT properties.
type MQTT struct {
	ClientID           string         `yaml:"client_id"`
	CleanStart         bool           `yaml:"clean_start"`
	SessionExpiry      time.Duration  `yaml:"session_expiry"`
	ReceiveMax         uint16         `yaml:"receive_maximum"`
	MaxPacketSize      uint32         `yaml:"maximum_packet_size"`
	TopicAliasMax      uint16         `yaml:"topic_alias_maximum"`
	RequestRespInfo    bool           `yaml:"request_response_information"`
	RequestProblemInfo bool           `yaml:"request_problem_information"`
	UserProperties     []UserProperty `yaml:"user_properties"`
	AuthMethod         string         `yaml:"authentication_method"`
	AuthData           string         `yaml:"authentication_data"`
	// AckScratchSize is the maximum number of user properties decoded from one acknowledgment.
	AckScratchSize int `yaml:"ack_scratch_size"`
}

func (c MQTT) Validate() error {
	if c.ReceiveMax == 0 {
		return errors.New("receive_maximum cannot be 0")
	}
	if c.MaxPacketSize == 0 {
		return errors.New("maximum_packet_size cannot be 0")
	}
	if c.SessionExpiry < 0 || c.SessionExpiry/time.Second > math.MaxUint32 {
		return errors.Errorf("invalid session_expiry: %s", c.SessionExpiry)
	}
	if c.AuthData != "" && c.AuthMethod == "" {
		return errors.New("authentication_data requires authentication_method")
	}
	if c.AckScratchSize <= 0 {
		return errors.Errorf("invalid ack_scratch_size: %d", c.AckScratchSize)
	}
	for i, v := range c.UserProperties {
		if !packets.NewUserProperty([]byte(v.Key), []byte(v.Value)).IsValid() {
			return errors.Errorf("invalid user_properties[%d]", i)
		}
	}
	return nil
}

// PacketUserProperties returns the user properties as packets.UserProperty.
func (c MQTT) PacketUserProperties() []packets.UserProperty {
	if len(c.UserProperties) == 0 {
		return nil
	}
	props := make([]packets.UserProperty, len(c.UserProperties))
	for i, v := range c.UserProperties {
		props[i] = packets.NewUserProperty([]byte(v.Key), []byte(v.Value))
	}
	return props
}

// BuildConnectProperties adds the CONNECT properties of the configuration to b.
// Properties equal to their protocol default are omitted.
func (c MQTT) BuildConnectProperties(b *packets.PropBuilder) error {
	if c.SessionExpiry > 0 {
		if err := b.AddConnSessionExpiry(uint32(c.SessionExpiry / time.Second)); err != nil {
			return errors.WithMessage(err, "session_expiry")
		}
	}
	if c.ReceiveMax != defaultReceiveMax {
		if err := b.AddConnReceiveMax(c.ReceiveMax); err != nil {
			return errors.WithMessage(err, "receive_maximum")
		}
	}
	if c.MaxPacketSize != packets.MaximumSize {
		if err := b.AddConnMaxPacketSize(c.MaxPacketSize); err != nil {
			return errors.WithMessage(err, "maximum_packet_size")
		}
	}
	if c.TopicAliasMax > 0 {
		if err := b.AddConnTopicAliasMax(c.TopicAliasMax); err != nil {
			return errors.WithMessage(err, "topic_alias_maximum")
		}
	}
	if c.RequestRespInfo {
		if err := b.AddConnRequestRespInfo(true); err != nil {
			return errors.WithMessage(err, "request_response_information")
		}
	}
	if !c.RequestProblemInfo {
		if err := b.AddConnRequestProbInfo(false); err != nil {
			return errors.WithMessage(err, "request_problem_information")
		}
	}
	if props := c.PacketUserProperties(); props != nil {
		if err := b.AddConnUserProps(props); err != nil {
			return errors.WithMessage(err, "user_properties")
		}
	}
	if c.AuthMethod != "" {
		if err := b.AddConnAuthMethod([]byte(c.AuthMethod)); err != nil {
			return errors.WithMessage(err, "authentication_method")
		}
	}
	if c.AuthData != "" {
		if err := b.AddConnAuthData([]byte(c.AuthData)); err != nil {
			return errors.WithMessage(err, "authentication_data")
		}
	}
	return nil
}
