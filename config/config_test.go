package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/DrmagicE/coremqtt/pkg/packets"
	"github.com/DrmagicE/coremqtt/plugin/prometheus"
)

func testdataConfig() Config {
	c := DefaultConfig()
	c.Log.Level = "debug"
	c.MQTT.ClientID = "sensor-1"
	c.MQTT.SessionExpiry = 10 * time.Second
	c.MQTT.ReceiveMax = 20
	c.MQTT.RequestRespInfo = true
	c.MQTT.UserProperties = []UserProperty{{Key: "a", Value: "b"}}
	c.MQTT.AuthMethod = "m"
	c.Prometheus = prometheus.Config{
		Enable:        true,
		ListenAddress: "127.0.0.1:9100",
		Path:          "/metrics",
	}
	return c
}

func TestParseConfig(t *testing.T) {
	var tt = []struct {
		caseName string
		fileName string
		hasErr   bool
		expected Config
	}{
		{
			caseName: "defaultConfig",
			fileName: "",
			hasErr:   false,
			expected: DefaultConfig(),
		},
		{
			caseName: "config",
			fileName: "./testdata/config.yml",
			hasErr:   false,
			expected: testdataConfig(),
		},
		{
			caseName: "invalidReceiveMax",
			fileName: "./testdata/invalid_receive_max.yml",
			hasErr:   true,
			expected: Config{},
		},
		{
			caseName: "authDataWithoutMethod",
			fileName: "./testdata/invalid_auth.yml",
			hasErr:   true,
			expected: Config{},
		},
		{
			caseName: "invalidLogLevel",
			fileName: "./testdata/invalid_log_level.yml",
			hasErr:   true,
			expected: Config{},
		},
	}

	for _, v := range tt {
		t.Run(v.caseName, func(t *testing.T) {
			a := assert.New(t)
			c, err := ParseConfig(v.fileName)
			if v.hasErr {
				a.NotNil(err)
			} else {
				a.Nil(err)
			}
			a.Equal(v.expected, c)
		})
	}
}

func TestParseConfig_FileNotFound(t *testing.T) {
	a := assert.New(t)
	_, err := ParseConfig("./testdata/not_exist.yml")
	a.Error(err)
}

func TestMQTT_BuildConnectProperties(t *testing.T) {
	a := assert.New(t)
	c := testdataConfig().MQTT
	buf := make([]byte, 64)
	b, err := packets.NewPropBuilder(buf)
	a.NoError(err)
	a.NoError(c.BuildConnectProperties(b))
	a.Equal([]byte{
		0x11, 0x00, 0x00, 0x00, 0x0A, // session expiry interval
		0x21, 0x00, 0x14, // receive maximum
		0x19, 0x01, // request response information
		0x26, 0x00, 0x01, 'a', 0x00, 0x01, 'b', // user property
		0x15, 0x00, 0x01, 'm', // authentication method
	}, b.Bytes())

	// properties equal to their protocol default are omitted
	def := DefaultMQTTConfig
	def.SessionExpiry = 0
	a.NoError(b.Reset())
	a.NoError(def.BuildConnectProperties(b))
	a.Equal(0, b.Size())

	def.RequestProblemInfo = false
	def.TopicAliasMax = 5
	a.NoError(b.Reset())
	a.NoError(def.BuildConnectProperties(b))
	a.Equal([]byte{0x22, 0x00, 0x05, 0x17, 0x00}, b.Bytes())
}

func TestMQTT_BuildConnectProperties_NoSpace(t *testing.T) {
	a := assert.New(t)
	c := testdataConfig().MQTT
	b, err := packets.NewPropBuilder(make([]byte, 8))
	a.NoError(err)
	err = c.BuildConnectProperties(b)
	a.ErrorIs(err, packets.ErrNoSpace)
	// session expiry interval and receive maximum fit
	a.Equal(8, b.Size())
}

func TestMQTT_Validate(t *testing.T) {
	a := assert.New(t)
	var tt = []struct {
		name  string
		apply func(c *MQTT)
		ok    bool
	}{
		{name: "default", apply: func(c *MQTT) {}, ok: true},
		{name: "maxPacketSize", apply: func(c *MQTT) { c.MaxPacketSize = 0 }, ok: false},
		{name: "negativeSessionExpiry", apply: func(c *MQTT) { c.SessionExpiry = -time.Second }, ok: false},
		{name: "scratchSize", apply: func(c *MQTT) { c.AckScratchSize = 0 }, ok: false},
		{name: "emptyUserPropertyKey", apply: func(c *MQTT) {
			c.UserProperties = []UserProperty{{Key: "", Value: "v"}}
		}, ok: false},
		{name: "authData", apply: func(c *MQTT) {
			c.AuthMethod = "m"
			c.AuthData = "d"
		}, ok: true},
	}
	for _, v := range tt {
		c := DefaultMQTTConfig
		v.apply(&c)
		if v.ok {
			a.NoError(c.Validate(), v.name)
		} else {
			a.Error(c.Validate(), v.name)
		}
	}
}

func TestConfig_GetLogger(t *testing.T) {
	a := assert.New(t)
	c := DefaultConfig()
	l, err := c.GetLogger(c.Log)
	a.NoError(err)
	a.NotNil(l)
	_, err = c.GetLogger(LogConfig{Level: "verbose"})
	a.Error(err)
}
