package command

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DrmagicE/coremqtt/pkg/packets"
)

func TestRunConnect(t *testing.T) {
	a := assert.New(t)
	ConfigFile = "../../../config/testdata/config.yml"
	defer func() { ConfigFile = "" }()

	var out bytes.Buffer
	a.NoError(runConnect(&out, 512))
	a.Equal(`properties (21 bytes): 110000000a2100141901260001610001621500016d
  session_expiry_interval: 10
  receive_maximum: 20
  request_response_information: 1
  user_property: a=b
  authentication_method: "m"
`, out.String())

	out.Reset()
	a.ErrorIs(runConnect(&out, 8), packets.ErrNoSpace)
}

func TestRunConnect_DefaultConfig(t *testing.T) {
	a := assert.New(t)
	var out bytes.Buffer
	a.NoError(runConnect(&out, 512))
	a.Equal("properties (5 bytes): 1100001c20\n  session_expiry_interval: 7200\n", out.String())
}

func TestRunPublish(t *testing.T) {
	var tt = []struct {
		name     string
		opts     publishOptions
		expected string
	}{
		{
			name:     "v311",
			opts:     publishOptions{topic: "a/b", qos: 1, pid: 1, v311: true},
			expected: "packet (9 bytes): 32070003612f620001\n",
		},
		{
			name:     "v5WithoutProperties",
			opts:     publishOptions{topic: "a/b", qos: 1, pid: 1},
			expected: "packet (10 bytes): 32080003612f62000100\n",
		},
		{
			name:     "qos0IgnoresPacketID",
			opts:     publishOptions{topic: "a/b", pid: 1, payload: "hi", retain: true},
			expected: "packet (10 bytes): 31080003612f62006869\n",
		},
		{
			name: "v5ContentType",
			opts: publishOptions{topic: "a/b", qos: 1, pid: 1, contentType: "t"},
			expected: "packet (14 bytes): 320c0003612f6200010403000174\n" +
				"properties:\n" +
				"  content_type: \"t\"\n",
		},
		{
			name: "v5UserProperties",
			opts: publishOptions{topic: "a/b", pid: 1, userProperties: []string{"k=v"}, messageExpiry: 60},
			expected: "packet (20 bytes): 30120003612f620c020000003c2600016b000176\n" +
				"properties:\n" +
				"  message_expiry_interval: 60\n" +
				"  user_property: k=v\n",
		},
	}
	for _, v := range tt {
		t.Run(v.name, func(t *testing.T) {
			a := assert.New(t)
			o := v.opts
			o.bufSize = 512
			var out bytes.Buffer
			a.NoError(runPublish(&out, &o))
			a.Equal(v.expected, out.String())
		})
	}
}

func TestRunPublish_CorrelationData(t *testing.T) {
	a := assert.New(t)
	o := &publishOptions{topic: "req", responseTopic: "resp", bufSize: 512}
	var out bytes.Buffer
	a.NoError(runPublish(&out, o))
	// a random uuid is used as correlation data
	a.Len(o.correlationData, 36)
	a.Contains(out.String(), "  response_topic: \"resp\"\n")
	a.Contains(out.String(), "  correlation_data: 0x")
}

func TestRunPublish_Error(t *testing.T) {
	var tt = []struct {
		name string
		opts publishOptions
	}{
		{name: "invalidUserProperty", opts: publishOptions{topic: "a", userProperties: []string{"kv"}}},
		{name: "emptyUserPropertyKey", opts: publishOptions{topic: "a", userProperties: []string{"=v"}}},
		{name: "wildcardResponseTopic", opts: publishOptions{topic: "a", responseTopic: "a/#"}},
		{name: "wildcardTopic", opts: publishOptions{topic: "a/+"}},
		{name: "packetID0", opts: publishOptions{topic: "a", qos: 1}},
		{name: "noSpace", opts: publishOptions{topic: "a", contentType: "abc"}},
	}
	for _, v := range tt {
		t.Run(v.name, func(t *testing.T) {
			a := assert.New(t)
			o := v.opts
			if o.bufSize == 0 && v.name != "noSpace" {
				o.bufSize = 512
			}
			if v.name == "noSpace" {
				o.bufSize = 4
			}
			var out bytes.Buffer
			a.Error(runPublish(&out, &o))
			a.Empty(out.String())
		})
	}
}

func TestRunPublish_Metrics(t *testing.T) {
	a := assert.New(t)
	o := &publishOptions{topic: "a/b", qos: 1, pid: 1, v311: true, bufSize: 512, metrics: true}
	var out bytes.Buffer
	a.NoError(runPublish(&out, o))
	a.Contains(out.String(), `coremqtt_packets_sent_total{type="PUBLISH"} 1`)
	a.Contains(out.String(), `coremqtt_publish_sent_total{version="3.1.1"} 1`)
	a.Contains(out.String(), "coremqtt_inflight_current 1")
}

func TestRunDecodeAck(t *testing.T) {
	var tt = []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "puback",
			input:    "40020001",
			expected: "type: PUBACK\npacket_id: 1\nreason_code: 0x00\n",
		},
		{
			name:  "pubrecFailure",
			input: "0x50 11 00 05 80 0d 1f 00 03 66 75 6c 26 00 01 6b 00 01 76",
			expected: "type: PUBREC\npacket_id: 5\nreason_code: 0x80\n" +
				"reason_string: \"ful\"\n" +
				"user_property: k=v\n" +
				"error: operation error: Code = 80, reasonString: ful\n",
		},
		{
			name:     "suback",
			input:    "9005000a000080",
			expected: "type: SUBACK\npacket_id: 10\nreason_codes: 00 80\n",
		},
		{
			name:     "disconnect",
			input:    "e0078b05110000003c",
			expected: "type: DISCONNECT\nreason_code: 0x8B\nsession_expiry_interval: 60\n",
		},
	}
	for _, v := range tt {
		t.Run(v.name, func(t *testing.T) {
			a := assert.New(t)
			var out bytes.Buffer
			a.NoError(runDecodeAck(&out, v.input))
			a.Equal(v.expected, out.String())
		})
	}
}

func TestRunDecodeAck_Error(t *testing.T) {
	a := assert.New(t)
	for _, v := range []string{
		"zz",
		"40",
		"400300",     // remaining length mismatch
		"400300018b", // invalid reason code
	} {
		var out bytes.Buffer
		a.Error(runDecodeAck(&out, v), v)
		a.True(strings.TrimSpace(out.String()) == "", v)
	}
}
