package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mlsorensen/bleframe"
	"github.com/mlsorensen/bleframe/internal/config"
	"github.com/mlsorensen/bleframe/pkg/frame"
)

func TestTopic(t *testing.T) {
	if got := Topic("bleframe", "RAME-01"); got != "bleframe/RAME-01/measurements" {
		t.Fatalf("Topic = %q", got)
	}
}

func TestPayloadJSON(t *testing.T) {
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

	tests := []struct {
		name string
		m    bleframe.Measurement
		want string
	}{
		{
			"typed",
			bleframe.Measurement{Reading: frame.Reading{Type: "data", Value: -1.05, SeqNb: 258}, Timestamp: at},
			`{"device":"RAME-01","seq_nb":258,"type":"data","value":-1.05,"timestamp":"2026-05-06T07:08:09Z"}`,
		},
		{
			"absent type omitted",
			bleframe.Measurement{Reading: frame.Reading{Value: 10, SeqNb: 1}, Timestamp: at},
			`{"device":"RAME-01","seq_nb":1,"value":10,"timestamp":"2026-05-06T07:08:09Z"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(NewPayload("RAME-01", tt.m))
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != tt.want {
				t.Fatalf("payload = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClient_notConnected(t *testing.T) {
	c := NewClient(config.Config{MQTTBroker: "127.0.0.1", MQTTPort: 1, MQTTClientID: "test", MQTTTopicPrefix: "bleframe"})

	if c.IsConnected() {
		t.Fatal("new client reports connected")
	}
	if err := c.PublishMeasurement("dev", bleframe.Measurement{}); err == nil {
		t.Fatal("publish without connection should fail")
	}

	c.Disconnect()
	c.Disconnect()
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("Connect after Disconnect should fail")
	}
}
