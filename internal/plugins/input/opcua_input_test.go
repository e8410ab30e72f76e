package input

import (
	"testing"

	"github.com/gopcua/opcua/ua"
)

func TestOPCUAConfigDefaultsAndValidation(t *testing.T) {
	cfg := opcuaConfig{}
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected validate to reject an empty endpoint")
	}

	cfg.Endpoint = "opc.tcp://localhost:4840"
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected validate to reject zero configured nodes")
	}

	cfg.Nodes = []OPCUANodeConfig{{NodeID: "ns=2;s=Temperature"}}
	cfg.applyDefaults()
	if cfg.SecurityMode != "None" || cfg.SecurityPolicy != "None" {
		t.Fatalf("expected default security settings, got %+v", cfg)
	}
	if cfg.ApplicationName != "loongcollector" {
		t.Fatalf("expected default application name, got %q", cfg.ApplicationName)
	}
	if cfg.Nodes[0].SensorID != cfg.Nodes[0].NodeID {
		t.Fatalf("expected sensor_id to default to node_id, got %q", cfg.Nodes[0].SensorID)
	}
	if cfg.Nodes[0].ValueKey != "value" {
		t.Fatalf("expected value_key to default to \"value\", got %q", cfg.Nodes[0].ValueKey)
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("unexpected validate error after filling in required fields: %v", err)
	}
}

func TestOPCUAInputNextSeqIsMonotonic(t *testing.T) {
	in := &OPCUAInput{seq: make(map[string]uint64)}
	if got := in.nextSeq("sensor-a"); got != 1 {
		t.Fatalf("expected first sequence to be 1, got %d", got)
	}
	if got := in.nextSeq("sensor-a"); got != 2 {
		t.Fatalf("expected second sequence to be 2, got %d", got)
	}
	if got := in.nextSeq("sensor-b"); got != 1 {
		t.Fatalf("expected a fresh sensor to start at 1, got %d", got)
	}
}

func TestVariantToFloat(t *testing.T) {
	cases := []struct {
		name string
		v    interface{}
		want float64
	}{
		{"float64", float64(3.5), 3.5},
		{"int32", int32(42), 42},
		{"uint8", uint8(7), 7},
		{"bool-true", true, 1},
		{"bool-false", false, 0},
	}
	for _, tc := range cases {
		variant, err := ua.NewVariant(tc.v)
		if err != nil {
			t.Fatalf("%s: failed to build variant: %v", tc.name, err)
		}
		got, ok := variantToFloat(variant)
		if !ok {
			t.Fatalf("%s: expected a supported type", tc.name)
		}
		if got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestVariantToFloatRejectsNil(t *testing.T) {
	if _, ok := variantToFloat(nil); ok {
		t.Fatalf("expected a nil variant to be unsupported")
	}
}

func TestVariantToFloatRejectsUnsupportedType(t *testing.T) {
	variant, err := ua.NewVariant("not a number")
	if err != nil {
		t.Fatalf("failed to build variant: %v", err)
	}
	if _, ok := variantToFloat(variant); ok {
		t.Fatalf("expected a string variant to be unsupported")
	}
}
