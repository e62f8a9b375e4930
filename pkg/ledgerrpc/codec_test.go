package ledgerrpc

import (
	"strings"
	"testing"

	"google.golang.org/grpc/encoding"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestCodec_Registered(t *testing.T) {
	if encoding.GetCodec(CodecName) == nil {
		t.Fatalf("codec %q not registered", CodecName)
	}
}

func TestCodec_PlainStruct(t *testing.T) {
	c := Codec{}
	in := &SpendRequest{RefId: "abc", Points: 5000}
	data, err := c.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if !strings.Contains(string(data), `"points":5000`) {
		t.Errorf("Marshal = %s", data)
	}

	var out SpendRequest
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if out != *in {
		t.Errorf("Unmarshal = %+v, want %+v", out, *in)
	}
}

func TestCodec_ProtoMessage(t *testing.T) {
	c := Codec{}
	data, err := c.Marshal(&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING})
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	if !strings.Contains(string(data), "SERVING") {
		t.Errorf("protojson output = %s", data)
	}

	var out healthpb.HealthCheckResponse
	if err := c.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if out.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Status = %v", out.GetStatus())
	}
}

func TestCodec_UnmarshalError(t *testing.T) {
	var out SpendRequest
	if err := (Codec{}).Unmarshal([]byte("{"), &out); err == nil {
		t.Error("Unmarshal of truncated JSON should fail")
	}
}
