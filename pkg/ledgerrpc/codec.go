// Package ledgerrpc 點數帳本 gRPC 服務的描述、訊息與 client
//
// 訊息是一般的 Go struct，透過 JSON codec 傳輸 (content-subtype "json")，
// 不需要 protoc 產生程式碼。
package ledgerrpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// CodecName gRPC content-subtype
const CodecName = "json"

// Codec 以 JSON 編碼 gRPC 訊息
// proto.Message 使用 protojson，其餘使用 encoding/json
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ledgerrpc: marshal %T: %w", v, err)
	}
	return b, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, m)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("ledgerrpc: unmarshal %T: %w", v, err)
	}
	return nil
}

func (Codec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(Codec{})
}
