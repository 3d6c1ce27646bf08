package codec

import "encoding/json"

func init() {
	MustRegister(jsonCodec{})
}

// jsonCodec 使用标准库 JSON 序列化负载，是默认编解码器。
type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (jsonCodec) Decode(data []byte, target any) error {
	return json.Unmarshal(data, target)
}
