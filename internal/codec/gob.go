package codec

import (
	"bytes"
	"encoding/gob"
)

func init() {
	MustRegister(gobCodec{})
}

// gobCodec 序列化 Go 原生类型，负载只在 Go 进程之间共享时使用。
type gobCodec struct{}

func (gobCodec) Name() string {
	return "gob"
}

func (gobCodec) Encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Decode(data []byte, target any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(target)
}
