package codec

import "fmt"

func init() {
	MustRegister(rawCodec{})
}

// rawCodec 原样透传 string 与 []byte 负载，供调用方自带序列化时使用。
type rawCodec struct{}

func (rawCodec) Name() string {
	return "raw"
}

func (rawCodec) Encode(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("raw codec expects string or []byte, got %T", value)
	}
}

func (rawCodec) Decode(data []byte, target any) error {
	switch t := target.(type) {
	case *[]byte:
		*t = append([]byte(nil), data...)
		return nil
	case *string:
		*t = string(data)
		return nil
	default:
		return fmt.Errorf("raw codec expects *string or *[]byte, got %T", target)
	}
}
