package userdata

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Codec turns script payloads into bytes for the transition buffer. Decoded
// payloads are in the codec's generic form (maps, slices, scalars).
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

const (
	CodecYAML = "yaml"
	CodecJSON = "json"
)

// NewCodec returns the codec registered under name. An empty name is YAML.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", CodecYAML:
		return yamlCodec{}, nil
	case CodecJSON:
		return jsonCodec{}, nil
	default:
		return nil, fmt.Errorf("userdata: unknown codec %q", name)
	}
}

// encode marshals v with c. Encoders that panic on unsupported values (yaml
// does for funcs and channels) report an error instead.
func encode(c Codec, v any) (data []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			data, err = nil, fmt.Errorf("%s: %v", c.Name(), p)
		}
	}()
	return c.Marshal(v)
}

type yamlCodec struct{}

func (yamlCodec) Name() string { return CodecYAML }

func (yamlCodec) Marshal(v any) ([]byte, error) { return yaml.Marshal(v) }

func (yamlCodec) Unmarshal(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return CodecJSON }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
