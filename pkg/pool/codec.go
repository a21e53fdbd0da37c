package pool

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/DeBrosOfficial/rediscache/pkg/config"
	rcerrors "github.com/DeBrosOfficial/rediscache/pkg/errors"
)

// Codec encodes values before they are written to the cache and decodes them on read.
type Codec interface {
	Name() config.Serializer
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// CodecFor returns the codec for s. Empty selects the default (JSON) codec.
func CodecFor(s config.Serializer) (Codec, error) {
	switch s {
	case "", config.SerializerDefault:
		return jsonCodec{}, nil
	case config.SerializerNone:
		return rawCodec{}, nil
	case config.SerializerMsgpack:
		return msgpackCodec{}, nil
	default:
		return nil, rcerrors.NewConfigError("serializer", fmt.Sprintf("unknown serializer %q", s))
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() config.Serializer { return config.SerializerDefault }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() config.Serializer { return config.SerializerMsgpack }

func (msgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// rawCodec passes strings and byte slices through untouched.
type rawCodec struct{}

func (rawCodec) Name() config.Serializer { return config.SerializerNone }

func (rawCodec) Marshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		return nil, rcerrors.Newf("serializer none: cannot encode %T", v)
	}
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	switch dst := v.(type) {
	case *[]byte:
		*dst = append((*dst)[:0], data...)
	case *string:
		*dst = string(data)
	default:
		return rcerrors.Newf("serializer none: cannot decode into %T", v)
	}
	return nil
}
