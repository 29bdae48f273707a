package crypto

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ============================================================================
//                              密钥记录线格式
// ============================================================================

// 线格式（与 libp2p keys.proto 兼容，无版本字段）：
//
//   ┌─────────────────────────────────────────────────────────────┐
//   │                    PublicKey / PrivateKey                    │
//   ├─────────────────────────────────────────────────────────────┤
//   │  field 1 (varint): Type  KeyType 枚举值                      │
//   │  field 2 (bytes):  Data  算法原生编码                         │
//   └─────────────────────────────────────────────────────────────┘
//
// 编码总是按字段号顺序写出两个字段，因此同一密钥的编码逐字节稳定。
// 解码跳过未知字段，两个字段缺一不可。

const (
	fieldKeyType protowire.Number = 1
	fieldKeyData protowire.Number = 2
)

// keyRecord 解析后的密钥记录
//
// Data 指向输入缓冲区，调用方负责复制。
type keyRecord struct {
	Type KeyType
	Data []byte
}

// marshalKeyRecord 编码密钥记录
func marshalKeyRecord(kt KeyType, data []byte) []byte {
	size := protowire.SizeTag(fieldKeyType) + protowire.SizeVarint(uint64(kt)) +
		protowire.SizeTag(fieldKeyData) + protowire.SizeBytes(len(data))

	buf := make([]byte, 0, size)
	buf = protowire.AppendTag(buf, fieldKeyType, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(kt))
	buf = protowire.AppendTag(buf, fieldKeyData, protowire.BytesType)
	buf = protowire.AppendBytes(buf, data)
	return buf
}

// unmarshalKeyRecord 解码密钥记录
//
// stage 用于错误信息（"public key bytes" / "private key bytes"）。
// 仅校验结构；未知的类型值由调用方按 ErrUnsupportedKeyType 处理。
func unmarshalKeyRecord(stage string, b []byte) (keyRecord, error) {
	var (
		rec     keyRecord
		rawType uint64
		hasType bool
		hasData bool
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return keyRecord{}, decodeErr(stage, 0, fmt.Errorf("%w: %v", ErrMalformedRecord, protowire.ParseError(n)))
		}
		b = b[n:]

		switch {
		case num == fieldKeyType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return keyRecord{}, decodeErr(stage, 0, fmt.Errorf("%w: key type: %v", ErrMalformedRecord, protowire.ParseError(n)))
			}
			rawType, hasType = v, true
			b = b[n:]

		case num == fieldKeyData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return keyRecord{}, decodeErr(stage, 0, fmt.Errorf("%w: key data: %v", ErrMalformedRecord, protowire.ParseError(n)))
			}
			rec.Data, hasData = v, true
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return keyRecord{}, decodeErr(stage, 0, fmt.Errorf("%w: field %d: %v", ErrMalformedRecord, num, protowire.ParseError(n)))
			}
			b = b[n:]
		}
	}

	if !hasType {
		return keyRecord{}, decodeErr(stage, 0, fmt.Errorf("%w: missing key type", ErrMalformedRecord))
	}
	if !hasData {
		return keyRecord{}, decodeErr(stage, 0, fmt.Errorf("%w: missing key data", ErrMalformedRecord))
	}

	// protobuf 枚举为 int32，负值以 10 字节补码编码
	v := int64(rawType)
	if v < math.MinInt32 || v > math.MaxInt32 {
		return keyRecord{}, decodeErr(stage, 0, fmt.Errorf("%w: key type value %d out of range", ErrUnsupportedKeyType, v))
	}
	rec.Type = KeyType(v)
	if !rec.Type.Valid() {
		return keyRecord{}, decodeErr(stage, rec.Type, fmt.Errorf("%w: %d", ErrUnsupportedKeyType, int32(rec.Type)))
	}

	return rec, nil
}
