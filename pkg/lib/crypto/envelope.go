package crypto

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/multiformats/go-varint"
	"google.golang.org/protobuf/encoding/protowire"
)

// ============================================================================
//                              签名信封
// ============================================================================

// 信封线格式（与 libp2p envelope.proto 兼容）：
//
//   field 1 (bytes): PublicKey    签名者公钥的密钥记录
//   field 2 (bytes): PayloadType  内容类型
//   field 3 (bytes): Payload      内容
//   field 5 (bytes): Signature    签名
//
// 签名覆盖 varint 长度前缀的 domain ‖ payloadType ‖ payload，
// domain 只参与签名，不写入信封。

const (
	fieldEnvelopePublicKey   protowire.Number = 1
	fieldEnvelopePayloadType protowire.Number = 2
	fieldEnvelopePayload     protowire.Number = 3
	fieldEnvelopeSignature   protowire.Number = 5
)

// 信封相关错误
var (
	// ErrEmptyDomain 签名域为空
	ErrEmptyDomain = errors.New("envelope domain must not be empty")

	// ErrInvalidSignature 信封签名验证失败
	ErrInvalidSignature = errors.New("invalid envelope signature")

	// ErrMalformedEnvelope 信封结构损坏
	ErrMalformedEnvelope = errors.New("malformed envelope")
)

// SignedEnvelope 签名信封
//
// 由 Seal 创建，由 ConsumeEnvelope 解码并验证。
type SignedEnvelope struct {
	// PublicKey 签名者公钥
	PublicKey PublicKey

	// PayloadType 内容类型
	PayloadType []byte

	// Payload 信封内容
	Payload []byte

	// Signature 签名
	Signature []byte
}

// Seal 使用密钥对签名内容并创建信封
func Seal(kp *Keypair, domain string, payloadType, payload []byte) (*SignedEnvelope, error) {
	unsigned, err := envelopeSigningBytes(domain, payloadType, payload)
	if err != nil {
		return nil, err
	}

	sig, err := kp.Sign(unsigned)
	if err != nil {
		return nil, err
	}

	return &SignedEnvelope{
		PublicKey:   kp.Public(),
		PayloadType: payloadType,
		Payload:     payload,
		Signature:   sig,
	}, nil
}

// Verify 在给定签名域下验证信封签名
func (e *SignedEnvelope) Verify(domain string) error {
	unsigned, err := envelopeSigningBytes(domain, e.PayloadType, e.Payload)
	if err != nil {
		return err
	}
	if !e.PublicKey.Verify(unsigned, e.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// Open 验证签名并返回内容
func (e *SignedEnvelope) Open(domain string) ([]byte, error) {
	if err := e.Verify(domain); err != nil {
		return nil, err
	}
	return e.Payload, nil
}

// Equal 比较两个信封
func (e *SignedEnvelope) Equal(other *SignedEnvelope) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.PublicKey.Equal(other.PublicKey) &&
		bytes.Equal(e.PayloadType, other.PayloadType) &&
		bytes.Equal(e.Payload, other.Payload) &&
		bytes.Equal(e.Signature, other.Signature)
}

// Marshal 编码信封
func (e *SignedEnvelope) Marshal() ([]byte, error) {
	if e.PublicKey.IsZero() {
		return nil, fmt.Errorf("%w: missing public key", ErrMalformedEnvelope)
	}

	var buf []byte
	buf = protowire.AppendTag(buf, fieldEnvelopePublicKey, protowire.BytesType)
	buf = protowire.AppendBytes(buf, e.PublicKey.Marshal())
	buf = protowire.AppendTag(buf, fieldEnvelopePayloadType, protowire.BytesType)
	buf = protowire.AppendBytes(buf, e.PayloadType)
	buf = protowire.AppendTag(buf, fieldEnvelopePayload, protowire.BytesType)
	buf = protowire.AppendBytes(buf, e.Payload)
	buf = protowire.AppendTag(buf, fieldEnvelopeSignature, protowire.BytesType)
	buf = protowire.AppendBytes(buf, e.Signature)
	return buf, nil
}

// UnmarshalEnvelope 解码信封，不验证签名
func UnmarshalEnvelope(data []byte) (*SignedEnvelope, error) {
	var (
		e      SignedEnvelope
		pubRaw []byte
	)

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, protowire.ParseError(n))
		}
		data = data[n:]

		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedEnvelope, num, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		v, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedEnvelope, num, protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case fieldEnvelopePublicKey:
			pubRaw = v
		case fieldEnvelopePayloadType:
			e.PayloadType = bytes.Clone(v)
		case fieldEnvelopePayload:
			e.Payload = bytes.Clone(v)
		case fieldEnvelopeSignature:
			e.Signature = bytes.Clone(v)
		}
	}

	if pubRaw == nil {
		return nil, fmt.Errorf("%w: missing public key", ErrMalformedEnvelope)
	}
	pub, err := UnmarshalPublicKey(pubRaw)
	if err != nil {
		return nil, err
	}
	e.PublicKey = pub
	return &e, nil
}

// ConsumeEnvelope 解码信封并在给定签名域下验证
func ConsumeEnvelope(data []byte, domain string) (*SignedEnvelope, error) {
	e, err := UnmarshalEnvelope(data)
	if err != nil {
		return nil, err
	}
	if err := e.Verify(domain); err != nil {
		return nil, err
	}
	return e, nil
}

// envelopeSigningBytes 构造待签名数据
func envelopeSigningBytes(domain string, payloadType, payload []byte) ([]byte, error) {
	if domain == "" {
		return nil, ErrEmptyDomain
	}

	size := varint.UvarintSize(uint64(len(domain))) + len(domain) +
		varint.UvarintSize(uint64(len(payloadType))) + len(payloadType) +
		varint.UvarintSize(uint64(len(payload))) + len(payload)

	buf := make([]byte, 0, size)
	for _, field := range [][]byte{[]byte(domain), payloadType, payload} {
		buf = append(buf, varint.ToUvarint(uint64(len(field)))...)
		buf = append(buf, field...)
	}
	return buf, nil
}
