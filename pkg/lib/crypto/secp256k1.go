package crypto

import (
	"encoding/asn1"
	"fmt"
	"io"
	"log/slog"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	sha256 "github.com/minio/sha256-simd"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Secp256k1 密钥常量
const (
	// Secp256k1PrivateKeySize Secp256k1 私钥大小（32 字节）
	Secp256k1PrivateKeySize = secp256k1.PrivKeyBytesLen
	// Secp256k1PublicKeySize Secp256k1 压缩公钥大小（33 字节）
	Secp256k1PublicKeySize = secp256k1.PubKeyBytesLenCompressed
	// Secp256k1UncompressedPublicKeySize Secp256k1 未压缩公钥大小（65 字节）
	Secp256k1UncompressedPublicKeySize = secp256k1.PubKeyBytesLenUncompressed
)

// oidSecp256k1 secp256k1 曲线 OID（SEC 2）
var oidSecp256k1 = asn1.ObjectIdentifier{1, 3, 132, 0, 10}

// ============================================================================
//                              Secp256k1PublicKey
// ============================================================================

// Secp256k1PublicKey Secp256k1 公钥
type Secp256k1PublicKey struct {
	k          *secp256k1.PublicKey
	compressed []byte
}

func newSecp256k1PublicKey(k *secp256k1.PublicKey) *Secp256k1PublicKey {
	return &Secp256k1PublicKey{k: k, compressed: k.SerializeCompressed()}
}

// Type 返回密钥类型
func (k *Secp256k1PublicKey) Type() KeyType {
	return KeyTypeSecp256k1
}

// Bytes 返回 33 字节压缩格式公钥（副本）
func (k *Secp256k1PublicKey) Bytes() []byte {
	buf := make([]byte, len(k.compressed))
	copy(buf, k.compressed)
	return buf
}

// Uncompressed 返回 65 字节未压缩格式公钥
func (k *Secp256k1PublicKey) Uncompressed() []byte {
	return k.k.SerializeUncompressed()
}

// Equal 比较两个公钥是否相等
func (k *Secp256k1PublicKey) Equal(other *Secp256k1PublicKey) bool {
	if other == nil {
		return false
	}
	return k.k.IsEqual(other.k)
}

// Verify 验证签名
//
// 签名为 SHA-256 摘要上的 DER 编码 ECDSA 签名；无法解析的签名视为验证失败。
func (k *Secp256k1PublicKey) Verify(data, sig []byte) bool {
	s, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	hash := sha256.Sum256(data)
	return s.Verify(hash[:], k.k)
}

func (k *Secp256k1PublicKey) native() []byte {
	return k.compressed
}

func (*Secp256k1PublicKey) sealedPublicKey() {}

// ============================================================================
//                              Secp256k1PrivateKey
// ============================================================================

// Secp256k1PrivateKey Secp256k1 私钥
type Secp256k1PrivateKey struct {
	k   *secp256k1.PrivateKey
	pub *Secp256k1PublicKey
}

func newSecp256k1PrivateKey(k *secp256k1.PrivateKey) *Secp256k1PrivateKey {
	return &Secp256k1PrivateKey{k: k, pub: newSecp256k1PublicKey(k.PubKey())}
}

// Type 返回密钥类型
func (k *Secp256k1PrivateKey) Type() KeyType {
	return KeyTypeSecp256k1
}

// Public 返回对应的公钥
func (k *Secp256k1PrivateKey) Public() *Secp256k1PublicKey {
	return k.pub
}

// Sign 签名数据
//
// 对 SHA-256 摘要做 RFC 6979 确定性签名，返回规范化（low-S）的 DER 编码。
func (k *Secp256k1PrivateKey) Sign(data []byte) ([]byte, error) {
	hash := sha256.Sum256(data)
	return ecdsa.Sign(k.k, hash[:]).Serialize(), nil
}

// Bytes 返回 32 字节私钥标量，调用方负责清零
func (k *Secp256k1PrivateKey) Bytes() []byte {
	return k.k.Serialize()
}

// MarshalDER 返回 SEC1 ECPrivateKey DER 编码（含曲线 OID 和公钥），调用方负责清零
func (k *Secp256k1PrivateKey) MarshalDER() ([]byte, error) {
	scalar := k.k.Serialize()
	defer SecureZero(scalar)

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(1)
		b.AddASN1OctetString(scalar)
		b.AddASN1(cbasn1.Tag(0).Constructed().ContextSpecific(), func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidSecp256k1)
		})
		b.AddASN1(cbasn1.Tag(1).Constructed().ContextSpecific(), func(b *cryptobyte.Builder) {
			b.AddASN1BitString(k.pub.Uncompressed())
		})
	})
	return b.Bytes()
}

// Equal 使用常量时间比较两个私钥
func (k *Secp256k1PrivateKey) Equal(other *Secp256k1PrivateKey) bool {
	if other == nil {
		return false
	}
	return k.k.Key.Equals(&other.k.Key)
}

// String 不输出密钥材料
func (k *Secp256k1PrivateKey) String() string {
	return "Secp256k1PrivateKey(redacted)"
}

// GoString 不输出密钥材料
func (k *Secp256k1PrivateKey) GoString() string {
	return k.String()
}

// LogValue 实现 slog.LogValuer
func (k *Secp256k1PrivateKey) LogValue() slog.Value {
	return slog.StringValue(k.String())
}

func (k *Secp256k1PrivateKey) publicVariant() PublicKeyVariant {
	return k.pub
}

func (k *Secp256k1PrivateKey) marshalPrivate() ([]byte, error) {
	return k.Bytes(), nil
}

func (k *Secp256k1PrivateKey) zeroize() {
	k.k.Zero()
}

func (*Secp256k1PrivateKey) sealedPrivateKey() {}

// ============================================================================
//                              工厂函数
// ============================================================================

// GenerateSecp256k1Key 生成新的 Secp256k1 私钥
func GenerateSecp256k1Key(src io.Reader) (*Secp256k1PrivateKey, error) {
	k, err := secp256k1.GeneratePrivateKeyFromRand(src)
	if err != nil {
		return nil, err
	}
	return newSecp256k1PrivateKey(k), nil
}

// UnmarshalSecp256k1PublicKey 从字节解码 Secp256k1 公钥
//
// 支持压缩格式（33 字节）和未压缩格式（65 字节），并校验点在曲线上。
func UnmarshalSecp256k1PublicKey(data []byte) (*Secp256k1PublicKey, error) {
	switch len(data) {
	case Secp256k1PublicKeySize, Secp256k1UncompressedPublicKeySize:
	default:
		return nil, fmt.Errorf("%w: expected %d or %d bytes, got %d",
			ErrInvalidKeySize, Secp256k1PublicKeySize, Secp256k1UncompressedPublicKeySize, len(data))
	}

	k, err := secp256k1.ParsePubKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return newSecp256k1PublicKey(k), nil
}

// UnmarshalSecp256k1PrivateKey 从 32 字节标量解码 Secp256k1 私钥
//
// 标量必须位于 [1, n-1]。
func UnmarshalSecp256k1PrivateKey(data []byte) (*Secp256k1PrivateKey, error) {
	if len(data) != Secp256k1PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d",
			ErrInvalidKeySize, Secp256k1PrivateKeySize, len(data))
	}

	var s secp256k1.ModNScalar
	defer s.Zero()

	if overflow := s.SetByteSlice(data); overflow || s.IsZero() {
		return nil, fmt.Errorf("%w: secp256k1 scalar out of range", ErrInvalidKey)
	}
	return newSecp256k1PrivateKey(secp256k1.NewPrivateKey(&s)), nil
}

// Secp256k1KeyFromDER 从 SEC1 ECPrivateKey DER 结构（RFC 5915）解码
//
// 如果结构中带有曲线参数，必须为 secp256k1。可选的公钥字段仅做语法检查，
// 公钥总是从私钥重新派生。
func Secp256k1KeyFromDER(der []byte) (*Secp256k1PrivateKey, error) {
	input := cryptobyte.String(der)

	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, fmt.Errorf("%w: malformed ECPrivateKey sequence", ErrInvalidKey)
	}

	var version int
	if !seq.ReadASN1Integer(&version) || version != 1 {
		return nil, fmt.Errorf("%w: unsupported ECPrivateKey version", ErrInvalidKey)
	}

	var scalar cryptobyte.String
	if !seq.ReadASN1(&scalar, cbasn1.OCTET_STRING) {
		return nil, fmt.Errorf("%w: malformed ECPrivateKey scalar", ErrInvalidKey)
	}

	var (
		params    cryptobyte.String
		hasParams bool
	)
	if !seq.ReadOptionalASN1(&params, &hasParams, cbasn1.Tag(0).Constructed().ContextSpecific()) {
		return nil, fmt.Errorf("%w: malformed ECPrivateKey parameters", ErrInvalidKey)
	}
	if hasParams {
		var oid asn1.ObjectIdentifier
		if !params.ReadASN1ObjectIdentifier(&oid) {
			return nil, fmt.Errorf("%w: malformed curve identifier", ErrInvalidKey)
		}
		if !oid.Equal(oidSecp256k1) {
			return nil, fmt.Errorf("%w: curve %s is not secp256k1", ErrInvalidKey, oid)
		}
	}

	var (
		pubField cryptobyte.String
		hasPub   bool
	)
	if !seq.ReadOptionalASN1(&pubField, &hasPub, cbasn1.Tag(1).Constructed().ContextSpecific()) || !seq.Empty() {
		return nil, fmt.Errorf("%w: malformed ECPrivateKey trailer", ErrInvalidKey)
	}

	return UnmarshalSecp256k1PrivateKey(scalar)
}
