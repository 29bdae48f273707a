package crypto

import (
	"crypto/ed25519"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"

	"filippo.io/edwards25519"
)

// Ed25519 密钥常量
const (
	// Ed25519PrivateKeySize Ed25519 私钥大小（64 字节：种子 + 公钥）
	Ed25519PrivateKeySize = ed25519.PrivateKeySize
	// Ed25519PublicKeySize Ed25519 公钥大小（32 字节）
	Ed25519PublicKeySize = ed25519.PublicKeySize
	// Ed25519SignatureSize Ed25519 签名大小（64 字节）
	Ed25519SignatureSize = ed25519.SignatureSize
	// Ed25519SeedSize Ed25519 种子大小（32 字节）
	Ed25519SeedSize = ed25519.SeedSize
)

// ============================================================================
//                              Ed25519PublicKey
// ============================================================================

// Ed25519PublicKey Ed25519 公钥
type Ed25519PublicKey struct {
	k ed25519.PublicKey
}

// Type 返回密钥类型
func (k *Ed25519PublicKey) Type() KeyType {
	return KeyTypeEd25519
}

// Bytes 返回 32 字节原始公钥（副本）
func (k *Ed25519PublicKey) Bytes() []byte {
	buf := make([]byte, len(k.k))
	copy(buf, k.k)
	return buf
}

// Equal 比较两个公钥是否相等
func (k *Ed25519PublicKey) Equal(other *Ed25519PublicKey) bool {
	if other == nil {
		return false
	}
	return subtle.ConstantTimeCompare(k.k, other.k) == 1
}

// Verify 验证签名
//
// 长度不符或格式错误的签名视为验证失败。
func (k *Ed25519PublicKey) Verify(data, sig []byte) bool {
	if len(sig) != Ed25519SignatureSize {
		return false
	}
	return ed25519.Verify(k.k, data, sig)
}

// native 返回线格式中的原生编码
func (k *Ed25519PublicKey) native() []byte {
	return k.k
}

func (*Ed25519PublicKey) sealedPublicKey() {}

// ============================================================================
//                              Ed25519PrivateKey
// ============================================================================

// Ed25519PrivateKey Ed25519 私钥
type Ed25519PrivateKey struct {
	k ed25519.PrivateKey
}

// Type 返回密钥类型
func (k *Ed25519PrivateKey) Type() KeyType {
	return KeyTypeEd25519
}

// Public 返回对应的公钥
func (k *Ed25519PrivateKey) Public() *Ed25519PublicKey {
	pub := make([]byte, Ed25519PublicKeySize)
	copy(pub, k.k[Ed25519SeedSize:])
	return &Ed25519PublicKey{k: pub}
}

// Sign 签名数据（确定性）
func (k *Ed25519PrivateKey) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(k.k, data), nil
}

// Bytes 返回 64 字节私钥（种子 + 公钥），调用方负责清零
func (k *Ed25519PrivateKey) Bytes() []byte {
	buf := make([]byte, len(k.k))
	copy(buf, k.k)
	return buf
}

// Equal 使用常量时间比较两个私钥
func (k *Ed25519PrivateKey) Equal(other *Ed25519PrivateKey) bool {
	if other == nil {
		return false
	}
	return subtle.ConstantTimeCompare(k.k, other.k) == 1
}

// String 不输出密钥材料
func (k *Ed25519PrivateKey) String() string {
	return "Ed25519PrivateKey(redacted)"
}

// GoString 不输出密钥材料
func (k *Ed25519PrivateKey) GoString() string {
	return k.String()
}

// LogValue 实现 slog.LogValuer
func (k *Ed25519PrivateKey) LogValue() slog.Value {
	return slog.StringValue(k.String())
}

func (k *Ed25519PrivateKey) publicVariant() PublicKeyVariant {
	return k.Public()
}

func (k *Ed25519PrivateKey) marshalPrivate() ([]byte, error) {
	return k.Bytes(), nil
}

func (k *Ed25519PrivateKey) zeroize() {
	SecureZero(k.k)
}

func (*Ed25519PrivateKey) sealedPrivateKey() {}

// ============================================================================
//                              工厂函数
// ============================================================================

// GenerateEd25519Key 生成新的 Ed25519 私钥
func GenerateEd25519Key(src io.Reader) (*Ed25519PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(src)
	if err != nil {
		return nil, err
	}
	return &Ed25519PrivateKey{k: priv}, nil
}

// UnmarshalEd25519PublicKey 从 32 字节原始公钥解码
//
// 不能解压为曲线点的编码返回 ErrInvalidKey。
func UnmarshalEd25519PublicKey(data []byte) (*Ed25519PublicKey, error) {
	if len(data) != Ed25519PublicKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeySize, Ed25519PublicKeySize, len(data))
	}
	if _, err := new(edwards25519.Point).SetBytes(data); err != nil {
		return nil, fmt.Errorf("%w: not a valid curve point: %v", ErrInvalidKey, err)
	}

	k := make([]byte, Ed25519PublicKeySize)
	copy(k, data)
	return &Ed25519PublicKey{k: k}, nil
}

// UnmarshalEd25519PrivateKey 从线格式私钥数据解码
//
// 支持两种格式：
//   - 64 字节：私钥种子 + 公钥（校验公钥与种子一致）
//   - 96 字节：带冗余公钥的旧格式（兼容 go-libp2p）
func UnmarshalEd25519PrivateKey(data []byte) (*Ed25519PrivateKey, error) {
	switch len(data) {
	case Ed25519PrivateKeySize + Ed25519PublicKeySize:
		redundant := data[Ed25519PrivateKeySize:]
		pk := data[Ed25519SeedSize:Ed25519PrivateKeySize]
		if subtle.ConstantTimeCompare(pk, redundant) == 0 {
			return nil, fmt.Errorf("%w: redundant public key mismatch", ErrInvalidKey)
		}
		return ed25519FromKeypairBytes(data[:Ed25519PrivateKeySize])

	case Ed25519PrivateKeySize:
		return ed25519FromKeypairBytes(data)

	default:
		return nil, fmt.Errorf("%w: expected %d or %d bytes, got %d",
			ErrInvalidKeySize, Ed25519PrivateKeySize, Ed25519PrivateKeySize+Ed25519PublicKeySize, len(data))
	}
}

// Ed25519KeyFromSeed 从 32 字节种子派生私钥
func Ed25519KeyFromSeed(seed []byte) (*Ed25519PrivateKey, error) {
	if len(seed) != Ed25519SeedSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeySize, Ed25519SeedSize, len(seed))
	}
	return &Ed25519PrivateKey{k: ed25519.NewKeyFromSeed(seed)}, nil
}

// ed25519FromKeypairBytes 从种子 + 公钥构造私钥，并校验公钥
func ed25519FromKeypairBytes(data []byte) (*Ed25519PrivateKey, error) {
	derived := ed25519.NewKeyFromSeed(data[:Ed25519SeedSize])
	if subtle.ConstantTimeCompare(derived[Ed25519SeedSize:], data[Ed25519SeedSize:]) == 0 {
		SecureZero(derived)
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidKey)
	}
	return &Ed25519PrivateKey{k: derived}, nil
}
