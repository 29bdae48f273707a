package crypto

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/spaolacci/murmur3"
)

// ============================================================================
//                              PublicKeyVariant
// ============================================================================

// PublicKeyVariant 具体算法公钥的封闭集合
//
// 仅由 *Ed25519PublicKey、*RSAPublicKey、*Secp256k1PublicKey、
// *ECDSAPublicKey 实现。
type PublicKeyVariant interface {
	// Type 返回密钥类型
	Type() KeyType
	// Bytes 返回算法原生编码
	Bytes() []byte
	// Verify 验证签名
	Verify(data, sig []byte) bool

	native() []byte
	sealedPublicKey()
}

// ============================================================================
//                              PublicKey
// ============================================================================

// PublicKey 节点身份公钥
//
// 不可变的值类型，可在 goroutine 之间自由复制和共享。
// 零值不持有任何密钥，Verify 总是返回 false。
type PublicKey struct {
	inner PublicKeyVariant
}

// NewPublicKey 包装具体算法公钥
func NewPublicKey(v PublicKeyVariant) (PublicKey, error) {
	if isNilVariant(v) {
		return PublicKey{}, ErrNilKey
	}
	return PublicKey{inner: v}, nil
}

// IsZero 报告公钥是否为零值
func (k PublicKey) IsZero() bool {
	return k.inner == nil
}

// Type 返回密钥类型
//
// 零值返回 -1。
func (k PublicKey) Type() KeyType {
	if k.inner == nil {
		return -1
	}
	return k.inner.Type()
}

// Verify 验证签名
//
// 检查签名由对应私钥生成且消息未被篡改。
// 格式错误的签名视为验证失败，不返回错误。
func (k PublicKey) Verify(data, sig []byte) bool {
	if k.inner == nil {
		return false
	}
	return k.inner.Verify(data, sig)
}

// Raw 返回算法原生编码（即线格式 Data 字段）
func (k PublicKey) Raw() []byte {
	if k.inner == nil {
		return nil
	}
	return k.inner.Bytes()
}

// Marshal 编码为密钥记录，用于存储或与其他节点交换
//
// 同一公钥的编码逐字节稳定，PeerID 派生依赖此性质。
func (k PublicKey) Marshal() []byte {
	if k.inner == nil {
		return nil
	}
	return marshalKeyRecord(k.inner.Type(), k.inner.native())
}

// UnmarshalPublicKey 从密钥记录解码公钥
func UnmarshalPublicKey(data []byte) (PublicKey, error) {
	rec, err := unmarshalKeyRecord("public key bytes", data)
	if err != nil {
		return PublicKey{}, err
	}
	return publicKeyFromRecord(rec)
}

// UnmarshalPublicKeyData 按指定类型解码算法原生编码的公钥
func UnmarshalPublicKeyData(kt KeyType, data []byte) (PublicKey, error) {
	if !kt.Valid() {
		return PublicKey{}, decodeErr("public key", kt, fmt.Errorf("%w: %d", ErrUnsupportedKeyType, int32(kt)))
	}
	return publicKeyFromRecord(keyRecord{Type: kt, Data: data})
}

// publicKeyFromRecord 按记录类型分派到后端解码器
func publicKeyFromRecord(rec keyRecord) (PublicKey, error) {
	stage := rec.Type.String() + " public key"
	if !Enabled(rec.Type) {
		return PublicKey{}, missingFeature(stage, rec.Type)
	}

	var (
		v   PublicKeyVariant
		err error
	)
	switch rec.Type {
	case KeyTypeEd25519:
		v, err = UnmarshalEd25519PublicKey(rec.Data)
	case KeyTypeRSA:
		v, err = UnmarshalRSAPublicKey(rec.Data)
	case KeyTypeSecp256k1:
		v, err = UnmarshalSecp256k1PublicKey(rec.Data)
	case KeyTypeECDSA:
		v, err = UnmarshalECDSAPublicKey(rec.Data)
	default:
		return PublicKey{}, decodeErr(stage, rec.Type, ErrUnsupportedKeyType)
	}
	if err != nil {
		return PublicKey{}, decodeErr(stage, rec.Type, err)
	}
	return PublicKey{inner: v}, nil
}

// ============================================================================
//                              相等、排序与哈希
// ============================================================================

// Equal 比较两个公钥：类型相同且原生编码相同
func (k PublicKey) Equal(other PublicKey) bool {
	if k.inner == nil || other.inner == nil {
		return k.inner == nil && other.inner == nil
	}
	return k.inner.Type() == other.inner.Type() && bytes.Equal(k.inner.native(), other.inner.native())
}

// Compare 全序比较
//
// 先按线格式类型值排序，再按原生编码字节序排序；零值最小。
// 返回 -1、0 或 +1，与 Equal 一致。
func (k PublicKey) Compare(other PublicKey) int {
	switch {
	case k.inner == nil && other.inner == nil:
		return 0
	case k.inner == nil:
		return -1
	case other.inner == nil:
		return 1
	}

	if kt, ot := k.inner.Type(), other.inner.Type(); kt != ot {
		if kt < ot {
			return -1
		}
		return 1
	}
	return bytes.Compare(k.inner.native(), other.inner.native())
}

// Hash 返回与 Equal 一致的 64 位哈希
//
// 对密钥记录编码做 murmur3，跨进程和平台稳定。
func (k PublicKey) Hash() uint64 {
	return murmur3.Sum64(k.Marshal())
}

// MapKey 返回可作为 map 键的可比较表示
//
// 两个公钥 Equal 当且仅当 MapKey 相同。
func (k PublicKey) MapKey() string {
	return string(k.Marshal())
}

// String 返回类型和公钥编码的十六进制前缀，用于日志
func (k PublicKey) String() string {
	if k.inner == nil {
		return "PublicKey(<nil>)"
	}
	raw := hex.EncodeToString(k.inner.native())
	if len(raw) > 16 {
		raw = raw[:16] + "…"
	}
	return fmt.Sprintf("%sPublicKey(%s)", k.inner.Type(), raw)
}

// ============================================================================
//                              向下转换
// ============================================================================

// Variant 返回具体算法公钥
func (k PublicKey) Variant() PublicKeyVariant {
	return k.inner
}

// As 在类型匹配时返回具体算法公钥，否则返回 *OtherVariantError
func (k PublicKey) As(kt KeyType) (PublicKeyVariant, error) {
	if k.inner == nil {
		return nil, ErrNilKey
	}
	if k.inner.Type() != kt {
		return nil, &OtherVariantError{Expected: kt, Actual: k.inner.Type()}
	}
	return k.inner, nil
}

// TryIntoEd25519 转换为 Ed25519 公钥
func (k PublicKey) TryIntoEd25519() (*Ed25519PublicKey, error) {
	return downcastPublic[*Ed25519PublicKey](k, KeyTypeEd25519)
}

// TryIntoRSA 转换为 RSA 公钥
func (k PublicKey) TryIntoRSA() (*RSAPublicKey, error) {
	return downcastPublic[*RSAPublicKey](k, KeyTypeRSA)
}

// TryIntoSecp256k1 转换为 Secp256k1 公钥
func (k PublicKey) TryIntoSecp256k1() (*Secp256k1PublicKey, error) {
	return downcastPublic[*Secp256k1PublicKey](k, KeyTypeSecp256k1)
}

// TryIntoECDSA 转换为 ECDSA 公钥
func (k PublicKey) TryIntoECDSA() (*ECDSAPublicKey, error) {
	return downcastPublic[*ECDSAPublicKey](k, KeyTypeECDSA)
}

func downcastPublic[T PublicKeyVariant](k PublicKey, want KeyType) (T, error) {
	var zero T
	if k.inner == nil {
		return zero, ErrNilKey
	}
	v, ok := k.inner.(T)
	if !ok {
		return zero, &OtherVariantError{Expected: want, Actual: k.inner.Type()}
	}
	return v, nil
}

// isNilVariant 检查接口内是否为 nil 指针
func isNilVariant(v interface{ Type() KeyType }) bool {
	switch x := v.(type) {
	case nil:
		return true
	case *Ed25519PublicKey:
		return x == nil
	case *RSAPublicKey:
		return x == nil
	case *Secp256k1PublicKey:
		return x == nil
	case *ECDSAPublicKey:
		return x == nil
	case *Ed25519PrivateKey:
		return x == nil
	case *RSAPrivateKey:
		return x == nil
	case *Secp256k1PrivateKey:
		return x == nil
	case *ECDSAPrivateKey:
		return x == nil
	default:
		return false
	}
}
