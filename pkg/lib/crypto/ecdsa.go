package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"

	sha256 "github.com/minio/sha256-simd"
)

// ecdsaCurve ECDSA 密钥使用的曲线（仅 P-256）
var ecdsaCurve = elliptic.P256()

// ============================================================================
//                              ECDSAPublicKey
// ============================================================================

// ECDSAPublicKey ECDSA 公钥（P-256 曲线）
type ECDSAPublicKey struct {
	k   *ecdsa.PublicKey
	der []byte
}

func newECDSAPublicKey(k *ecdsa.PublicKey) (*ECDSAPublicKey, error) {
	der, err := x509.MarshalPKIXPublicKey(k)
	if err != nil {
		return nil, err
	}
	return &ECDSAPublicKey{k: k, der: der}, nil
}

// Type 返回密钥类型
func (k *ECDSAPublicKey) Type() KeyType {
	return KeyTypeECDSA
}

// Bytes 返回 DER 编码的 SubjectPublicKeyInfo（副本）
func (k *ECDSAPublicKey) Bytes() []byte {
	buf := make([]byte, len(k.der))
	copy(buf, k.der)
	return buf
}

// Key 返回标准库公钥
func (k *ECDSAPublicKey) Key() *ecdsa.PublicKey {
	return k.k
}

// Equal 比较两个公钥是否相等
func (k *ECDSAPublicKey) Equal(other *ECDSAPublicKey) bool {
	if other == nil {
		return false
	}
	return k.k.Equal(other.k)
}

// Verify 验证签名
//
// 签名为 SHA-256 摘要上的 ASN.1 DER 编码 ECDSA 签名。
func (k *ECDSAPublicKey) Verify(data, sig []byte) bool {
	hash := sha256.Sum256(data)
	return ecdsa.VerifyASN1(k.k, hash[:], sig)
}

func (k *ECDSAPublicKey) native() []byte {
	return k.der
}

func (*ECDSAPublicKey) sealedPublicKey() {}

// ============================================================================
//                              ECDSAPrivateKey
// ============================================================================

// ECDSAPrivateKey ECDSA 私钥（P-256 曲线）
type ECDSAPrivateKey struct {
	k   *ecdsa.PrivateKey
	pub *ECDSAPublicKey
}

func newECDSAPrivateKey(k *ecdsa.PrivateKey) (*ECDSAPrivateKey, error) {
	if k.Curve != ecdsaCurve {
		return nil, fmt.Errorf("%w: curve %s is not P-256", ErrInvalidKey, k.Curve.Params().Name)
	}
	pub, err := newECDSAPublicKey(&k.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &ECDSAPrivateKey{k: k, pub: pub}, nil
}

// Type 返回密钥类型
func (k *ECDSAPrivateKey) Type() KeyType {
	return KeyTypeECDSA
}

// Public 返回对应的公钥
func (k *ECDSAPrivateKey) Public() *ECDSAPublicKey {
	return k.pub
}

// Sign 签名数据
//
// 对 SHA-256 摘要签名，返回 ASN.1 DER 编码；签名是随机化的。
func (k *ECDSAPrivateKey) Sign(data []byte) ([]byte, error) {
	hash := sha256.Sum256(data)
	return ecdsa.SignASN1(rand.Reader, k.k, hash[:])
}

// MarshalDER 返回 SEC1 ECPrivateKey DER 编码，调用方负责清零
func (k *ECDSAPrivateKey) MarshalDER() ([]byte, error) {
	return x509.MarshalECPrivateKey(k.k)
}

// Equal 比较两个私钥是否相等
func (k *ECDSAPrivateKey) Equal(other *ECDSAPrivateKey) bool {
	if other == nil {
		return false
	}
	return k.k.Equal(other.k)
}

// String 不输出密钥材料
func (k *ECDSAPrivateKey) String() string {
	return "ECDSAPrivateKey(P-256, redacted)"
}

// GoString 不输出密钥材料
func (k *ECDSAPrivateKey) GoString() string {
	return k.String()
}

// LogValue 实现 slog.LogValuer
func (k *ECDSAPrivateKey) LogValue() slog.Value {
	return slog.StringValue(k.String())
}

func (k *ECDSAPrivateKey) publicVariant() PublicKeyVariant {
	return k.pub
}

func (k *ECDSAPrivateKey) marshalPrivate() ([]byte, error) {
	return k.MarshalDER()
}

func (k *ECDSAPrivateKey) zeroize() {
	zeroBig(k.k.D)
}

func (*ECDSAPrivateKey) sealedPrivateKey() {}

// ============================================================================
//                              工厂函数
// ============================================================================

// GenerateECDSAKey 生成新的 ECDSA 私钥（P-256 曲线）
func GenerateECDSAKey(src io.Reader) (*ECDSAPrivateKey, error) {
	k, err := ecdsa.GenerateKey(ecdsaCurve, src)
	if err != nil {
		return nil, err
	}
	return newECDSAPrivateKey(k)
}

// UnmarshalECDSAPublicKey 从 DER 编码的 SubjectPublicKeyInfo 解码
func UnmarshalECDSAPublicKey(data []byte) (*ECDSAPublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an ECDSA public key", ErrInvalidKey)
	}
	if ecPub.Curve != ecdsaCurve {
		return nil, fmt.Errorf("%w: curve %s is not P-256", ErrInvalidKey, ecPub.Curve.Params().Name)
	}

	return newECDSAPublicKey(ecPub)
}

// ECDSAKeyFromDER 从 SEC1 ECPrivateKey DER 解码
//
// 线格式中的 ECDSA 私钥数据即此编码。
func ECDSAKeyFromDER(der []byte) (*ECDSAPrivateKey, error) {
	k, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return newECDSAPrivateKey(k)
}

// ECDSAKeyFromPKCS8 从 PKCS#8 PrivateKeyInfo（未加密）DER 解码
func ECDSAKeyFromPKCS8(der []byte) (*ECDSAPrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	k, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: PKCS#8 blob does not hold an ECDSA key", ErrInvalidKey)
	}
	return newECDSAPrivateKey(k)
}
