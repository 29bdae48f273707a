package crypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"

	sha256 "github.com/minio/sha256-simd"
)

// RSA 密钥常量
const (
	// RSAMinKeySize RSA 最小密钥大小（位）
	RSAMinKeySize = 2048
	// RSADefaultKeySize RSA 默认密钥大小（位）
	RSADefaultKeySize = 2048
	// RSAMaxKeySize RSA 最大密钥大小（位）
	RSAMaxKeySize = 8192
)

// ============================================================================
//                              RSAPublicKey
// ============================================================================

// RSAPublicKey RSA 公钥
//
// der 在构造时计算一次，保证编码稳定且无需返回错误。
type RSAPublicKey struct {
	k   *rsa.PublicKey
	der []byte
}

func newRSAPublicKey(k *rsa.PublicKey) (*RSAPublicKey, error) {
	der, err := x509.MarshalPKIXPublicKey(k)
	if err != nil {
		return nil, err
	}
	return &RSAPublicKey{k: k, der: der}, nil
}

// Type 返回密钥类型
func (k *RSAPublicKey) Type() KeyType {
	return KeyTypeRSA
}

// Bytes 返回 DER 编码的 SubjectPublicKeyInfo（副本）
func (k *RSAPublicKey) Bytes() []byte {
	buf := make([]byte, len(k.der))
	copy(buf, k.der)
	return buf
}

// Key 返回标准库公钥
func (k *RSAPublicKey) Key() *rsa.PublicKey {
	return k.k
}

// Equal 比较两个公钥是否相等
func (k *RSAPublicKey) Equal(other *RSAPublicKey) bool {
	if other == nil {
		return false
	}
	return k.k.Equal(other.k)
}

// Verify 验证签名（PKCS#1 v1.5 + SHA-256）
func (k *RSAPublicKey) Verify(data, sig []byte) bool {
	hash := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(k.k, crypto.SHA256, hash[:], sig) == nil
}

func (k *RSAPublicKey) native() []byte {
	return k.der
}

func (*RSAPublicKey) sealedPublicKey() {}

// ============================================================================
//                              RSAPrivateKey
// ============================================================================

// RSAPrivateKey RSA 私钥
type RSAPrivateKey struct {
	sk  *rsa.PrivateKey
	pub *RSAPublicKey
}

func newRSAPrivateKey(sk *rsa.PrivateKey) (*RSAPrivateKey, error) {
	bits := sk.N.BitLen()
	if bits < RSAMinKeySize {
		return nil, fmt.Errorf("%w: RSA key too small (%d bits, minimum %d)", ErrInvalidKey, bits, RSAMinKeySize)
	}
	if bits > RSAMaxKeySize {
		return nil, fmt.Errorf("%w: RSA key too large (%d bits, maximum %d)", ErrInvalidKey, bits, RSAMaxKeySize)
	}
	if err := sk.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	sk.Precompute()

	pub, err := newRSAPublicKey(&sk.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return &RSAPrivateKey{sk: sk, pub: pub}, nil
}

// Type 返回密钥类型
func (k *RSAPrivateKey) Type() KeyType {
	return KeyTypeRSA
}

// Public 返回对应的公钥
func (k *RSAPrivateKey) Public() *RSAPublicKey {
	return k.pub
}

// Sign 签名数据（PKCS#1 v1.5 + SHA-256）
func (k *RSAPrivateKey) Sign(data []byte) ([]byte, error) {
	hash := sha256.Sum256(data)
	return rsa.SignPKCS1v15(rand.Reader, k.sk, crypto.SHA256, hash[:])
}

// MarshalPKCS8 返回 PKCS#8 DER 编码，调用方负责清零
func (k *RSAPrivateKey) MarshalPKCS8() ([]byte, error) {
	return x509.MarshalPKCS8PrivateKey(k.sk)
}

// Equal 比较两个私钥是否相等
func (k *RSAPrivateKey) Equal(other *RSAPrivateKey) bool {
	if other == nil {
		return false
	}
	return k.sk.Equal(other.sk)
}

// String 不输出密钥材料
func (k *RSAPrivateKey) String() string {
	return fmt.Sprintf("RSAPrivateKey(%d bits, redacted)", k.sk.N.BitLen())
}

// GoString 不输出密钥材料
func (k *RSAPrivateKey) GoString() string {
	return k.String()
}

// LogValue 实现 slog.LogValuer
func (k *RSAPrivateKey) LogValue() slog.Value {
	return slog.StringValue(k.String())
}

func (k *RSAPrivateKey) publicVariant() PublicKeyVariant {
	return k.pub
}

// marshalPrivate RSA 私钥从不写入密钥记录
func (k *RSAPrivateKey) marshalPrivate() ([]byte, error) {
	return nil, ErrEncodingUnsupported
}

// zeroize 尽力清除 RSA 私钥材料
//
// 只能覆盖 rsa.PrivateKey 的导出字段（D、Primes、Dp、Dq、Qinv）。
// Precompute 在未导出字段中缓存的 p、q 模数副本无法触及，会留在内存中
// 直到被回收。
func (k *RSAPrivateKey) zeroize() {
	zeroBig(k.sk.D)
	for _, p := range k.sk.Primes {
		zeroBig(p)
	}
	zeroBig(k.sk.Precomputed.Dp)
	zeroBig(k.sk.Precomputed.Dq)
	zeroBig(k.sk.Precomputed.Qinv)
}

func (*RSAPrivateKey) sealedPrivateKey() {}

// ============================================================================
//                              工厂函数
// ============================================================================

// GenerateRSAKey 生成新的 RSA 私钥
//
// 参数：
//   - bits: 密钥大小（位），范围 [RSAMinKeySize, RSAMaxKeySize]
//   - src: 随机源
func GenerateRSAKey(bits int, src io.Reader) (*RSAPrivateKey, error) {
	if bits < RSAMinKeySize {
		return nil, fmt.Errorf("%w: RSA key size must be at least %d bits", ErrInvalidKeySize, RSAMinKeySize)
	}
	if bits > RSAMaxKeySize {
		return nil, fmt.Errorf("%w: RSA key size must be at most %d bits", ErrInvalidKeySize, RSAMaxKeySize)
	}

	sk, err := rsa.GenerateKey(src, bits)
	if err != nil {
		return nil, err
	}
	return newRSAPrivateKey(sk)
}

// UnmarshalRSAPublicKey 从 DER 编码的 SubjectPublicKeyInfo 解码
func UnmarshalRSAPublicKey(data []byte) (*RSAPublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA public key", ErrInvalidKey)
	}

	bits := rsaPub.N.BitLen()
	if bits < RSAMinKeySize {
		return nil, fmt.Errorf("%w: RSA key too small (%d bits)", ErrInvalidKey, bits)
	}
	if bits > RSAMaxKeySize {
		return nil, fmt.Errorf("%w: RSA key too large (%d bits)", ErrInvalidKey, bits)
	}

	return newRSAPublicKey(rsaPub)
}

// RSAKeyFromPKCS8 从 PKCS#8 PrivateKeyInfo（未加密）DER 解码
func RSAKeyFromPKCS8(der []byte) (*RSAPrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	sk, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: PKCS#8 blob does not hold an RSA key", ErrInvalidKey)
	}
	return newRSAPrivateKey(sk)
}
