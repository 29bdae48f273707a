package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ============================================================================
//                              PrivateKeyVariant
// ============================================================================

// PrivateKeyVariant 具体算法私钥的封闭集合
//
// 仅由 *Ed25519PrivateKey、*RSAPrivateKey、*Secp256k1PrivateKey、
// *ECDSAPrivateKey 实现。
type PrivateKeyVariant interface {
	// Type 返回密钥类型
	Type() KeyType
	// Sign 签名数据
	Sign(data []byte) ([]byte, error)

	publicVariant() PublicKeyVariant
	marshalPrivate() ([]byte, error)
	zeroize()
	sealedPrivateKey()
}

// KeyFormat 导入私钥时的字节格式
type KeyFormat int

const (
	// FormatRaw 算法原生的裸字节（Ed25519 种子或种子+公钥、Secp256k1 标量）
	FormatRaw KeyFormat = iota
	// FormatPKCS8 未加密的 PKCS#8 PrivateKeyInfo DER
	FormatPKCS8
	// FormatSEC1 SEC1 ECPrivateKey DER（RFC 5915）
	FormatSEC1
)

// String 返回格式名称
func (f KeyFormat) String() string {
	switch f {
	case FormatRaw:
		return "raw"
	case FormatPKCS8:
		return "pkcs8"
	case FormatSEC1:
		return "sec1"
	default:
		return fmt.Sprintf("KeyFormat(%d)", int(f))
	}
}

// ============================================================================
//                              Keypair
// ============================================================================

// Keypair 节点身份密钥对
//
// 持有一个具体算法私钥，可在 goroutine 之间并发使用。Zeroize 与 Sign、
// Marshal 等方法互斥：清零等待进行中的签名完成，之后的调用返回 ErrNilKey。
// 通过 Variant、As、TryInto* 取出的具体私钥不受此保护，调用方须保证
// 它们不与 Zeroize 并发使用。
type Keypair struct {
	mu    sync.RWMutex
	inner PrivateKeyVariant
}

// NewKeypair 包装具体算法私钥
func NewKeypair(v PrivateKeyVariant) (*Keypair, error) {
	if isNilVariant(v) {
		return nil, ErrNilKey
	}
	return &Keypair{inner: v}, nil
}

// Type 返回密钥类型
//
// 已清零的密钥对返回 -1。
func (k *Keypair) Type() KeyType {
	if k == nil {
		return -1
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.inner == nil {
		return -1
	}
	return k.inner.Type()
}

// Sign 使用私钥签名数据
//
// 签名方案由密钥类型决定，见包文档。
func (k *Keypair) Sign(data []byte) ([]byte, error) {
	if k == nil {
		return nil, &SigningError{KeyType: -1, Err: ErrNilKey}
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.inner == nil {
		return nil, &SigningError{KeyType: -1, Err: ErrNilKey}
	}
	sig, err := k.inner.Sign(data)
	if err != nil {
		return nil, &SigningError{KeyType: k.inner.Type(), Err: err}
	}
	return sig, nil
}

// Public 返回对应的公钥
func (k *Keypair) Public() PublicKey {
	if k == nil {
		return PublicKey{}
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.inner == nil {
		return PublicKey{}
	}
	return PublicKey{inner: k.inner.publicVariant()}
}

// Marshal 编码为密钥记录
//
// RSA 私钥不支持此格式，返回包装 ErrEncodingUnsupported 的 *EncodingError。
// 返回的字节含有秘密材料，调用方负责清零。
func (k *Keypair) Marshal() ([]byte, error) {
	if k == nil {
		return nil, &EncodingError{KeyType: -1, Err: ErrNilKey}
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.inner == nil {
		return nil, &EncodingError{KeyType: -1, Err: ErrNilKey}
	}

	kt := k.inner.Type()
	data, err := k.inner.marshalPrivate()
	if err != nil {
		return nil, &EncodingError{KeyType: kt, Err: err}
	}
	defer SecureZero(data)

	return marshalKeyRecord(kt, data), nil
}

// Zeroize 清除私钥材料
//
// 之后 Sign 和 Marshal 均返回 ErrNilKey。重复调用是安全的。
func (k *Keypair) Zeroize() {
	if k == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.inner == nil {
		return
	}
	k.inner.zeroize()
	k.inner = nil
}

// String 不输出密钥材料
func (k *Keypair) String() string {
	kt := k.Type()
	if kt < 0 {
		return "Keypair(<nil>)"
	}
	return fmt.Sprintf("Keypair(%s, redacted)", kt)
}

// GoString 不输出密钥材料
func (k *Keypair) GoString() string {
	return k.String()
}

// LogValue 实现 slog.LogValuer
func (k *Keypair) LogValue() slog.Value {
	return slog.StringValue(k.String())
}

// ============================================================================
//                              向下转换
// ============================================================================

// Variant 返回具体算法私钥
func (k *Keypair) Variant() PrivateKeyVariant {
	if k == nil {
		return nil
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.inner
}

// As 在类型匹配时返回具体算法私钥，否则返回 *OtherVariantError
func (k *Keypair) As(kt KeyType) (PrivateKeyVariant, error) {
	v := k.Variant()
	if v == nil {
		return nil, ErrNilKey
	}
	if v.Type() != kt {
		return nil, &OtherVariantError{Expected: kt, Actual: v.Type()}
	}
	return v, nil
}

// TryIntoEd25519 转换为 Ed25519 私钥
func (k *Keypair) TryIntoEd25519() (*Ed25519PrivateKey, error) {
	return downcastPrivate[*Ed25519PrivateKey](k, KeyTypeEd25519)
}

// TryIntoRSA 转换为 RSA 私钥
func (k *Keypair) TryIntoRSA() (*RSAPrivateKey, error) {
	return downcastPrivate[*RSAPrivateKey](k, KeyTypeRSA)
}

// TryIntoSecp256k1 转换为 Secp256k1 私钥
func (k *Keypair) TryIntoSecp256k1() (*Secp256k1PrivateKey, error) {
	return downcastPrivate[*Secp256k1PrivateKey](k, KeyTypeSecp256k1)
}

// TryIntoECDSA 转换为 ECDSA 私钥
func (k *Keypair) TryIntoECDSA() (*ECDSAPrivateKey, error) {
	return downcastPrivate[*ECDSAPrivateKey](k, KeyTypeECDSA)
}

func downcastPrivate[T PrivateKeyVariant](k *Keypair, want KeyType) (T, error) {
	var zero T
	inner := k.Variant()
	if inner == nil {
		return zero, ErrNilKey
	}
	v, ok := inner.(T)
	if !ok {
		return zero, &OtherVariantError{Expected: want, Actual: inner.Type()}
	}
	return v, nil
}

// ============================================================================
//                              生成
// ============================================================================

// GenerateKeypair 使用系统随机源生成指定类型的密钥对
//
// RSA 使用 RSADefaultKeySize。
func GenerateKeypair(kt KeyType) (*Keypair, error) {
	return GenerateKeypairWithReader(kt, rand.Reader)
}

// GenerateKeypairWithReader 使用指定随机源生成密钥对
//
// 确定性随机源只应用于测试。
func GenerateKeypairWithReader(kt KeyType, src io.Reader) (*Keypair, error) {
	if !kt.Valid() {
		return nil, fmt.Errorf("generate key: %w: %d", ErrUnsupportedKeyType, int32(kt))
	}
	if !Enabled(kt) {
		logger.Debug("请求生成未启用的密钥类型", "keyType", kt)
		return nil, fmt.Errorf("generate %s key: %w", kt, ErrMissingFeature)
	}

	var (
		v   PrivateKeyVariant
		err error
	)
	switch kt {
	case KeyTypeEd25519:
		v, err = GenerateEd25519Key(src)
	case KeyTypeRSA:
		v, err = GenerateRSAKey(RSADefaultKeySize, src)
	case KeyTypeSecp256k1:
		v, err = GenerateSecp256k1Key(src)
	case KeyTypeECDSA:
		v, err = GenerateECDSAKey(src)
	}
	if err != nil {
		return nil, fmt.Errorf("generate %s key: %w", kt, err)
	}
	return &Keypair{inner: v}, nil
}

// GenerateEd25519 生成 Ed25519 密钥对
func GenerateEd25519() (*Keypair, error) {
	return GenerateKeypair(KeyTypeEd25519)
}

// GenerateSecp256k1 生成 Secp256k1 密钥对
func GenerateSecp256k1() (*Keypair, error) {
	return GenerateKeypair(KeyTypeSecp256k1)
}

// GenerateECDSA 生成 ECDSA P-256 密钥对
func GenerateECDSA() (*Keypair, error) {
	return GenerateKeypair(KeyTypeECDSA)
}

// GenerateRSA 生成指定位数的 RSA 密钥对
func GenerateRSA(bits int) (*Keypair, error) {
	if !Enabled(KeyTypeRSA) {
		return nil, fmt.Errorf("generate %s key: %w", KeyTypeRSA, ErrMissingFeature)
	}
	sk, err := GenerateRSAKey(bits, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate %s key: %w", KeyTypeRSA, err)
	}
	return &Keypair{inner: sk}, nil
}

// ============================================================================
//                              导入
// ============================================================================

// ImportKeypair 从外部格式导入私钥
//
// 支持的组合：
//   - Ed25519: FormatRaw（32 字节种子或 64 字节种子+公钥）、FormatPKCS8
//   - RSA: FormatPKCS8
//   - Secp256k1: FormatRaw（32 字节标量）、FormatSEC1
//   - ECDSA: FormatSEC1、FormatPKCS8
//
// 无论成功与否，输入缓冲区都会被清零。
func ImportKeypair(kt KeyType, format KeyFormat, b []byte) (*Keypair, error) {
	defer SecureZero(b)

	stage := kt.String() + " private key (" + format.String() + ")"
	if !kt.Valid() {
		return nil, decodeErr(stage, kt, fmt.Errorf("%w: %d", ErrUnsupportedKeyType, int32(kt)))
	}
	if !Enabled(kt) {
		return nil, missingFeature(stage, kt)
	}

	v, err := importVariant(kt, format, b)
	if err != nil {
		return nil, decodeErr(stage, kt, err)
	}
	return &Keypair{inner: v}, nil
}

func importVariant(kt KeyType, format KeyFormat, b []byte) (PrivateKeyVariant, error) {
	switch {
	case kt == KeyTypeEd25519 && format == FormatRaw:
		if len(b) == Ed25519SeedSize {
			return Ed25519KeyFromSeed(b)
		}
		return UnmarshalEd25519PrivateKey(b)

	case kt == KeyTypeEd25519 && format == FormatPKCS8:
		key, err := x509.ParsePKCS8PrivateKey(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		sk, ok := key.(ed25519.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: PKCS#8 blob does not hold an Ed25519 key", ErrInvalidKey)
		}
		defer SecureZero(sk)
		return Ed25519KeyFromSeed(sk.Seed())

	case kt == KeyTypeRSA && format == FormatPKCS8:
		return RSAKeyFromPKCS8(b)

	case kt == KeyTypeSecp256k1 && format == FormatRaw:
		return UnmarshalSecp256k1PrivateKey(b)

	case kt == KeyTypeSecp256k1 && format == FormatSEC1:
		return Secp256k1KeyFromDER(b)

	case kt == KeyTypeECDSA && format == FormatSEC1:
		return ECDSAKeyFromDER(b)

	case kt == KeyTypeECDSA && format == FormatPKCS8:
		return ECDSAKeyFromPKCS8(b)

	default:
		return nil, fmt.Errorf("%w: %s does not accept %s", ErrUnsupportedFormat, kt, format)
	}
}

// Ed25519FromBytes 从 32 字节种子导入 Ed25519 密钥对，输入会被清零
func Ed25519FromBytes(secret []byte) (*Keypair, error) {
	if len(secret) != Ed25519SeedSize {
		SecureZero(secret)
		return nil, decodeErr("Ed25519 secret key", KeyTypeEd25519,
			fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeySize, Ed25519SeedSize, len(secret)))
	}
	return ImportKeypair(KeyTypeEd25519, FormatRaw, secret)
}

// Secp256k1FromBytes 从 32 字节标量导入 Secp256k1 密钥对，输入会被清零
func Secp256k1FromBytes(secret []byte) (*Keypair, error) {
	return ImportKeypair(KeyTypeSecp256k1, FormatRaw, secret)
}

// Secp256k1FromDER 从 SEC1 DER 导入 Secp256k1 密钥对，输入会被清零
func Secp256k1FromDER(der []byte) (*Keypair, error) {
	return ImportKeypair(KeyTypeSecp256k1, FormatSEC1, der)
}

// RSAFromPKCS8 从 PKCS#8 DER 导入 RSA 密钥对，输入会被清零
func RSAFromPKCS8(der []byte) (*Keypair, error) {
	return ImportKeypair(KeyTypeRSA, FormatPKCS8, der)
}

// ECDSAFromDER 从 SEC1 DER 导入 ECDSA 密钥对，输入会被清零
func ECDSAFromDER(der []byte) (*Keypair, error) {
	return ImportKeypair(KeyTypeECDSA, FormatSEC1, der)
}

// ============================================================================
//                              线格式解码
// ============================================================================

// UnmarshalKeypair 从密钥记录解码密钥对
//
// 记录中的私钥数据先复制到临时缓冲区，函数返回时清零。
// RSA 私钥记录返回包装 ErrDecodingUnsupported 的 *DecodingError。
func UnmarshalKeypair(data []byte) (*Keypair, error) {
	rec, err := unmarshalKeyRecord("private key bytes", data)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, len(rec.Data))
	copy(buf, rec.Data)
	defer SecureZero(buf)

	stage := rec.Type.String() + " private key"
	// RSA 私钥记录与构建配置无关，一律不支持
	if rec.Type == KeyTypeRSA {
		return nil, decodeErr(stage, rec.Type, ErrDecodingUnsupported)
	}
	if !Enabled(rec.Type) {
		return nil, missingFeature(stage, rec.Type)
	}

	var v PrivateKeyVariant
	switch rec.Type {
	case KeyTypeEd25519:
		v, err = UnmarshalEd25519PrivateKey(buf)
	case KeyTypeSecp256k1:
		v, err = UnmarshalSecp256k1PrivateKey(buf)
	case KeyTypeECDSA:
		v, err = ECDSAKeyFromDER(buf)
	default:
		return nil, decodeErr(stage, rec.Type, ErrUnsupportedKeyType)
	}
	if err != nil {
		return nil, decodeErr(stage, rec.Type, err)
	}
	return &Keypair{inner: v}, nil
}
