package identity

import (
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/dep2p/go-dep2p-identity/pkg/lib/crypto"
)

// PEM 类型常量
const (
	pemTypeEd25519Private   = "ED25519 PRIVATE KEY"
	pemTypeSecp256k1Private = "SECP256K1 PRIVATE KEY"
	pemTypeECDSAPrivate     = "EC PRIVATE KEY"
	pemTypePKCS8Private     = "PRIVATE KEY"
	pemTypePublic           = "PUBLIC KEY"
)

// 错误定义
var (
	// ErrInvalidPEM 无效的 PEM 数据
	ErrInvalidPEM = errors.New("invalid PEM data")
	// ErrKeyNotFound 密钥未找到
	ErrKeyNotFound = errors.New("key not found")
)

// ============================================================================
//                              私钥持久化
// ============================================================================

// EncodePrivateKeyPEM 将密钥对编码为 PEM
//
// Ed25519 使用 64 字节原始格式，Secp256k1 与 ECDSA 使用 SEC1 DER，
// RSA 使用 PKCS#8。调用方负责清零返回值。
func EncodePrivateKeyPEM(kp *crypto.Keypair) ([]byte, error) {
	var (
		block *pem.Block
		der   []byte
		err   error
	)

	switch kp.Type() {
	case crypto.KeyTypeEd25519:
		sk, _ := kp.TryIntoEd25519()
		block = &pem.Block{Type: pemTypeEd25519Private, Bytes: sk.Bytes()}
	case crypto.KeyTypeSecp256k1:
		sk, _ := kp.TryIntoSecp256k1()
		der, err = sk.MarshalDER()
		block = &pem.Block{Type: pemTypeSecp256k1Private, Bytes: der}
	case crypto.KeyTypeECDSA:
		sk, _ := kp.TryIntoECDSA()
		der, err = sk.MarshalDER()
		block = &pem.Block{Type: pemTypeECDSAPrivate, Bytes: der}
	case crypto.KeyTypeRSA:
		sk, _ := kp.TryIntoRSA()
		der, err = sk.MarshalPKCS8()
		block = &pem.Block{Type: pemTypePKCS8Private, Bytes: der}
	default:
		return nil, crypto.ErrNilKey
	}
	if err != nil {
		return nil, err
	}
	defer crypto.SecureZero(block.Bytes)

	return pem.EncodeToMemory(block), nil
}

// DecodePrivateKeyPEM 从 PEM 解码密钥对
func DecodePrivateKeyPEM(data []byte) (*crypto.Keypair, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEM
	}

	switch block.Type {
	case pemTypeEd25519Private:
		return crypto.ImportKeypair(crypto.KeyTypeEd25519, crypto.FormatRaw, block.Bytes)
	case pemTypeSecp256k1Private:
		return crypto.ImportKeypair(crypto.KeyTypeSecp256k1, crypto.FormatSEC1, block.Bytes)
	case pemTypeECDSAPrivate:
		return crypto.ImportKeypair(crypto.KeyTypeECDSA, crypto.FormatSEC1, block.Bytes)
	case pemTypePKCS8Private:
		return importPKCS8(block.Bytes)
	default:
		crypto.SecureZero(block.Bytes)
		return nil, fmt.Errorf("%w: PEM type %q", crypto.ErrUnsupportedKeyType, block.Type)
	}
}

// importPKCS8 依次尝试 PKCS#8 可承载的密钥类型
func importPKCS8(der []byte) (*crypto.Keypair, error) {
	defer crypto.SecureZero(der)

	var errs error
	for _, kt := range []crypto.KeyType{crypto.KeyTypeRSA, crypto.KeyTypeECDSA, crypto.KeyTypeEd25519} {
		buf := append([]byte(nil), der...)
		kp, err := crypto.ImportKeypair(kt, crypto.FormatPKCS8, buf)
		if err == nil {
			return kp, nil
		}
		errs = multierr.Append(errs, err)
	}
	return nil, errs
}

// SavePrivateKeyPEM 保存私钥到 PEM 文件
//
// 使用原子写操作（临时文件 + rename）防止部分写入导致的文件损坏。
// 文件权限设置为 0600，仅所有者可读写。
func SavePrivateKeyPEM(kp *crypto.Keypair, path string) error {
	data, err := EncodePrivateKeyPEM(kp)
	if err != nil {
		return err
	}
	defer crypto.SecureZero(data)

	return atomicWriteFile(path, data, 0600)
}

// LoadPrivateKeyPEM 从 PEM 文件加载私钥
func LoadPrivateKeyPEM(path string) (*crypto.Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	defer crypto.SecureZero(data)

	return DecodePrivateKeyPEM(data)
}

// ============================================================================
//                              公钥持久化
// ============================================================================

// SavePublicKeyPEM 保存公钥到 PEM 文件
//
// 内容为 Marshal 后的密钥记录，任意密钥类型都可保存。
func SavePublicKeyPEM(pub crypto.PublicKey, path string) error {
	if pub.IsZero() {
		return crypto.ErrNilKey
	}
	data := pem.EncodeToMemory(&pem.Block{
		Type:    pemTypePublic,
		Headers: map[string]string{"Key-Type": pub.Type().String()},
		Bytes:   pub.Marshal(),
	})
	return atomicWriteFile(path, data, 0644)
}

// LoadPublicKeyPEM 从 PEM 文件加载公钥
func LoadPublicKeyPEM(path string) (crypto.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return crypto.PublicKey{}, ErrKeyNotFound
		}
		return crypto.PublicKey{}, err
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemTypePublic {
		return crypto.PublicKey{}, ErrInvalidPEM
	}
	return crypto.UnmarshalPublicKey(block.Bytes)
}

// ============================================================================
//                              原子写操作
// ============================================================================

// atomicWriteFile 原子写文件
//
// 使用临时文件 + rename 策略，防止部分写入导致的文件损坏。
// 流程：
//  1. 写入临时文件（同目录下，前缀 .tmp-）
//  2. 同步到磁盘
//  3. 原子 rename 到目标路径
//
// 如果任何步骤失败，目标文件保持不变。
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpPath := tmpFile.Name()

	// 确保失败时清理临时文件
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("写入临时文件失败: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("同步临时文件失败: %w", err)
	}

	if err := tmpFile.Chmod(perm); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("设置文件权限失败: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("原子 rename 失败: %w", err)
	}

	success = true
	return nil
}
