package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/crypto/argon2"
	"lukechampine.com/blake3"
)

// ============================================================================
//                              密钥文件格式
// ============================================================================

// 密钥文件格式：
//
//   ┌────────────────────────────────────────────────────────────┐
//   │                    密钥文件                                 │
//   ├────────────────────────────────────────────────────────────┤
//   │  Magic:     "DEP2P-KEY"  (9 bytes)                         │
//   │  Version:   uint8                                           │
//   │  Encrypted: uint8 (0=否, 1=是)                              │
//   │  Data:      私钥密钥记录或其密文                             │
//   └────────────────────────────────────────────────────────────┘
//
//   明文数据格式：
//   ┌────────────────────────────────────────────────────────────┐
//   │  Record:     私钥密钥记录                                   │
//   │  Checksum:   BLAKE3-256(Record)  (32 bytes)                 │
//   └────────────────────────────────────────────────────────────┘
//
//   加密数据格式：
//   ┌────────────────────────────────────────────────────────────┐
//   │  Salt:       16 bytes                                       │
//   │  Nonce:      12 bytes                                       │
//   │  Ciphertext: 变长（AES-GCM 加密）                           │
//   └────────────────────────────────────────────────────────────┘
//
// 密钥类型包含在密钥记录内，文件头不再重复。

const (
	keyFileMagic   = "DEP2P-KEY"
	keyFileVersion = 2
	keyFileExt     = ".key"

	// 加密参数
	saltSize  = 16
	nonceSize = 12

	// checksumSize 明文记录校验和长度
	checksumSize = 32
)

// 密钥存储相关错误
var (
	// ErrKeyNotFound 密钥未找到
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyExists 密钥已存在
	ErrKeyExists = errors.New("key already exists")

	// ErrInvalidKeyID 密钥 ID 无效
	ErrInvalidKeyID = errors.New("invalid key id")

	// ErrInvalidPassword 密码无效
	ErrInvalidPassword = errors.New("invalid password")

	// ErrDecryptionFailed 解密失败
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidKeyFile 密钥文件格式无效
	ErrInvalidKeyFile = errors.New("invalid key file format")
)

// KDFParams Argon2id 参数
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
}

// DefaultKDFParams 默认 Argon2id 参数（64 MB）
var DefaultKDFParams = KDFParams{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
}

// ============================================================================
//                              Keystore 接口
// ============================================================================

// Keystore 密钥存储接口
//
// 以密钥记录形式保存密钥对，因此 RSA 密钥对无法存入（Put 返回 *EncodingError）。
type Keystore interface {
	// Has 检查是否存在指定 ID 的密钥
	Has(id string) (bool, error)

	// Put 存储密钥
	Put(id string, kp *Keypair) error

	// Get 获取密钥，每次返回新的 Keypair 实例
	Get(id string) (*Keypair, error)

	// Delete 删除密钥
	Delete(id string) error

	// List 列出所有密钥 ID（已排序）
	List() ([]string, error)
}

// LoadAll 读取存储中的全部密钥
//
// 单个密钥失败不会中断读取，所有错误合并后返回。
func LoadAll(ks Keystore) (map[string]*Keypair, error) {
	ids, err := ks.List()
	if err != nil {
		return nil, err
	}

	var errs error
	out := make(map[string]*Keypair, len(ids))
	for _, id := range ids {
		kp, err := ks.Get(id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("key %q: %w", id, err))
			continue
		}
		out[id] = kp
	}
	return out, errs
}

// validateKeyID 拒绝为空或包含路径分隔符的 ID
func validateKeyID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKeyID, id)
	}
	return nil
}

// ============================================================================
//                              文件系统密钥存储
// ============================================================================

// FSKeystore 基于文件系统的密钥存储
type FSKeystore struct {
	dir      string
	password []byte // 可选：用于加密存储
	kdf      KDFParams
}

// NewFSKeystore 创建文件系统密钥存储
//
// 参数：
//   - dir: 存储目录
//   - password: 加密密码（为空则不加密）
func NewFSKeystore(dir string, password []byte) (*FSKeystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FSKeystore{
		dir:      dir,
		password: password,
		kdf:      DefaultKDFParams,
	}, nil
}

// WithKDFParams 替换 Argon2id 参数，返回自身
func (ks *FSKeystore) WithKDFParams(p KDFParams) *FSKeystore {
	ks.kdf = p
	return ks
}

// Has 检查是否存在指定 ID 的密钥
func (ks *FSKeystore) Has(id string) (bool, error) {
	if err := validateKeyID(id); err != nil {
		return false, err
	}
	_, err := os.Stat(ks.keyPath(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// Put 存储密钥
func (ks *FSKeystore) Put(id string, kp *Keypair) error {
	exists, err := ks.Has(id)
	if err != nil {
		return err
	}
	if exists {
		return ErrKeyExists
	}

	data, err := ks.encodeKey(kp)
	if err != nil {
		return err
	}

	logger.Debug("写入密钥文件", "id", id, "keyType", kp.Type(), "encrypted", len(ks.password) > 0)
	// O_EXCL 防止并发写入覆盖
	f, err := os.OpenFile(ks.keyPath(id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return ErrKeyExists
		}
		return err
	}
	_, err = f.Write(data)
	return multierr.Append(err, f.Close())
}

// Get 获取密钥
func (ks *FSKeystore) Get(id string) (*Keypair, error) {
	if err := validateKeyID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(ks.keyPath(id))
	if os.IsNotExist(err) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	defer SecureZero(data)

	return ks.decodeKey(data)
}

// Delete 删除密钥
func (ks *FSKeystore) Delete(id string) error {
	if err := validateKeyID(id); err != nil {
		return err
	}
	err := os.Remove(ks.keyPath(id))
	if os.IsNotExist(err) {
		return ErrKeyNotFound
	}
	if err == nil {
		logger.Debug("删除密钥文件", "id", id)
	}
	return err
}

// List 列出所有密钥 ID
func (ks *FSKeystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.dir)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == keyFileExt {
			ids = append(ids, strings.TrimSuffix(entry.Name(), keyFileExt))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// keyPath 返回密钥文件路径
func (ks *FSKeystore) keyPath(id string) string {
	return filepath.Join(ks.dir, id+keyFileExt)
}

// encodeKey 编码密钥（可选加密）
func (ks *FSKeystore) encodeKey(kp *Keypair) ([]byte, error) {
	raw, err := kp.Marshal()
	if err != nil {
		return nil, err
	}
	defer SecureZero(raw)

	var buf bytes.Buffer
	buf.WriteString(keyFileMagic)
	buf.WriteByte(keyFileVersion)

	if len(ks.password) > 0 {
		buf.WriteByte(1)
		encrypted, err := encryptData(raw, ks.password, ks.kdf)
		if err != nil {
			return nil, err
		}
		buf.Write(encrypted)
	} else {
		buf.WriteByte(0)
		buf.Write(raw)
		sum := blake3.Sum256(raw)
		buf.Write(sum[:])
	}

	return buf.Bytes(), nil
}

// decodeKey 解码密钥
func (ks *FSKeystore) decodeKey(data []byte) (*Keypair, error) {
	if len(data) < len(keyFileMagic)+2 {
		return nil, ErrInvalidKeyFile
	}
	if string(data[:len(keyFileMagic)]) != keyFileMagic {
		return nil, ErrInvalidKeyFile
	}
	offset := len(keyFileMagic)

	version := data[offset]
	if version != keyFileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidKeyFile, version)
	}
	offset++

	encrypted := data[offset] == 1
	offset++

	keyData := data[offset:]
	if encrypted {
		if len(ks.password) == 0 {
			return nil, ErrInvalidPassword
		}
		plain, err := decryptData(keyData, ks.password, ks.kdf)
		if err != nil {
			return nil, err
		}
		defer SecureZero(plain)
		keyData = plain
	} else {
		// 明文记录由 BLAKE3 校验和保护
		if len(keyData) < checksumSize {
			return nil, ErrInvalidKeyFile
		}
		record, sum := keyData[:len(keyData)-checksumSize], keyData[len(keyData)-checksumSize:]
		want := blake3.Sum256(record)
		if subtle.ConstantTimeCompare(want[:], sum) != 1 {
			return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidKeyFile)
		}
		keyData = record
	}

	return UnmarshalKeypair(keyData)
}

// ============================================================================
//                              加密辅助函数
// ============================================================================

// encryptData 使用 AES-GCM 加密数据
func encryptData(plaintext, password []byte, p KDFParams) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	gcm, err := newGCM(password, salt, p)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	// salt || nonce || ciphertext
	out := make([]byte, 0, saltSize+nonceSize+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plaintext, nil), nil
}

// decryptData 使用 AES-GCM 解密数据
func decryptData(data, password []byte, p KDFParams) ([]byte, error) {
	if len(data) < saltSize+nonceSize {
		return nil, ErrDecryptionFailed
	}

	salt := data[:saltSize]
	nonce := data[saltSize : saltSize+nonceSize]
	ciphertext := data[saltSize+nonceSize:]

	gcm, err := newGCM(password, salt, p)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func newGCM(password, salt []byte, p KDFParams) (cipher.AEAD, error) {
	key := DeriveKey(password, salt, p)
	defer SecureZero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// DeriveKey 使用 Argon2id 从密码派生加密密钥
func DeriveKey(password, salt []byte, p KDFParams) []byte {
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

// ============================================================================
//                              内存密钥存储
// ============================================================================

// MemKeystore 内存密钥存储
//
// 保存密钥记录而非 Keypair 实例，调用方 Zeroize 取出的密钥不影响存储。
type MemKeystore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemKeystore 创建内存密钥存储
func NewMemKeystore() *MemKeystore {
	return &MemKeystore{
		records: make(map[string][]byte),
	}
}

// Has 检查是否存在指定 ID 的密钥
func (ks *MemKeystore) Has(id string) (bool, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	_, ok := ks.records[id]
	return ok, nil
}

// Put 存储密钥
func (ks *MemKeystore) Put(id string, kp *Keypair) error {
	if err := validateKeyID(id); err != nil {
		return err
	}
	rec, err := kp.Marshal()
	if err != nil {
		return err
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	if _, ok := ks.records[id]; ok {
		SecureZero(rec)
		return ErrKeyExists
	}
	ks.records[id] = rec
	return nil
}

// Get 获取密钥
func (ks *MemKeystore) Get(id string) (*Keypair, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	rec, ok := ks.records[id]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return UnmarshalKeypair(rec)
}

// Delete 删除密钥
func (ks *MemKeystore) Delete(id string) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	rec, ok := ks.records[id]
	if !ok {
		return ErrKeyNotFound
	}
	SecureZero(rec)
	delete(ks.records, id)
	return nil
}

// List 列出所有密钥 ID
func (ks *MemKeystore) List() ([]string, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	ids := make([]string, 0, len(ks.records))
	for id := range ks.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
