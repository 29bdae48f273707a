// Package config 提供身份模块的配置
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dep2p/go-dep2p-identity/pkg/lib/crypto"
)

// ============================================================================
//                              配置定义
// ============================================================================

// IdentityConfig 身份配置
//
// 管理节点的身份标识和密钥：
//   - 密钥类型（Ed25519/RSA/ECDSA/Secp256k1）
//   - 密钥存储位置（PEM 文件或密钥库目录）
//   - 密钥生成参数
type IdentityConfig struct {
	// KeyType 密钥类型
	// 可选值: "Ed25519", "RSA", "ECDSA", "Secp256k1"
	// 推荐使用 Ed25519（默认）
	KeyType string `json:"key_type"`

	// KeyFile PEM 密钥文件路径
	// 优先于 KeystoreDir；RSA 密钥只能以此方式持久化
	KeyFile string `json:"key_file,omitempty"`

	// KeystoreDir 密钥库目录
	// KeyFile 与 KeystoreDir 都为空时，在内存中生成临时密钥
	KeystoreDir string `json:"keystore_dir,omitempty"`

	// KeyName 密钥库中的密钥名称
	KeyName string `json:"key_name,omitempty"`

	// PasswordEnv 密钥库口令所在的环境变量名
	// 为空或变量未设置时，密钥以明文保存
	PasswordEnv string `json:"password_env,omitempty"`

	// RSABits RSA 密钥位数
	// 仅当 KeyType="RSA" 时有效
	RSABits int `json:"rsa_bits,omitempty"`

	// AutoGenerate 当密钥不存在时是否自动生成
	AutoGenerate bool `json:"auto_generate"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{
		KeyType:      "Ed25519",
		KeyName:      "self",
		RSABits:      crypto.RSADefaultKeySize,
		AutoGenerate: true,
	}
}

// LoadIdentityConfig 从 JSON 文件加载身份配置
//
// 文件中未出现的字段保留默认值。
func LoadIdentityConfig(path string) (IdentityConfig, error) {
	cfg := DefaultIdentityConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ============================================================================
//                              验证
// ============================================================================

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	kt, err := c.ParsedKeyType()
	if err != nil {
		return err
	}

	if kt == crypto.KeyTypeRSA {
		if c.RSABits < crypto.RSAMinKeySize {
			return fmt.Errorf("RSA key bits must be at least %d", crypto.RSAMinKeySize)
		}
		if c.RSABits > crypto.RSAMaxKeySize {
			return fmt.Errorf("RSA key bits must not exceed %d", crypto.RSAMaxKeySize)
		}
		if c.KeyFile == "" && c.KeystoreDir != "" {
			return errors.New("RSA keys cannot be kept in a keystore, set key_file instead")
		}
	}

	if c.KeyFile == "" && c.KeystoreDir != "" {
		if c.KeyName == "" || strings.ContainsAny(c.KeyName, `/\`) || c.KeyName == "." || c.KeyName == ".." {
			return fmt.Errorf("invalid key name %q", c.KeyName)
		}
	}

	return nil
}

// ParsedKeyType 返回解析后的密钥类型
func (c IdentityConfig) ParsedKeyType() (crypto.KeyType, error) {
	return crypto.ParseKeyType(c.KeyType)
}

// Password 从 PasswordEnv 指定的环境变量读取口令
func (c IdentityConfig) Password() []byte {
	if c.PasswordEnv == "" {
		return nil
	}
	pw, ok := os.LookupEnv(c.PasswordEnv)
	if !ok || pw == "" {
		return nil
	}
	return []byte(pw)
}

// ============================================================================
//                              构建器
// ============================================================================

// WithKeyType 设置密钥类型
func (c IdentityConfig) WithKeyType(keyType string) IdentityConfig {
	c.KeyType = keyType
	return c
}

// WithKeyFile 设置 PEM 密钥文件路径
func (c IdentityConfig) WithKeyFile(path string) IdentityConfig {
	c.KeyFile = path
	return c
}

// WithKeystore 设置密钥库目录和密钥名称
func (c IdentityConfig) WithKeystore(dir, name string) IdentityConfig {
	c.KeystoreDir = dir
	c.KeyName = name
	return c
}

// WithPasswordEnv 设置口令环境变量名
func (c IdentityConfig) WithPasswordEnv(name string) IdentityConfig {
	c.PasswordEnv = name
	return c
}

// WithRSABits 设置 RSA 密钥位数
func (c IdentityConfig) WithRSABits(bits int) IdentityConfig {
	c.RSABits = bits
	return c
}

// WithAutoGenerate 设置是否自动生成密钥
func (c IdentityConfig) WithAutoGenerate(auto bool) IdentityConfig {
	c.AutoGenerate = auto
	return c
}
