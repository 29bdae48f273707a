package crypto

import (
	"fmt"
	"strings"
)

// ============================================================================
//                              密钥类型定义
// ============================================================================

// KeyType 密钥类型
//
// 值即线格式中的判别字段，与 libp2p keys.proto 的 KeyType 枚举对齐，
// 不允许重新排序：
//   - RSA = 0
//   - Ed25519 = 1
//   - Secp256k1 = 2
//   - ECDSA = 3
type KeyType int32

const (
	// KeyTypeRSA RSA 密钥
	KeyTypeRSA KeyType = 0
	// KeyTypeEd25519 Ed25519 密钥（默认推荐）
	KeyTypeEd25519 KeyType = 1
	// KeyTypeSecp256k1 Secp256k1 密钥（区块链兼容）
	KeyTypeSecp256k1 KeyType = 2
	// KeyTypeECDSA ECDSA 密钥（P-256）
	KeyTypeECDSA KeyType = 3
)

// KeyTypes 支持的密钥类型列表（按线格式值排序）
var KeyTypes = []KeyType{
	KeyTypeRSA,
	KeyTypeEd25519,
	KeyTypeSecp256k1,
	KeyTypeECDSA,
}

// String 返回密钥类型名称
func (kt KeyType) String() string {
	switch kt {
	case KeyTypeRSA:
		return "RSA"
	case KeyTypeEd25519:
		return "Ed25519"
	case KeyTypeSecp256k1:
		return "Secp256k1"
	case KeyTypeECDSA:
		return "ECDSA"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(kt))
	}
}

// Valid 报告密钥类型是否为已知的枚举值
func (kt KeyType) Valid() bool {
	switch kt {
	case KeyTypeRSA, KeyTypeEd25519, KeyTypeSecp256k1, KeyTypeECDSA:
		return true
	default:
		return false
	}
}

// feature 返回构建标签使用的特性名
func (kt KeyType) feature() string {
	return strings.ToLower(kt.String())
}

// ParseKeyType 解析密钥类型名称（大小写不敏感）
//
// 用于配置文件和命令行参数。
func ParseKeyType(s string) (KeyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rsa":
		return KeyTypeRSA, nil
	case "ed25519":
		return KeyTypeEd25519, nil
	case "secp256k1":
		return KeyTypeSecp256k1, nil
	case "ecdsa", "p256", "p-256":
		return KeyTypeECDSA, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedKeyType, s)
	}
}
