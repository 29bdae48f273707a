package crypto

import (
	"math/big"
	"runtime"

	"github.com/dep2p/go-dep2p-identity/pkg/lib/log"
)

var logger = log.Logger("crypto")

// ============================================================================
//                              构建特性
// ============================================================================

// enabledBackends 本次构建链接的算法后端
//
// 由 backend_*_enabled.go / backend_*_disabled.go 中的构建标签常量决定。
var enabledBackends = map[KeyType]bool{
	KeyTypeRSA:       rsaEnabled,
	KeyTypeEd25519:   ed25519Enabled,
	KeyTypeSecp256k1: secp256k1Enabled,
	KeyTypeECDSA:     ecdsaEnabled,
}

// Enabled 报告指定密钥类型的后端是否在本次构建中启用
func Enabled(kt KeyType) bool {
	return enabledBackends[kt]
}

// EnabledKeyTypes 返回本次构建启用的密钥类型
func EnabledKeyTypes() []KeyType {
	out := make([]KeyType, 0, len(KeyTypes))
	for _, kt := range KeyTypes {
		if Enabled(kt) {
			out = append(out, kt)
		}
	}
	return out
}

// ============================================================================
//                              敏感数据清零
// ============================================================================

// SecureZero 安全清零字节切片
//
// 用于清除内存中的敏感数据。
func SecureZero(b []byte) {
	clear(b)
	runtime.KeepAlive(b)
}

// zeroBig 原地清零大整数的底层字
func zeroBig(n *big.Int) {
	if n == nil {
		return
	}
	words := n.Bits()
	clear(words)
	n.SetInt64(0)
}
