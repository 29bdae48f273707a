// Package identity 实现身份管理
package identity

import "errors"

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrNilKeypair 密钥对为 nil
	ErrNilKeypair = errors.New("keypair is nil")

	// ErrIdentityClosed 身份已关闭，私钥已清零
	ErrIdentityClosed = errors.New("identity closed")

	// ErrNoIdentity 未找到身份且未开启自动生成
	ErrNoIdentity = errors.New("no identity available")

	// ErrInvalidSignature 签名验证失败
	ErrInvalidSignature = errors.New("invalid signature")
)
