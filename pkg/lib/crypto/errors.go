package crypto

import (
	"errors"
	"fmt"
)

// ============================================================================
//                              错误定义
// ============================================================================

// 密钥相关错误
var (
	// ErrUnsupportedKeyType 未知的密钥类型（线格式中的未定义枚举值）
	ErrUnsupportedKeyType = errors.New("unsupported key type")

	// ErrMissingFeature 密钥类型已知，但构建时未启用对应后端
	ErrMissingFeature = errors.New("key type support not enabled in this build")

	// ErrNilKey 密钥为空
	ErrNilKey = errors.New("nil key")

	// ErrInvalidKey 密钥材料无效（长度、曲线点、取值范围等）
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidKeySize 密钥大小无效
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrOtherVariant 密钥持有的算法与请求的不一致
	ErrOtherVariant = errors.New("key holds a different key type")
)

// 编解码相关错误
var (
	// ErrEncodingUnsupported 该密钥类型不支持编码为此线格式
	ErrEncodingUnsupported = errors.New("encoding unsupported for key type")

	// ErrDecodingUnsupported 该密钥类型不支持从此线格式解码
	ErrDecodingUnsupported = errors.New("decoding unsupported for key type")

	// ErrUnsupportedFormat 密钥类型不支持该导入格式
	ErrUnsupportedFormat = errors.New("unsupported key format")

	// ErrMalformedRecord 密钥记录结构损坏
	ErrMalformedRecord = errors.New("malformed key record")
)

// ============================================================================
//                              类型化错误
// ============================================================================

// DecodingError 解码错误
//
// Stage 描述失败的阶段（例如 "key record"、"Ed25519 private key"），
// Err 是错误种类哨兵或后端诊断。错误信息从不包含密钥字节。
type DecodingError struct {
	// Stage 失败阶段
	Stage string
	// KeyType 相关的密钥类型（阶段与类型无关时为记录中读到的值）
	KeyType KeyType
	// Err 底层错误
	Err error
}

// Error 实现 error 接口
func (e *DecodingError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Stage, e.Err)
}

// Unwrap 返回底层错误
func (e *DecodingError) Unwrap() error {
	return e.Err
}

// EncodingError 编码错误
type EncodingError struct {
	KeyType KeyType
	Err     error
}

// Error 实现 error 接口
func (e *EncodingError) Error() string {
	return fmt.Sprintf("failed to encode %s key: %v", e.KeyType, e.Err)
}

// Unwrap 返回底层错误
func (e *EncodingError) Unwrap() error {
	return e.Err
}

// SigningError 签名错误
//
// 后端拒绝签名时返回（例如 RSA 密钥不满足签名约束）。
type SigningError struct {
	KeyType KeyType
	Err     error
}

// Error 实现 error 接口
func (e *SigningError) Error() string {
	return fmt.Sprintf("failed to sign with %s key: %v", e.KeyType, e.Err)
}

// Unwrap 返回底层错误
func (e *SigningError) Unwrap() error {
	return e.Err
}

// OtherVariantError 向下转换失败
//
// Actual 为密钥实际持有的类型，Expected 为调用方请求的类型。
type OtherVariantError struct {
	Expected KeyType
	Actual   KeyType
}

// Error 实现 error 接口
func (e *OtherVariantError) Error() string {
	return fmt.Sprintf("cannot convert to %s key: key is %s", e.Expected, e.Actual)
}

// Unwrap 返回 ErrOtherVariant
func (e *OtherVariantError) Unwrap() error {
	return ErrOtherVariant
}

// ============================================================================
//                              构造辅助
// ============================================================================

// missingFeature 构造构建裁剪错误，并记录调试日志
func missingFeature(stage string, kt KeyType) error {
	logger.Debug("构建未启用该密钥类型", "keyType", kt, "stage", stage)
	return &DecodingError{
		Stage:   stage,
		KeyType: kt,
		Err:     fmt.Errorf("%w: %s (build tag dep2p_no_%s)", ErrMissingFeature, kt, kt.feature()),
	}
}

// decodeErr 构造解码错误
func decodeErr(stage string, kt KeyType, err error) error {
	return &DecodingError{Stage: stage, KeyType: kt, Err: err}
}
