// Package peer 定义节点标识 ID
//
// ID 是公钥密钥记录的 multihash：
//   - 记录不超过 42 字节时使用 identity multihash，ID 内嵌完整公钥
//   - 否则使用 sha2-256 multihash
//
// 外部表示为 Base58btc 字符串，与 libp2p PeerID 兼容。
package peer

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	sha256 "github.com/minio/sha256-simd"
	"github.com/multiformats/go-varint"

	"github.com/dep2p/go-dep2p-identity/pkg/lib/crypto"
)

// multihash 编码
const (
	codeIdentity = 0x00
	codeSHA256   = 0x12

	// MaxInlineKeyLength 可内嵌到 ID 中的最大密钥记录长度
	MaxInlineKeyLength = 42
)

// 错误定义
var (
	// ErrEmptyPeerID ID 为空
	ErrEmptyPeerID = errors.New("empty peer ID")

	// ErrInvalidPeerID ID 不是合法的 multihash
	ErrInvalidPeerID = errors.New("invalid peer ID")

	// ErrNoPublicKey ID 未内嵌公钥（sha2-256 形式）
	ErrNoPublicKey = errors.New("public key is not embedded in peer ID")
)

// ============================================================================
//                              ID
// ============================================================================

// ID 节点标识
//
// 内部为 multihash 二进制串，可直接作为 map 键。
type ID string

// IDFromPublicKey 从公钥派生 ID
func IDFromPublicKey(pub crypto.PublicKey) (ID, error) {
	if pub.IsZero() {
		return "", crypto.ErrNilKey
	}

	data := pub.Marshal()
	if len(data) <= MaxInlineKeyLength {
		return ID(encodeMultihash(codeIdentity, data)), nil
	}
	digest := sha256.Sum256(data)
	return ID(encodeMultihash(codeSHA256, digest[:])), nil
}

// IDFromKeypair 从密钥对派生 ID
func IDFromKeypair(kp *crypto.Keypair) (ID, error) {
	return IDFromPublicKey(kp.Public())
}

// IDFromBytes 从 multihash 二进制串构造 ID 并校验格式
func IDFromBytes(b []byte) (ID, error) {
	if _, _, err := decodeMultihash(b); err != nil {
		return "", err
	}
	return ID(b), nil
}

// Decode 解析 Base58 字符串形式的 ID
func Decode(s string) (ID, error) {
	if s == "" {
		return "", ErrEmptyPeerID
	}
	b, err := base58.Decode(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	return IDFromBytes(b)
}

// String 返回 Base58 字符串
func (id ID) String() string {
	if id == "" {
		return ""
	}
	return base58.Encode([]byte(id))
}

// ShortString 返回用于日志的短形式
//
// libp2p 格式的 ID 前缀相同（例如 12D3KooW），因此取末尾 6 个字符。
func (id ID) ShortString() string {
	s := id.String()
	if len(s) <= 10 {
		return s
	}
	return "<peer " + s[:2] + "*" + s[len(s)-6:] + ">"
}

// Bytes 返回 multihash 二进制串
func (id ID) Bytes() []byte {
	return []byte(id)
}

// Validate 检查 ID 是否为合法的 multihash
func (id ID) Validate() error {
	if id == "" {
		return ErrEmptyPeerID
	}
	_, _, err := decodeMultihash([]byte(id))
	return err
}

// ExtractPublicKey 从内嵌 ID 中取出公钥
//
// sha2-256 形式的 ID 返回 ErrNoPublicKey。
func (id ID) ExtractPublicKey() (crypto.PublicKey, error) {
	code, digest, err := decodeMultihash([]byte(id))
	if err != nil {
		return crypto.PublicKey{}, err
	}
	if code != codeIdentity {
		return crypto.PublicKey{}, ErrNoPublicKey
	}
	return crypto.UnmarshalPublicKey(digest)
}

// MatchesPublicKey 检查公钥是否派生出该 ID
func (id ID) MatchesPublicKey(pub crypto.PublicKey) bool {
	other, err := IDFromPublicKey(pub)
	if err != nil {
		return false
	}
	return other == id
}

// MarshalText 实现 encoding.TextMarshaler
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (id *ID) UnmarshalText(b []byte) error {
	v, err := Decode(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// ============================================================================
//                              multihash
// ============================================================================

func encodeMultihash(code uint64, digest []byte) []byte {
	buf := make([]byte, 0, varint.UvarintSize(code)+varint.UvarintSize(uint64(len(digest)))+len(digest))
	buf = append(buf, varint.ToUvarint(code)...)
	buf = append(buf, varint.ToUvarint(uint64(len(digest)))...)
	return append(buf, digest...)
}

// decodeMultihash 解析 multihash，仅接受 identity 和 sha2-256
func decodeMultihash(b []byte) (uint64, []byte, error) {
	code, n, err := varint.FromUvarint(b)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	b = b[n:]

	length, n, err := varint.FromUvarint(b)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidPeerID, err)
	}
	b = b[n:]

	if uint64(len(b)) != length {
		return 0, nil, fmt.Errorf("%w: digest length %d, header says %d", ErrInvalidPeerID, len(b), length)
	}

	switch code {
	case codeIdentity:
		if length > MaxInlineKeyLength {
			return 0, nil, fmt.Errorf("%w: inline key too long (%d bytes)", ErrInvalidPeerID, length)
		}
	case codeSHA256:
		if length != sha256.Size {
			return 0, nil, fmt.Errorf("%w: sha2-256 digest must be %d bytes", ErrInvalidPeerID, sha256.Size)
		}
	default:
		return 0, nil, fmt.Errorf("%w: unsupported multihash code 0x%x", ErrInvalidPeerID, code)
	}
	return code, b, nil
}
