package identity

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/dep2p/go-dep2p-identity/pkg/lib/crypto"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/peer"
)

// ============================================================================
//                              Identity 实现
// ============================================================================

// Identity 本地节点身份
//
// 持有密钥对及其派生的公钥和 PeerID。签名路径无锁；
// Close 之后私钥被清零，Sign 返回 ErrIdentityClosed。
type Identity struct {
	keypair   *crypto.Keypair
	publicKey crypto.PublicKey
	peerID    peer.ID

	// instanceID 进程内实例标识，用于日志关联
	instanceID string

	metrics *Metrics

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// New 从密钥对创建身份
//
// 身份接管密钥对的所有权，Close 时清零。
func New(kp *crypto.Keypair) (*Identity, error) {
	if kp == nil || kp.Type() < 0 {
		return nil, ErrNilKeypair
	}

	pub := kp.Public()
	id, err := peer.IDFromPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("派生 PeerID 失败: %w", err)
	}

	return &Identity{
		keypair:    kp,
		publicKey:  pub,
		peerID:     id,
		instanceID: uuid.New().String(),
	}, nil
}

// Generate 生成指定类型的新身份
func Generate(kt crypto.KeyType) (*Identity, error) {
	kp, err := crypto.GenerateKeypair(kt)
	if err != nil {
		return nil, err
	}
	return New(kp)
}

// withMetrics 设置指标收集器
func (i *Identity) withMetrics(m *Metrics) *Identity {
	i.metrics = m
	return i
}

// PeerID 返回节点 ID
func (i *Identity) PeerID() peer.ID {
	return i.peerID
}

// PublicKey 返回公钥
func (i *Identity) PublicKey() crypto.PublicKey {
	return i.publicKey
}

// KeyType 返回密钥类型
func (i *Identity) KeyType() crypto.KeyType {
	return i.publicKey.Type()
}

// InstanceID 返回进程内实例标识
func (i *Identity) InstanceID() string {
	return i.instanceID
}

// Keypair 返回底层密钥对
//
// 返回的密钥对归身份所有，调用方不得清零。
func (i *Identity) Keypair() *crypto.Keypair {
	return i.keypair
}

// Sign 签名数据
func (i *Identity) Sign(data []byte) ([]byte, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, ErrIdentityClosed
	}

	sig, err := i.keypair.Sign(data)
	i.metrics.observeSign(i.KeyType(), err)
	return sig, err
}

// Verify 使用给定公钥验证签名
func (i *Identity) Verify(pub crypto.PublicKey, data, sig []byte) error {
	ok := pub.Verify(data, sig)
	i.metrics.observeVerify(pub.Type(), ok)
	if !ok {
		return ErrInvalidSignature
	}
	return nil
}

// VerifySelf 使用本节点公钥验证签名
func (i *Identity) VerifySelf(data, sig []byte) error {
	return i.Verify(i.publicKey, data, sig)
}

// Seal 用本节点密钥签发信封
func (i *Identity) Seal(domain string, payloadType, payload []byte) (*crypto.SignedEnvelope, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, ErrIdentityClosed
	}

	env, err := crypto.Seal(i.keypair, domain, payloadType, payload)
	i.metrics.observeSign(i.KeyType(), err)
	return env, err
}

// Close 清零私钥，可重复调用
func (i *Identity) Close() error {
	i.closeOnce.Do(func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		i.closed = true
		i.keypair.Zeroize()
		logger.Debug("身份已关闭", "peer", i.peerID.ShortString(), "instance", i.instanceID)
	})
	return nil
}

// String 返回身份的可读形式（不含私钥）
func (i *Identity) String() string {
	return fmt.Sprintf("Identity(%s, %s)", i.publicKey.Type(), i.peerID)
}

// LogValue 实现 slog.LogValuer
func (i *Identity) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("peer", i.peerID.String()),
		slog.String("keyType", i.publicKey.Type().String()),
	)
}
