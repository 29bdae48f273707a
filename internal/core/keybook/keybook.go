// Package keybook 实现密钥簿
package keybook

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/singleflight"

	"github.com/dep2p/go-dep2p-identity/pkg/lib/crypto"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/log"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/peer"
)

var logger = log.Logger("keybook")

// DefaultCapacity 公钥缓存默认容量
const DefaultCapacity = 4096

var (
	// ErrNotFound 未找到密钥
	ErrNotFound = errors.New("key not found")

	// ErrInvalidPublicKey 公钥与 PeerID 不匹配
	ErrInvalidPublicKey = errors.New("invalid public key for peer")
)

// Backend 公钥记录的持久化后端
//
// 值为 crypto.PublicKey.Marshal() 的密钥记录。Get 未找到时返回 ErrNotFound。
type Backend interface {
	Get(id peer.ID) ([]byte, error)
	Put(id peer.ID, record []byte) error
	Delete(id peer.ID) error
	IDs() ([]peer.ID, error)
	Close() error
}

// Option 密钥簿选项
type Option func(*KeyBook)

// WithCapacity 设置公钥缓存容量
func WithCapacity(n int) Option {
	return func(kb *KeyBook) {
		kb.capacity = n
	}
}

// WithBackend 设置持久化后端
func WithBackend(b Backend) Option {
	return func(kb *KeyBook) {
		kb.backend = b
	}
}

// KeyBook 密钥簿
//
// 公钥保存在有界 LRU 缓存中，可选地写入持久化后端；
// 本地密钥对只保存在内存中，从不持久化。
type KeyBook struct {
	capacity int
	backend  Backend

	// pubKeys 公钥缓存
	pubKeys *lru.Cache[peer.ID, crypto.PublicKey]

	// loads 合并同一节点的并发后端读取
	loads singleflight.Group

	mu       sync.RWMutex
	keypairs map[peer.ID]*crypto.Keypair
}

// New 创建密钥簿
func New(opts ...Option) (*KeyBook, error) {
	kb := &KeyBook{
		capacity: DefaultCapacity,
		keypairs: make(map[peer.ID]*crypto.Keypair),
	}
	for _, opt := range opts {
		opt(kb)
	}

	cache, err := lru.New[peer.ID, crypto.PublicKey](kb.capacity)
	if err != nil {
		return nil, fmt.Errorf("create key cache: %w", err)
	}
	kb.pubKeys = cache
	return kb, nil
}

// PubKey 获取公钥
//
// 获取流程：
//  1. 从缓存查找
//  2. 从持久化后端加载
//  3. 从 PeerID 提取内嵌公钥（identity multihash）
func (kb *KeyBook) PubKey(id peer.ID) (crypto.PublicKey, error) {
	if pub, ok := kb.pubKeys.Get(id); ok {
		return pub, nil
	}

	if kb.backend != nil {
		pub, err := kb.loadPubKey(id)
		switch {
		case err == nil:
			return pub, nil
		case !errors.Is(err, ErrNotFound):
			return crypto.PublicKey{}, err
		}
	}

	pub, err := id.ExtractPublicKey()
	if err != nil {
		return crypto.PublicKey{}, ErrNotFound
	}
	kb.pubKeys.Add(id, pub)
	return pub, nil
}

// loadPubKey 从持久化后端加载公钥并写入缓存
func (kb *KeyBook) loadPubKey(id peer.ID) (crypto.PublicKey, error) {
	v, err, _ := kb.loads.Do(string(id), func() (interface{}, error) {
		rec, err := kb.backend.Get(id)
		if err != nil {
			return nil, err
		}
		pub, err := crypto.UnmarshalPublicKey(rec)
		if err != nil {
			return nil, fmt.Errorf("stored key for %s: %w", id.ShortString(), err)
		}
		kb.pubKeys.Add(id, pub)
		return pub, nil
	})
	if err != nil {
		return crypto.PublicKey{}, err
	}
	return v.(crypto.PublicKey), nil
}

// AddPubKey 添加公钥
//
// 公钥必须派生出 id，否则返回 ErrInvalidPublicKey。
func (kb *KeyBook) AddPubKey(id peer.ID, pub crypto.PublicKey) error {
	if pub.IsZero() {
		return crypto.ErrNilKey
	}
	if !id.MatchesPublicKey(pub) {
		logger.Debug("公钥与 PeerID 不匹配", "peer", id.ShortString(), "keyType", pub.Type())
		return ErrInvalidPublicKey
	}

	kb.pubKeys.Add(id, pub)
	if kb.backend != nil {
		return kb.backend.Put(id, pub.Marshal())
	}
	return nil
}

// AddPubKeys 批量添加公钥，返回所有失败项合并后的错误
func (kb *KeyBook) AddPubKeys(keys map[peer.ID]crypto.PublicKey) error {
	var errs error
	for id, pub := range keys {
		if err := kb.AddPubKey(id, pub); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", id.ShortString(), err))
		}
	}
	return errs
}

// Keypair 获取本地密钥对
func (kb *KeyBook) Keypair(id peer.ID) (*crypto.Keypair, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	kp, ok := kb.keypairs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return kp, nil
}

// AddKeypair 添加本地密钥对，同时记录其公钥
func (kb *KeyBook) AddKeypair(id peer.ID, kp *crypto.Keypair) error {
	if err := kb.AddPubKey(id, kp.Public()); err != nil {
		return err
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.keypairs[id] = kp
	return nil
}

// PeersWithKeys 返回拥有密钥的节点列表（已排序）
func (kb *KeyBook) PeersWithKeys() ([]peer.ID, error) {
	set := make(map[peer.ID]struct{})
	for _, id := range kb.pubKeys.Keys() {
		set[id] = struct{}{}
	}

	kb.mu.RLock()
	for id := range kb.keypairs {
		set[id] = struct{}{}
	}
	kb.mu.RUnlock()

	if kb.backend != nil {
		ids, err := kb.backend.IDs()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			set[id] = struct{}{}
		}
	}

	peers := make([]peer.ID, 0, len(set))
	for id := range set {
		peers = append(peers, id)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return peers, nil
}

// RemovePeer 移除节点密钥
//
// 本地密钥对只解除引用，清零由其所有者负责。
func (kb *KeyBook) RemovePeer(id peer.ID) error {
	kb.pubKeys.Remove(id)

	kb.mu.Lock()
	delete(kb.keypairs, id)
	kb.mu.Unlock()

	if kb.backend != nil {
		if err := kb.backend.Delete(id); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// Close 关闭持久化后端
func (kb *KeyBook) Close() error {
	kb.mu.Lock()
	clear(kb.keypairs)
	kb.mu.Unlock()

	kb.pubKeys.Purge()
	if kb.backend != nil {
		return kb.backend.Close()
	}
	return nil
}
