package identity

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-dep2p-identity/config"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/crypto"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/log"
)

var logger = log.Logger("identity")

// ============================================================================
//                              Manager 实现
// ============================================================================

// Manager 身份管理器
//
// 根据配置决定身份的来源：
//   - KeyFile 非空：PEM 文件（支持全部密钥类型）
//   - KeystoreDir 非空：密钥库（可选口令加密）
//   - 都为空：内存中生成临时身份
type Manager struct {
	config  config.IdentityConfig
	store   crypto.Keystore
	metrics *Metrics
}

// NewManager 创建身份管理器
//
// 配置了 KeystoreDir 时打开文件密钥库。
func NewManager(cfg config.IdentityConfig, metrics *Metrics) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("身份配置无效: %w", err)
	}

	m := &Manager{config: cfg, metrics: metrics}
	if cfg.KeyFile == "" && cfg.KeystoreDir != "" {
		ks, err := crypto.NewFSKeystore(cfg.KeystoreDir, cfg.Password())
		if err != nil {
			return nil, fmt.Errorf("打开密钥库失败: %w", err)
		}
		m.store = ks
	}
	return m, nil
}

// NewManagerWithKeystore 使用给定密钥库创建身份管理器
func NewManagerWithKeystore(cfg config.IdentityConfig, store crypto.Keystore, metrics *Metrics) (*Manager, error) {
	cfg.KeyFile = ""
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("身份配置无效: %w", err)
	}
	return &Manager{config: cfg, store: store, metrics: metrics}, nil
}

// Keystore 返回管理器使用的密钥库，可能为 nil
func (m *Manager) Keystore() crypto.Keystore {
	return m.store
}

// Create 按配置的密钥类型创建新身份
func (m *Manager) Create() (*Identity, error) {
	kt, err := m.config.ParsedKeyType()
	if err != nil {
		return nil, err
	}
	return m.CreateWithType(kt)
}

// CreateWithType 创建指定类型的身份
func (m *Manager) CreateWithType(kt crypto.KeyType) (*Identity, error) {
	var (
		kp  *crypto.Keypair
		err error
	)
	if kt == crypto.KeyTypeRSA {
		kp, err = crypto.GenerateRSA(m.config.RSABits)
	} else {
		kp, err = crypto.GenerateKeypair(kt)
	}
	if err != nil {
		return nil, fmt.Errorf("生成密钥对失败: %w", err)
	}

	m.metrics.observeGenerate(kt)
	return m.FromKeypair(kp)
}

// FromKeypair 从密钥对创建身份
func (m *Manager) FromKeypair(kp *crypto.Keypair) (*Identity, error) {
	id, err := New(kp)
	if err != nil {
		return nil, err
	}
	return id.withMetrics(m.metrics), nil
}

// Load 从配置的位置加载身份
//
// 未找到时返回 ErrKeyNotFound 或 crypto.ErrKeyNotFound。
func (m *Manager) Load() (*Identity, error) {
	switch {
	case m.config.KeyFile != "":
		return m.LoadFile(m.config.KeyFile)
	case m.store != nil:
		kp, err := m.store.Get(m.config.KeyName)
		m.metrics.observeLoad(sourceKeystore, err)
		if err != nil {
			return nil, err
		}
		return m.FromKeypair(kp)
	default:
		return nil, ErrKeyNotFound
	}
}

// LoadFile 从 PEM 文件加载身份
func (m *Manager) LoadFile(path string) (*Identity, error) {
	kp, err := LoadPrivateKeyPEM(path)
	m.metrics.observeLoad(sourceFile, err)
	if err != nil {
		return nil, err
	}
	return m.FromKeypair(kp)
}

// Save 保存身份到配置的位置
func (m *Manager) Save(id *Identity) error {
	switch {
	case m.config.KeyFile != "":
		return SavePrivateKeyPEM(id.Keypair(), m.config.KeyFile)
	case m.store != nil:
		return m.store.Put(m.config.KeyName, id.Keypair())
	default:
		return nil
	}
}

// LoadOrCreate 加载身份，不存在且允许自动生成时创建并保存
func (m *Manager) LoadOrCreate() (*Identity, error) {
	if m.config.KeyFile == "" && m.store == nil {
		if !m.config.AutoGenerate {
			return nil, ErrNoIdentity
		}
		m.metrics.observeLoad(sourceMemory, nil)
		logger.Debug("未配置密钥存储，使用临时身份")
		return m.Create()
	}

	id, err := m.Load()
	if err == nil {
		logger.Info("已加载节点身份", "peer", id.PeerID().ShortString(), "keyType", id.KeyType())
		return id, nil
	}
	if !isNotFound(err) {
		return nil, fmt.Errorf("加载身份失败: %w", err)
	}
	if !m.config.AutoGenerate {
		return nil, fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}

	id, err = m.Create()
	if err != nil {
		return nil, fmt.Errorf("创建身份失败: %w", err)
	}
	if err := m.Save(id); err != nil {
		_ = id.Close()
		return nil, fmt.Errorf("保存身份失败: %w", err)
	}
	logger.Info("已创建节点身份", "peer", id.PeerID().ShortString(), "keyType", id.KeyType())
	return id, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound) || errors.Is(err, crypto.ErrKeyNotFound)
}
