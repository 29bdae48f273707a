package dep2p

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-dep2p-identity/config"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/crypto"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// 身份配置
	identity config.IdentityConfig
	keypair  *crypto.Keypair

	// 密钥簿
	keyBookDir      string
	keyBookCapacity int

	// 指标注册器
	registerer prometheus.Registerer
}

func defaultOptions() *options {
	return &options{
		identity: config.DefaultIdentityConfig(),
	}
}

// WithIdentityConfig 使用完整的身份配置
func WithIdentityConfig(cfg config.IdentityConfig) Option {
	return func(o *options) error {
		o.identity = cfg
		return nil
	}
}

// WithKeyType 设置自动生成身份的密钥类型
func WithKeyType(kt crypto.KeyType) Option {
	return func(o *options) error {
		if !kt.Valid() {
			return fmt.Errorf("%w: %d", crypto.ErrUnsupportedKeyType, int32(kt))
		}
		o.identity = o.identity.WithKeyType(kt.String())
		return nil
	}
}

// WithKeyFile 设置身份 PEM 文件路径
func WithKeyFile(path string) Option {
	return func(o *options) error {
		o.identity = o.identity.WithKeyFile(path)
		return nil
	}
}

// WithKeystore 设置身份密钥库目录与密钥名称
func WithKeystore(dir, name string) Option {
	return func(o *options) error {
		o.identity = o.identity.WithKeystore(dir, name)
		return nil
	}
}

// WithIdentity 直接使用给定密钥对作为节点身份
//
// 节点接管密钥对，关闭时清零。
func WithIdentity(kp *crypto.Keypair) Option {
	return func(o *options) error {
		if kp == nil {
			return errors.New("identity keypair is nil")
		}
		o.keypair = kp
		return nil
	}
}

// WithKeyBookDir 设置密钥簿持久化目录
func WithKeyBookDir(dir string) Option {
	return func(o *options) error {
		o.keyBookDir = dir
		return nil
	}
}

// WithKeyBookCapacity 设置密钥簿缓存容量
func WithKeyBookCapacity(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("invalid keybook capacity %d", n)
		}
		o.keyBookCapacity = n
		return nil
	}
}

// WithMetricsRegisterer 设置 Prometheus 注册器
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}
