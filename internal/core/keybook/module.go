package keybook

import (
	"context"

	"go.uber.org/fx"
)

// Config 密钥簿配置
type Config struct {
	// DataDir BadgerDB 数据目录，为空时只使用内存缓存
	DataDir string

	// Capacity 公钥缓存容量
	Capacity int
}

// NewConfig 创建默认配置
func NewConfig() Config {
	return Config{Capacity: DefaultCapacity}
}

// WithDataDir 设置数据目录
func (c Config) WithDataDir(dir string) Config {
	c.DataDir = dir
	return c
}

// Params 密钥簿依赖参数
type Params struct {
	fx.In

	Config *Config `optional:"true"`
}

// Provide 创建密钥簿
func Provide(p Params) (*KeyBook, error) {
	cfg := NewConfig()
	if p.Config != nil {
		cfg = *p.Config
	}

	if cfg.DataDir == "" {
		return New(WithCapacity(cfg.Capacity))
	}

	backend, err := OpenBadger(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	kb, err := New(WithCapacity(cfg.Capacity), WithBackend(backend))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return kb, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("keybook",
		fx.Provide(Provide),
		fx.Invoke(func(lc fx.Lifecycle, kb *KeyBook) {
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					return kb.Close()
				},
			})
		}),
	)
}
