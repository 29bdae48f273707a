// Package identity 提供身份管理模块的实现
//
// 身份模块负责：
// - 密钥对生成和加载
// - 签名和验证
// - 身份持久化
package identity

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-dep2p-identity/config"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/crypto"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// 配置（可选，使用默认配置）
	Config *config.IdentityConfig `optional:"true"`

	// Keypair 直接注入的密钥对（可选，优先于配置）
	Keypair *crypto.Keypair `name:"identity_keypair" optional:"true"`

	// Registerer 指标注册器（可选，不注册指标）
	Registerer prometheus.Registerer `optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Identity *Identity
	Manager  *Manager
	Metrics  *Metrics
}

// ============================================================================
//                              服务提供
// ============================================================================

// ProvideServices 提供模块服务
//
// 优先级：Keypair > 配置中的存储位置 > 自动生成
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	cfg := config.DefaultIdentityConfig()
	if input.Config != nil {
		cfg = *input.Config
	}

	metrics, err := NewMetrics(input.Registerer)
	if err != nil {
		return ModuleOutput{}, fmt.Errorf("注册身份指标失败: %w", err)
	}

	manager, err := NewManager(cfg, metrics)
	if err != nil {
		return ModuleOutput{}, err
	}

	var id *Identity
	if input.Keypair != nil {
		id, err = manager.FromKeypair(input.Keypair)
	} else {
		id, err = manager.LoadOrCreate()
	}
	if err != nil {
		return ModuleOutput{}, err
	}

	return ModuleOutput{
		Identity: id,
		Manager:  manager,
		Metrics:  metrics,
	}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("identity",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC       fx.Lifecycle
	Identity *Identity
}

// registerLifecycle 注册生命周期
//
// 停止时清零私钥。
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Debug("身份模块启动", "peer", input.Identity.PeerID().ShortString())
			return nil
		},
		OnStop: func(_ context.Context) error {
			return input.Identity.Close()
		},
	})
}

// ============================================================================
//                              模块元信息
// ============================================================================

// 模块元信息常量
const (
	// Version 模块版本
	Version = "2.0.0"
	// Name 模块名称
	Name = "identity"
	// Description 模块描述
	Description = "身份管理模块，提供多算法密钥对的生成、加载、签名验证和持久化能力"
)
