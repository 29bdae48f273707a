package dep2p

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-dep2p-identity/internal/core/identity"
	"github.com/dep2p/go-dep2p-identity/internal/core/keybook"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/crypto"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/log"
)

var fxLogger = log.Logger("dep2p/fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. Identity：加载或生成本地身份
//  2. KeyBook：远端公钥簿，并登记本地密钥对
func buildFxApp(o *options, node *Node) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := o.identity.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	identityCfg := o.identity
	keyBookCfg := keybook.NewConfig().WithDataDir(o.keyBookDir)
	if o.keyBookCapacity > 0 {
		keyBookCfg.Capacity = o.keyBookCapacity
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 配置注入
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(&identityCfg),
		fx.Supply(&keyBookCfg),
	}
	if o.keypair != nil {
		kp := o.keypair
		modules = append(modules, fx.Provide(fx.Annotate(
			func() *crypto.Keypair { return kp },
			fx.ResultTags(`name:"identity_keypair"`),
		)))
	}
	if o.registerer != nil {
		reg := o.registerer
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return reg }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 核心模块
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		identity.Module(),
		keybook.Module(),
		fx.Invoke(registerSelf),
		fx.Populate(&node.identity, &node.keyBook),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 4. Fx 配置
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	return fx.New(modules...), nil
}

// registerSelf 将本地密钥对登记到密钥簿
func registerSelf(id *identity.Identity, kb *keybook.KeyBook) error {
	if err := kb.AddKeypair(id.PeerID(), id.Keypair()); err != nil {
		return fmt.Errorf("登记本地密钥失败: %w", err)
	}
	fxLogger.Debug("本地密钥已登记", "peer", id.PeerID().ShortString())
	return nil
}
