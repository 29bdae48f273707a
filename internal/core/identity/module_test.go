package identity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-dep2p-identity/config"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/crypto"
)

// ============================================================================
// Fx 模块测试
// ============================================================================

// TestModule_Load 测试 Fx 模块加载
func TestModule_Load(t *testing.T) {
	requireKeyTypes(t, crypto.KeyTypeEd25519)
	var id *Identity

	app := fxtest.New(t,
		Module(),
		fx.Populate(&id),
	)
	app.RequireStart()

	require.NotNil(t, id)
	assert.NoError(t, id.PeerID().Validate())
	assert.Equal(t, crypto.KeyTypeEd25519, id.KeyType())

	app.RequireStop()

	// 停止后私钥已清零
	_, err := id.Sign([]byte("x"))
	assert.ErrorIs(t, err, ErrIdentityClosed)
}

// TestModule_Config 测试使用配置加载持久化身份
func TestModule_Config(t *testing.T) {
	requireKeyTypes(t, crypto.KeyTypeECDSA)
	cfg := config.DefaultIdentityConfig().
		WithKeyType("ECDSA").
		WithKeyFile(filepath.Join(t.TempDir(), "identity.pem"))

	start := func() string {
		var id *Identity
		app := fxtest.New(t,
			fx.Supply(&cfg),
			fx.Provide(func() prometheus.Registerer { return prometheus.NewRegistry() }),
			Module(),
			fx.Populate(&id),
		)
		app.RequireStart()
		defer app.RequireStop()
		return id.PeerID().String()
	}

	first := start()
	assert.Equal(t, first, start())
}

// TestModule_InjectedKeypair 测试注入的密钥对优先
func TestModule_InjectedKeypair(t *testing.T) {
	kp := testKeypair(t, crypto.KeyTypeSecp256k1)
	want := kp.Public()

	var id *Identity
	app := fxtest.New(t,
		fx.Provide(fx.Annotate(func() *crypto.Keypair { return kp }, fx.ResultTags(`name:"identity_keypair"`))),
		Module(),
		fx.Populate(&id),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.True(t, id.PublicKey().Equal(want))
}

// TestModule_InvalidConfig 测试无效配置导致启动失败
func TestModule_InvalidConfig(t *testing.T) {
	cfg := config.DefaultIdentityConfig().WithKeyType("dsa")

	app := fx.New(
		fx.NopLogger,
		fx.Supply(&cfg),
		Module(),
		fx.Invoke(func(*Identity) {}),
	)
	assert.Error(t, app.Err())
	_ = app.Stop(context.Background())
}

// TestProvideServices 测试直接调用服务提供函数
func TestProvideServices(t *testing.T) {
	requireKeyTypes(t, crypto.KeyTypeEd25519)
	out, err := ProvideServices(ModuleInput{})
	require.NoError(t, err)
	require.NotNil(t, out.Identity)
	require.NotNil(t, out.Manager)
	require.NotNil(t, out.Metrics)
	defer out.Identity.Close()

	assert.Equal(t, Name, "identity")
}
