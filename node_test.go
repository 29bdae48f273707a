package dep2p

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dep2p-identity/internal/core/identity"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/crypto"
)

// requireKeyTypes 跳过未编入所需后端的构建
func requireKeyTypes(t *testing.T, kts ...crypto.KeyType) {
	t.Helper()
	for _, kt := range kts {
		if !crypto.Enabled(kt) {
			t.Skipf("%s backend disabled in this build", kt)
		}
	}
}

func TestStart_Ephemeral(t *testing.T) {
	requireKeyTypes(t, crypto.KeyTypeEd25519)
	ctx := context.Background()

	node, err := Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, node.State())
	assert.NoError(t, node.ID().Validate())
	assert.Equal(t, crypto.KeyTypeEd25519, node.PublicKey().Type())

	// 本地密钥已登记到密钥簿
	kp, err := node.KeyBook().Keypair(node.ID())
	require.NoError(t, err)
	assert.True(t, kp.Public().Equal(node.PublicKey()))

	assert.ErrorIs(t, node.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, node.Close())
	assert.Equal(t, StateClosed, node.State())
	assert.NoError(t, node.Close())

	_, err = node.Identity().Sign([]byte("x"))
	assert.ErrorIs(t, err, identity.ErrIdentityClosed)
	assert.ErrorIs(t, node.Start(ctx), ErrNodeClosed)
}

func TestStart_Persistent(t *testing.T) {
	requireKeyTypes(t, crypto.KeyTypeSecp256k1)
	dir := t.TempDir()
	opts := []Option{
		WithKeyType(crypto.KeyTypeSecp256k1),
		WithKeyFile(filepath.Join(dir, "identity.pem")),
		WithKeyBookDir(filepath.Join(dir, "keybook")),
		WithMetricsRegisterer(prometheus.NewRegistry()),
	}

	first, err := Start(context.Background(), opts...)
	require.NoError(t, err)
	id := first.ID()
	require.NoError(t, first.Close())

	second, err := Start(context.Background(), opts...)
	require.NoError(t, err)
	defer second.Close()
	assert.Equal(t, id, second.ID())

	peers, err := second.KeyBook().PeersWithKeys()
	require.NoError(t, err)
	assert.Contains(t, peers, id)
}

func TestStart_WithIdentity(t *testing.T) {
	requireKeyTypes(t, crypto.KeyTypeECDSA)
	kp, err := crypto.GenerateECDSA()
	require.NoError(t, err)
	pub := kp.Public()

	node, err := Start(context.Background(), WithIdentity(kp))
	require.NoError(t, err)
	defer node.Close()

	assert.True(t, node.PublicKey().Equal(pub))
}

func TestNew_NotStarted(t *testing.T) {
	requireKeyTypes(t, crypto.KeyTypeEd25519)
	node, err := New(WithKeyBookDir(t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, StateIdle, node.State())
	assert.ErrorIs(t, node.Stop(context.Background()), ErrNotStarted)

	require.NoError(t, node.Close())
	assert.Equal(t, StateClosed, node.State())
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(WithKeyType(crypto.KeyType(42)))
	assert.ErrorIs(t, err, crypto.ErrUnsupportedKeyType)

	_, err = New(WithIdentity(nil))
	assert.Error(t, err)

	_, err = New(WithKeyBookCapacity(0))
	assert.Error(t, err)

	// RSA 不能放入密钥库
	_, err = New(WithKeyType(crypto.KeyTypeRSA), WithKeystore(t.TempDir(), "self"))
	assert.Error(t, err)
}

func TestVersionInfo(t *testing.T) {
	assert.Contains(t, VersionInfo(), Version)
}
