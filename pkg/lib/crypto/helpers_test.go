package crypto

import (
	"crypto/rand"
	"sync"
	"testing"
)

var (
	rsaOnce sync.Once
	rsaKey  *RSAPrivateKey
	rsaErr  error
)

// testRSAKey 返回共享的 2048 位 RSA 私钥，避免每个用例重复生成
func testRSAKey(t *testing.T) *RSAPrivateKey {
	t.Helper()
	rsaOnce.Do(func() {
		rsaKey, rsaErr = GenerateRSAKey(RSAMinKeySize, rand.Reader)
	})
	if rsaErr != nil {
		t.Fatalf("GenerateRSAKey() error = %v", rsaErr)
	}
	return rsaKey
}

// testKeypair 生成指定类型的密钥对；RSA 复用共享密钥
func testKeypair(t *testing.T, kt KeyType) *Keypair {
	t.Helper()
	if kt == KeyTypeRSA {
		kp, err := NewKeypair(testRSAKey(t))
		if err != nil {
			t.Fatalf("NewKeypair() error = %v", err)
		}
		return kp
	}
	kp, err := GenerateKeypair(kt)
	if err != nil {
		t.Fatalf("GenerateKeypair(%s) error = %v", kt, err)
	}
	return kp
}

// disableBackend 在测试期间关闭指定后端
func disableBackend(t *testing.T, kt KeyType) {
	t.Helper()
	prev := enabledBackends[kt]
	enabledBackends[kt] = false
	t.Cleanup(func() { enabledBackends[kt] = prev })
}

// requireBackends 跳过未启用所需后端的构建
func requireBackends(t *testing.T, kts ...KeyType) {
	t.Helper()
	for _, kt := range kts {
		if !Enabled(kt) {
			t.Skipf("%s backend disabled in this build", kt)
		}
	}
}
