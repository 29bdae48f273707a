// Package identity 实现 DeP2P 的节点身份管理
//
// 本包在 pkg/lib/crypto 之上提供节点级身份：密钥对的加载与生成、
// PeerID 派生、签名验证以及 fx 生命周期集成。
//
// # 核心功能
//
// 1. 身份来源（按优先级）：
//   - fx 注入的密钥对（name:"identity_keypair"）
//   - PEM 文件（IdentityConfig.KeyFile，支持全部密钥类型）
//   - 密钥库目录（IdentityConfig.KeystoreDir，可选 Argon2id 口令加密）
//   - 内存中的临时身份
//
// 2. 签名与验证：
//   - Identity.Sign / Identity.Verify
//   - Identity.Seal 签发带域分离的信封
//
// 3. 指标：签名、验证、密钥加载计数（Prometheus）
//
// # 快速开始
//
//	id, _ := identity.Generate(crypto.KeyTypeEd25519)
//	defer id.Close()
//
//	sig, _ := id.Sign([]byte("data"))
//	err := id.VerifySelf([]byte("data"), sig)
//
// # Fx 模块
//
//	cfg := config.DefaultIdentityConfig().WithKeystore(dir, "self")
//	app := fx.New(
//	    fx.Supply(&cfg),
//	    identity.Module(),
//	    fx.Invoke(func(id *identity.Identity) {
//	        fmt.Printf("PeerID: %s\n", id.PeerID())
//	    }),
//	)
//
// 应用停止时私钥被清零。
package identity
