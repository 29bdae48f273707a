// Package dep2p 提供 DeP2P 节点身份层的组装入口
//
// 身份层围绕三个概念构建：
//
//   - Keypair / PublicKey: pkg/lib/crypto 中的多算法密钥（Ed25519、RSA、Secp256k1、ECDSA）
//   - peer.ID: 由公钥派生的节点标识
//   - Identity: 本地节点身份，负责签名并在停止时清零私钥
//
// # 快速开始
//
//	import "github.com/dep2p/go-dep2p-identity"
//
//	node, err := dep2p.Start(ctx,
//	    dep2p.WithKeyFile("./data/identity.pem"),
//	    dep2p.WithKeyBookDir("./data/keybook"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	fmt.Println(node.ID())
//	sig, _ := node.Identity().Sign([]byte("hello"))
//
// # 子包
//
//   - pkg/lib/crypto: 密钥类型、线格式编解码、信封、密钥库
//   - pkg/lib/peer: PeerID 派生与解析
//   - internal/core/identity: 身份管理 fx 模块
//   - internal/core/keybook: 远端节点公钥簿
package dep2p
