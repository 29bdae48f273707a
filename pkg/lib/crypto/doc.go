// Package crypto 提供 DeP2P 节点身份密钥
//
// 本包定义节点用于证明和验证身份的密钥抽象：一个封闭的多算法
// 私钥类型 Keypair、对应的公钥类型 PublicKey，以及用于持久化和
// 网络传输的稳定二进制编码。
//
// # 支持的密钥类型
//
//   - Ed25519（默认推荐）：高性能椭圆曲线签名
//   - Secp256k1（区块链兼容）：比特币/以太坊使用的曲线
//   - ECDSA（P-256）：NIST 标准曲线
//   - RSA（传统兼容）：仅支持公钥编码，私钥不进入线格式
//
// # 快速开始
//
// 生成密钥对：
//
//	kp, err := crypto.GenerateKeypair(crypto.KeyTypeEd25519)
//
// 签名和验证：
//
//	sig, err := kp.Sign(data)
//	ok := kp.Public().Verify(data, sig)
//
// 序列化：
//
//	pubBytes := kp.Public().Marshal()
//	pub, err := crypto.UnmarshalPublicKey(pubBytes)
//
//	privBytes, err := kp.Marshal()
//	kp2, err := crypto.UnmarshalKeypair(privBytes)
//
// 具体算法类型：
//
//	edKey, err := kp.TryIntoEd25519()
//	var ove *crypto.OtherVariantError
//	if errors.As(err, &ove) {
//	    // ove.Actual 为实际持有的密钥类型
//	}
//
// # 线格式
//
// 密钥记录与 libp2p 的 PublicKey/PrivateKey protobuf 消息逐字节兼容：
//
//	message PublicKey  { required KeyType Type = 1; required bytes Data = 2; }
//	message PrivateKey { required KeyType Type = 1; required bytes Data = 2; }
//	enum KeyType { RSA = 0; Ed25519 = 1; Secp256k1 = 2; ECDSA = 3; }
//
// # 构建裁剪
//
// 每个算法后端可以通过构建标签关闭：
//
//	go build -tags dep2p_no_rsa,dep2p_no_ecdsa ./...
//
// 关闭后相应的生成、导入和解码路径仍然可达，但返回 ErrMissingFeature。
//
// # 安全特性
//
//   - 常量时间比较防止时序攻击
//   - 解码过程中的私钥临时缓冲区在所有返回路径上清零
//   - Keypair.Zeroize 覆写私钥材料（RSA 为尽力清除，见 RSAPrivateKey）
//   - 私钥类型的 String/GoString/LogValue 不输出密钥材料
//   - AES-GCM + Argon2id 加密存储
package crypto
