// Package keybook 实现密钥簿
//
// keybook 管理节点的公钥信息，用于身份验证。
//
// # 功能
//
//   - 存储节点公钥（LRU 缓存，可选 BadgerDB 持久化）
//   - 查询节点公钥
//   - 从内嵌公钥的 PeerID 提取公钥
//   - 保存本地节点密钥对（仅内存）
//
// 写入的公钥必须派生出对应的 PeerID。
//
// # 使用示例
//
//	backend, _ := keybook.OpenBadger(dir)
//	book, _ := keybook.New(keybook.WithBackend(backend))
//	_ = book.AddPubKey(id, pub)
//	pub, err := book.PubKey(id)
package keybook
