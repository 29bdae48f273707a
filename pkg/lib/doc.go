// Package lib 包含基础设施工具库
//
// 本目录包含与架构组件无关的通用工具库：
//
//   - crypto: 多算法密钥、线格式编解码、签名信封、密钥库
//   - peer: 由公钥派生的 PeerID
//   - log: 日志封装
//
// # 使用示例
//
//	import (
//	    "github.com/dep2p/go-dep2p-identity/pkg/lib/crypto"
//	    "github.com/dep2p/go-dep2p-identity/pkg/lib/log"
//	    "github.com/dep2p/go-dep2p-identity/pkg/lib/peer"
//	)
package lib
