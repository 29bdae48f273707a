// Package main 提供 dep2p-key 命令行工具
//
// 用法：
//
//	dep2p-key gen -type ed25519 -out identity.pem
//	dep2p-key gen -type secp256k1 -keystore ./keys -name self -password-env KEY_PASSWORD
//	dep2p-key inspect -in identity.pem
//	dep2p-key peerid <base64 公钥记录 | PeerID>
package main

import (
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	dep2p "github.com/dep2p/go-dep2p-identity"
	"github.com/dep2p/go-dep2p-identity/config"
	"github.com/dep2p/go-dep2p-identity/internal/core/identity"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/crypto"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/log"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/peer"
)

var logger = log.Logger("dep2p/cmd")

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		}
		os.Exit(1)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// 命令分发
// ═══════════════════════════════════════════════════════════════════════════

func run(args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("dep2p-key", flag.ContinueOnError)
	global.SetOutput(stderr)
	logLevel := global.String("log-level", "warn", "日志级别 (debug/info/warn/error)")
	showVersion := global.Bool("version", false, "显示版本信息")
	global.Usage = func() { printHelp(stderr) }

	if err := global.Parse(args); err != nil {
		return errUsage
	}

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	log.SetOutputWithLevel(stderr, level)

	if *showVersion {
		fmt.Fprintln(stdout, dep2p.VersionInfo())
		return nil
	}

	rest := global.Args()
	if len(rest) == 0 {
		printHelp(stderr)
		return errUsage
	}

	switch rest[0] {
	case "gen":
		return runGen(rest[1:], stdout, stderr)
	case "inspect":
		return runInspect(rest[1:], stdout, stderr)
	case "peerid":
		return runPeerID(rest[1:], stdout, stderr)
	case "help":
		printHelp(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "未知命令: %s\n", rest[0])
		printHelp(stderr)
		return errUsage
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `dep2p-key: 节点身份密钥工具

用法:
  dep2p-key [-log-level level] <命令> [参数]

命令:
  gen       生成身份密钥（PEM 文件或密钥库）
  inspect   显示 PEM 密钥文件或密钥库中密钥的信息
  peerid    从 base64 公钥记录派生 PeerID，或从 PeerID 提取内嵌公钥`)
}

// ═══════════════════════════════════════════════════════════════════════════
// gen
// ═══════════════════════════════════════════════════════════════════════════

func runGen(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("gen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	keyType := fs.String("type", "ed25519", "密钥类型 (ed25519/secp256k1/ecdsa/rsa)")
	out := fs.String("out", "", "输出 PEM 文件路径")
	keystore := fs.String("keystore", "", "密钥库目录（与 -out 互斥）")
	name := fs.String("name", "self", "密钥库中的密钥名称")
	passwordEnv := fs.String("password-env", "", "密钥库口令所在的环境变量")
	rsaBits := fs.Int("rsa-bits", crypto.RSADefaultKeySize, "RSA 密钥位数")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	switch {
	case *out != "" && *keystore != "":
		return errors.New("-out 与 -keystore 不能同时使用")
	case *out == "" && *keystore == "":
		return errors.New("需要 -out 或 -keystore")
	case *out != "":
		if _, err := os.Stat(*out); err == nil {
			return fmt.Errorf("%s 已存在", *out)
		}
	}

	cfg := config.DefaultIdentityConfig().
		WithKeyType(*keyType).
		WithKeyFile(*out).
		WithKeystore(*keystore, *name).
		WithPasswordEnv(*passwordEnv).
		WithRSABits(*rsaBits)

	m, err := identity.NewManager(cfg, nil)
	if err != nil {
		return err
	}
	id, err := m.Create()
	if err != nil {
		return err
	}
	defer id.Close()

	if err := m.Save(id); err != nil {
		return fmt.Errorf("保存密钥失败: %w", err)
	}
	logger.Info("已生成密钥", "peer", id.PeerID().ShortString(), "keyType", id.KeyType())

	printIdentity(stdout, id.PublicKey(), id.PeerID())
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// inspect
// ═══════════════════════════════════════════════════════════════════════════

func runInspect(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "PEM 密钥文件路径")
	keystore := fs.String("keystore", "", "密钥库目录")
	name := fs.String("name", "self", "密钥库中的密钥名称")
	passwordEnv := fs.String("password-env", "", "密钥库口令所在的环境变量")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cfg := config.DefaultIdentityConfig().
		WithKeyFile(*in).
		WithKeystore(*keystore, *name).
		WithPasswordEnv(*passwordEnv).
		WithAutoGenerate(false)
	if *in == "" && *keystore == "" {
		return errors.New("需要 -in 或 -keystore")
	}

	m, err := identity.NewManager(cfg, nil)
	if err != nil {
		return err
	}
	id, err := m.Load()
	if err != nil {
		return err
	}
	defer id.Close()

	printIdentity(stdout, id.PublicKey(), id.PeerID())
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// peerid
// ═══════════════════════════════════════════════════════════════════════════

func runPeerID(args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "用法: dep2p-key peerid <base64 公钥记录 | PeerID>")
		return errUsage
	}
	arg := args[0]

	// 先按 PeerID 解析
	if id, err := peer.Decode(arg); err == nil {
		pub, err := id.ExtractPublicKey()
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		printIdentity(stdout, pub, id)
		return nil
	}

	rec, err := base64.StdEncoding.DecodeString(arg)
	if err != nil {
		return fmt.Errorf("既不是 PeerID 也不是 base64 公钥记录: %w", err)
	}
	pub, err := crypto.UnmarshalPublicKey(rec)
	if err != nil {
		return err
	}
	id, err := peer.IDFromPublicKey(pub)
	if err != nil {
		return err
	}
	printIdentity(stdout, pub, id)
	return nil
}

func printIdentity(w io.Writer, pub crypto.PublicKey, id peer.ID) {
	fmt.Fprintf(w, "type:       %s\n", pub.Type())
	fmt.Fprintf(w, "peer id:    %s\n", id)
	fmt.Fprintf(w, "public key: %s\n", base64.StdEncoding.EncodeToString(pub.Marshal()))
}
