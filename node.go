package dep2p

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-dep2p-identity/internal/core/identity"
	"github.com/dep2p/go-dep2p-identity/internal/core/keybook"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/crypto"
	"github.com/dep2p/go-dep2p-identity/pkg/lib/peer"
)

// NodeState 节点状态
type NodeState int

const (
	// StateIdle 已创建，未启动
	StateIdle NodeState = iota
	// StateRunning 运行中
	StateRunning
	// StateClosed 已关闭
	StateClosed
)

// String 返回状态名称
func (s NodeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("NodeState(%d)", int(s))
	}
}

// Node 节点身份层
//
// 持有本地身份和远端公钥簿。Close 后私钥被清零。
type Node struct {
	app *fx.App

	identity *identity.Identity
	keyBook  *keybook.KeyBook

	mu    sync.Mutex
	state NodeState
}

// New 创建节点（不启动）
func New(opts ...Option) (*Node, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	node := &Node{}
	app, err := buildFxApp(o, node)
	if err != nil {
		return nil, err
	}
	if err := app.Err(); err != nil {
		return nil, err
	}
	node.app = app
	return node, nil
}

// Start 创建并启动节点
func Start(ctx context.Context, opts ...Option) (*Node, error) {
	node, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := node.Start(ctx); err != nil {
		return nil, err
	}
	return node, nil
}

// Start 启动节点
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateRunning:
		return ErrAlreadyStarted
	case StateClosed:
		return ErrNodeClosed
	}

	if err := n.app.Start(ctx); err != nil {
		return err
	}
	n.state = StateRunning
	return nil
}

// Stop 停止节点，清零本地私钥
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case StateIdle:
		return ErrNotStarted
	case StateClosed:
		return nil
	}

	n.state = StateClosed
	return n.app.Stop(ctx)
}

// Close 使用默认超时停止节点
func (n *Node) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()

	err := n.Stop(ctx)
	if errors.Is(err, ErrNotStarted) {
		// 未启动时生命周期钩子不会执行，直接释放资源
		n.mu.Lock()
		n.state = StateClosed
		n.mu.Unlock()
		return multierr.Combine(n.identity.Close(), n.keyBook.Close())
	}
	return err
}

// State 返回节点状态
func (n *Node) State() NodeState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// ID 返回节点 ID
func (n *Node) ID() peer.ID {
	return n.identity.PeerID()
}

// PublicKey 返回节点公钥
func (n *Node) PublicKey() crypto.PublicKey {
	return n.identity.PublicKey()
}

// Identity 返回本地身份
func (n *Node) Identity() *identity.Identity {
	return n.identity
}

// KeyBook 返回远端公钥簿
func (n *Node) KeyBook() *keybook.KeyBook {
	return n.keyBook
}
