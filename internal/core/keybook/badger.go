package keybook

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-dep2p-identity/pkg/lib/peer"
)

// pubKeyPrefix 公钥记录的键前缀
const pubKeyPrefix = "p/k/pub/"

// BadgerBackend 基于 BadgerDB 的公钥持久化后端
type BadgerBackend struct {
	db *badger.DB
}

// OpenBadger 打开 BadgerDB 后端
//
// dir 为空时使用内存模式。
func OpenBadger(dir string) (*BadgerBackend, error) {
	opts := badger.DefaultOptions(dir).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open keybook store: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

func pubKeyKey(id peer.ID) []byte {
	return append([]byte(pubKeyPrefix), id...)
}

// Get 读取公钥记录
func (b *BadgerBackend) Get(id peer.ID) ([]byte, error) {
	var rec []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pubKeyKey(id))
		if err != nil {
			return err
		}
		rec, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Put 写入公钥记录
func (b *BadgerBackend) Put(id peer.ID, record []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pubKeyKey(id), record)
	})
}

// Delete 删除公钥记录
func (b *BadgerBackend) Delete(id peer.ID) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(pubKeyKey(id))
	})
}

// IDs 列出所有已持久化的 PeerID
func (b *BadgerBackend) IDs() ([]peer.ID, error) {
	var ids []peer.ID
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(pubKeyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			ids = append(ids, peer.ID(key[len(pubKeyPrefix):]))
		}
		return nil
	})
	return ids, err
}

// Close 关闭数据库
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

// badgerLogger 将 BadgerDB 日志转发到 keybook 组件日志
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logger.Error("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logger.Warn("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Infof 信息日志降级为 Debug，BadgerDB 启动时输出较多
func (badgerLogger) Infof(format string, args ...interface{}) {
	logger.Debug("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logger.Debug("badger: " + strings.TrimSpace(fmt.Sprintf(format, args...)))
}
