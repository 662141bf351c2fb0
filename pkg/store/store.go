// Package store は文字列のキーと値を保存する永続ストアの契約を定義します。
package store

import (
	"context"
	"errors"
)

// ErrQuotaExceeded は容量上限により書き込みが拒否された場合に返されます。
// その他の書き込み失敗とは区別して扱います。
var ErrQuotaExceeded = errors.New("ストアの容量上限を超えました")

// Store はサイズ制限付きのキー・バリューストアです。
type Store interface {
	// Get は値を返します。キーが存在しない場合は ok が false になります。
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Closer は後始末が必要なストアが実装します。
type Closer interface {
	Close() error
}

// EntrySize は容量計算に用いる1件分のサイズです。
func EntrySize(key, value string) int {
	return len(key) + len(value)
}
