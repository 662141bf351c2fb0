// Package history はプロンプト履歴を新しい順に保持します。
package history

import "sync"

// DefaultLimit は履歴の最大件数です。
const DefaultLimit = 50

// Ledger は重複なし・件数上限付きの、新しい順に並んだプロンプト一覧です。
type Ledger struct {
	mu      sync.RWMutex
	limit   int
	entries []string
}

// NewLedger は上限 limit の空の Ledger を返します。limit が 0 以下の場合は DefaultLimit を使います。
func NewLedger(limit int) *Ledger {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Ledger{limit: limit}
}

// Add はプロンプトを先頭に追加します。既に存在する場合は先頭へ移動し、上限を超えた分は末尾から捨てます。
// 変更があった場合は true を返します。
func (l *Ledger) Add(prompt string) bool {
	if prompt == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > 0 && l.entries[0] == prompt {
		return false
	}

	next := make([]string, 0, len(l.entries)+1)
	next = append(next, prompt)
	for _, e := range l.entries {
		if e != prompt {
			next = append(next, e)
		}
	}
	if len(next) > l.limit {
		next = next[:l.limit]
	}
	l.entries = next
	return true
}

// Replace は一覧を置き換えます。入力は重複除去と上限の適用を受けます。
func (l *Ledger) Replace(entries []string) {
	normalized := Normalize(entries, l.limit)
	l.mu.Lock()
	l.entries = normalized
	l.mu.Unlock()
}

// Clear は一覧を空にします。
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Entries は一覧のコピーを新しい順に返します。
func (l *Ledger) Entries() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len は件数を返します。
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Limit は上限件数を返します。
func (l *Ledger) Limit() int {
	return l.limit
}

// Normalize は先に現れたものを残して重複と空文字を除き、limit 件に切り詰めます。
func Normalize(entries []string, limit int) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e == "" {
			continue
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
