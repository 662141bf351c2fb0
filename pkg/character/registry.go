// Package character はキャラクター一覧の管理と、プロンプトへの埋め込み文の生成を行います。
package character

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/shouni/go-comic-kit/pkg/domain"
	"github.com/shouni/go-comic-kit/pkg/events"
)

// Registry はキャラクター一覧を保持します。一覧を変更するのはこの型だけです。
type Registry struct {
	mu        sync.RWMutex
	chars     []domain.Character
	sink      events.Sink
	observers []func([]domain.Character)
	newID     func() string
}

// NewRegistry は空の Registry を返します。sink が nil の場合は通知を捨てます。
func NewRegistry(sink events.Sink) *Registry {
	if sink == nil {
		sink = events.Discard
	}
	return &Registry{
		sink:  sink,
		newID: uuid.NewString,
	}
}

// OnChange は一覧が変わるたびに呼ばれる関数を登録します。
func (r *Registry) OnChange(fn func([]domain.Character)) {
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

// Add は新しい ID を割り当ててキャラクターを末尾に追加します。
// 名前が空の場合は追加せず、検証エラーを通知して返します。
func (r *Registry) Add(ctx context.Context, c domain.Character) (domain.Character, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		verr := domain.NewValidationError(domain.OpCharacter, domain.MsgMissingCharName)
		r.sink.Emit(ctx, events.Notice(domain.OpCharacter, verr.Message))
		return domain.Character{}, verr
	}
	if c.Type == "" {
		c.Type = domain.CharacterHero
	}
	c.ID = domain.CharacterID(r.newID())

	r.mu.Lock()
	r.chars = append(r.chars, c)
	snapshot := domain.CloneCharacters(r.chars)
	r.mu.Unlock()

	r.notify(snapshot)
	r.sink.Emit(ctx, events.Notice(domain.OpCharacter, fmt.Sprintf("Character \"%s\" added!", c.Name)))
	return c, nil
}

// Remove は ID が一致するキャラクターを取り除きます。見つかった場合は true を返します。
func (r *Registry) Remove(id domain.CharacterID) bool {
	r.mu.Lock()
	idx := -1
	for i, c := range r.chars {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return false
	}
	next := make([]domain.Character, 0, len(r.chars)-1)
	next = append(next, r.chars[:idx]...)
	next = append(next, r.chars[idx+1:]...)
	r.chars = next
	snapshot := domain.CloneCharacters(r.chars)
	r.mu.Unlock()

	r.notify(snapshot)
	return true
}

// Get は ID が一致するキャラクターを返します。
func (r *Registry) Get(id domain.CharacterID) (domain.Character, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.chars {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Character{}, false
}

// List は一覧のコピーを追加順に返します。
func (r *Registry) List() []domain.Character {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.CloneCharacters(r.chars)
}

// Len は件数を返します。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chars)
}

// Replace は一覧を丸ごと置き換えます。ドラフトの復元に使います。
func (r *Registry) Replace(chars []domain.Character) {
	r.mu.Lock()
	r.chars = domain.CloneCharacters(chars)
	snapshot := domain.CloneCharacters(r.chars)
	r.mu.Unlock()

	r.notify(snapshot)
}

// Clear は一覧を空にします。
func (r *Registry) Clear() {
	r.Replace(nil)
}

func (r *Registry) notify(snapshot []domain.Character) {
	r.mu.RLock()
	observers := make([]func([]domain.Character), len(r.observers))
	copy(observers, r.observers)
	r.mu.RUnlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}
