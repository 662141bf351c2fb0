// Package session は画面全体で共有する状態（プロンプト、編集指示、漫画、表示中のページ）と、
// 生成・編集の実行中フラグを保持します。
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shouni/go-comic-kit/pkg/domain"
)

// ErrBusy は生成または編集の実行中に、新しい操作を開始しようとした場合に返されます。
var ErrBusy = errors.New("別の生成または編集を実行中です")

// Field は変更された状態の種類です。
type Field int

const (
	FieldPrompt Field = iota + 1
	FieldEditPrompt
	FieldComic
	FieldCurrentPage
)

func (f Field) String() string {
	switch f {
	case FieldPrompt:
		return "prompt"
	case FieldEditPrompt:
		return "edit_prompt"
	case FieldComic:
		return "comic"
	case FieldCurrentPage:
		return "current_page"
	default:
		return "unknown"
	}
}

// Snapshot はある時点の状態のコピーです。Comic は共有されますが、変更されることはありません。
type Snapshot struct {
	Prompt      string
	EditPrompt  string
	Comic       *domain.Comic
	CurrentPage int
	Generating  bool
	Editing     bool
}

// Change は状態変更の通知です。
type Change struct {
	Fields   []Field
	Snapshot Snapshot
}

// Has は fields に f が含まれるかを返します。
func (c Change) Has(f Field) bool {
	for _, x := range c.Fields {
		if x == f {
			return true
		}
	}
	return false
}

// Session は共有状態を保持します。Comic を書き換えるのは生成と編集のみです。
type Session struct {
	mu          sync.RWMutex
	prompt      string
	editPrompt  string
	comic       *domain.Comic
	currentPage int
	generating  bool
	editing     bool
	observers   []func(Change)
}

// New は空の Session を返します。
func New() *Session {
	return &Session{}
}

// OnChange は状態が変わるたびに呼ばれる関数を登録します。
func (s *Session) OnChange(fn func(Change)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// BeginGeneration は生成の実行権を取得します。
// 生成・編集のどちらかが実行中の場合は ErrBusy を返し、待機はしません。
func (s *Session) BeginGeneration() (release func(), err error) {
	return s.acquire(&s.generating)
}

// BeginEdit は編集の実行権を取得します。
func (s *Session) BeginEdit() (release func(), err error) {
	return s.acquire(&s.editing)
}

func (s *Session) acquire(flag *bool) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generating || s.editing {
		return nil, ErrBusy
	}
	*flag = true

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			*flag = false
			s.mu.Unlock()
		})
	}, nil
}

// Busy は生成または編集が実行中かを返します。
func (s *Session) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generating || s.editing
}

// Snapshot は現在の状態のコピーを返します。
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Prompt:      s.prompt,
		EditPrompt:  s.editPrompt,
		Comic:       s.comic,
		CurrentPage: s.currentPage,
		Generating:  s.generating,
		Editing:     s.editing,
	}
}

func (s *Session) Prompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prompt
}

func (s *Session) EditPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editPrompt
}

func (s *Session) Comic() *domain.Comic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.comic
}

func (s *Session) CurrentPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPage
}

// SetPrompt はプロンプトを設定します。
func (s *Session) SetPrompt(p string) {
	s.update(func() []Field {
		if s.prompt == p {
			return nil
		}
		s.prompt = p
		return []Field{FieldPrompt}
	})
}

// SetEditPrompt は次の編集で使う指示文を設定します。
func (s *Session) SetEditPrompt(p string) {
	s.update(func() []Field {
		if s.editPrompt == p {
			return nil
		}
		s.editPrompt = p
		return []Field{FieldEditPrompt}
	})
}

// SetCurrentPage は表示中のページを切り替えます。
func (s *Session) SetCurrentPage(i int) error {
	var err error
	s.update(func() []Field {
		if i < 0 || i >= s.comic.PageCount() {
			err = fmt.Errorf("%w: %d", domain.ErrPageOutOfRange, i)
			return nil
		}
		if s.currentPage == i {
			return nil
		}
		s.currentPage = i
		return []Field{FieldCurrentPage}
	})
	return err
}

// CommitComic は新しく生成した漫画を反映します。
// 表示ページは先頭に戻り、編集指示は消去されます。
func (s *Session) CommitComic(c *domain.Comic) error {
	if c.IsEmpty() {
		return domain.ErrEmptyComic
	}
	s.update(func() []Field {
		s.comic = c
		s.currentPage = 0
		s.editPrompt = ""
		return []Field{FieldComic, FieldCurrentPage, FieldEditPrompt}
	})
	return nil
}

// ReplaceComic は編集でページを差し替えた漫画を反映します。表示ページは変わりません。
func (s *Session) ReplaceComic(c *domain.Comic) error {
	if c.IsEmpty() {
		return domain.ErrEmptyComic
	}
	s.update(func() []Field {
		s.comic = c
		if s.currentPage >= c.PageCount() {
			s.currentPage = 0
		}
		return []Field{FieldComic}
	})
	return nil
}

// LoadPrompt は履歴のプロンプトを読み込み、漫画と編集指示を消去します。
func (s *Session) LoadPrompt(p string) {
	s.update(func() []Field {
		s.prompt = p
		s.comic = nil
		s.currentPage = 0
		s.editPrompt = ""
		return []Field{FieldPrompt, FieldComic, FieldCurrentPage, FieldEditPrompt}
	})
}

// Restore はドラフトから状態を復元します。comic は nil でも構いません。
func (s *Session) Restore(prompt string, comic *domain.Comic) {
	if comic.IsEmpty() {
		comic = nil
	}
	s.update(func() []Field {
		s.prompt = prompt
		s.comic = comic
		s.currentPage = 0
		return []Field{FieldPrompt, FieldComic, FieldCurrentPage}
	})
}

// Clear はプロンプト、編集指示、漫画を消去します。
func (s *Session) Clear() {
	s.update(func() []Field {
		s.prompt = ""
		s.editPrompt = ""
		s.comic = nil
		s.currentPage = 0
		return []Field{FieldPrompt, FieldEditPrompt, FieldComic, FieldCurrentPage}
	})
}

// HasPrompt はプロンプトが空白以外を含むかを返します。
func (s *Session) HasPrompt() bool {
	return strings.TrimSpace(s.Prompt()) != ""
}

func (s *Session) update(mutate func() []Field) {
	s.mu.Lock()
	fields := mutate()
	if len(fields) == 0 {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	observers := make([]func(Change), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	ch := Change{Fields: fields, Snapshot: snap}
	for _, fn := range observers {
		fn(ch)
	}
}
