package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind はユーザーに返すエラーの分類です。
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindRateLimited
	KindGenerationFailed
	KindEditFailed
	KindStorageQuotaExceeded
	KindStorage
	KindSchemaMigration
	KindCapabilityUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindGenerationFailed:
		return "generation_failed"
	case KindEditFailed:
		return "edit_failed"
	case KindStorageQuotaExceeded:
		return "storage_quota_exceeded"
	case KindStorage:
		return "storage"
	case KindSchemaMigration:
		return "schema_migration"
	case KindCapabilityUnavailable:
		return "capability_unavailable"
	default:
		return "unknown"
	}
}

// Operation はエラーや進捗の発生元となる操作名です。
type Operation string

const (
	OpGenerateStrip Operation = "generate_strip"
	OpGenerateStory Operation = "generate_story"
	OpEdit          Operation = "edit"
	OpSuggestPrompt Operation = "suggest_prompt"
	OpAnalyzeFace   Operation = "analyze_face"
	OpHistory       Operation = "history"
	OpDraft         Operation = "draft"
	OpCharacter     Operation = "character"
	OpNarration     Operation = "narration"
	OpDictation     Operation = "dictation"
	OpExport        Operation = "export"
)

// ユーザー向けメッセージ
const (
	MsgRateLimited     = "The service is busy due to high demand. Please wait a moment and try again."
	MsgStripFailed     = "Sorry, something went wrong while creating your comic. Please try again."
	MsgStoryFailed     = "Sorry, something went wrong while creating your story. Please try again."
	MsgEditFailed      = "Sorry, something went wrong while editing your comic. Please try again."
	MsgSuggestFailed   = "Sorry, could not fetch a suggestion. Please try again."
	MsgAnalyzeFailed   = "Sorry, could not analyze the image. Please try another one."
	MsgExportFailed    = "Sorry, could not export your comic. Please try again."
	MsgGenericFailed   = "Sorry, something went wrong. Please try again."
	MsgMissingPrompt   = "Please enter a prompt to generate a comic."
	MsgMissingEdit     = "Please describe the edit you want to make."
	MsgMissingComic    = "There is no comic to edit yet."
	MsgMissingCharName = "Character name is required."
)

// OperationError は操作の失敗を分類付きで表します。
type OperationError struct {
	Kind    ErrorKind
	Op      Operation
	Message string // ユーザーに表示するメッセージ
	Err     error
}

func (e *OperationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *OperationError) Unwrap() error { return e.Err }

// NewValidationError は入力検証エラーを生成します。
func NewValidationError(op Operation, msg string) *OperationError {
	return &OperationError{Kind: KindValidation, Op: op, Message: msg}
}

// NewCapabilityError は端末の機能が利用できない場合のエラーを生成します。
func NewCapabilityError(op Operation, msg string) *OperationError {
	return &OperationError{Kind: KindCapabilityUnavailable, Op: op, Message: msg}
}

// IsRateLimit はバックエンドのエラーがレート制限によるものかを判定します。
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota")
}

// Classify はバックエンドのエラーを操作ごとの OperationError に変換します。
// すでに OperationError の場合はそのまま返します。
func Classify(op Operation, err error) *OperationError {
	if err == nil {
		return nil
	}
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr
	}

	switch op {
	case OpGenerateStrip, OpGenerateStory, OpEdit:
		if IsRateLimit(err) {
			return &OperationError{Kind: KindRateLimited, Op: op, Message: MsgRateLimited, Err: err}
		}
	}

	switch op {
	case OpGenerateStrip:
		return &OperationError{Kind: KindGenerationFailed, Op: op, Message: MsgStripFailed, Err: err}
	case OpGenerateStory:
		return &OperationError{Kind: KindGenerationFailed, Op: op, Message: MsgStoryFailed, Err: err}
	case OpEdit:
		return &OperationError{Kind: KindEditFailed, Op: op, Message: MsgEditFailed, Err: err}
	case OpSuggestPrompt:
		return &OperationError{Kind: KindGenerationFailed, Op: op, Message: MsgSuggestFailed, Err: err}
	case OpAnalyzeFace:
		return &OperationError{Kind: KindGenerationFailed, Op: op, Message: MsgAnalyzeFailed, Err: err}
	case OpExport:
		return &OperationError{Kind: KindGenerationFailed, Op: op, Message: MsgExportFailed, Err: err}
	default:
		return &OperationError{Kind: KindGenerationFailed, Op: op, Message: MsgGenericFailed, Err: err}
	}
}

// UserMessage はエラーからユーザー向けのメッセージを取り出します。
func UserMessage(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Message
	}
	if err == nil {
		return ""
	}
	return MsgGenericFailed
}
