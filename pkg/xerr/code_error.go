package xerr

import (
	"errors"
	"fmt"
)

// Kind 标识一类可区分的业务失败，外层 shell 据此映射响应，无需窥探内部状态
type Kind string

const (
	KindNotFound               Kind = "not_found"               // 视频不存在或没有字幕轨
	KindTranscriptsUnavailable Kind = "transcripts_unavailable" // 字幕服务不可用
	KindProviderError          Kind = "provider_error"          // 向量化 / LLM 提供方失败
	KindTimeout                Kind = "timeout"                 // 外部调用超时
	KindIndexCorruption        Kind = "index_corruption"        // 向量集合不完整或不一致
	KindSynthesisIncomplete    Kind = "synthesis_incomplete"    // 笔记合成丢失覆盖
	KindBadRequest             Kind = "bad_request"
	KindInternal               Kind = "internal"
)

// CodeError 自定义错误结构
type CodeError struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	cause   error
}

// Error 实现 error 接口
func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("Code: %d, Kind: %s, Message: %s: %v", e.Code, e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("Code: %d, Kind: %s, Message: %s", e.Code, e.Kind, e.Message)
}

func (e *CodeError) Unwrap() error { return e.cause }

// Is 按 Kind 判等，便于 errors.Is(err, xerr.ErrNotFound) 这类判断
func (e *CodeError) Is(target error) bool {
	t, ok := target.(*CodeError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New 创建新的 CodeError
func New(code int, kind Kind, msg string) *CodeError {
	return &CodeError{Code: code, Kind: kind, Message: msg}
}

// Wrap 在保留 Kind 的同时附带底层原因
func Wrap(kind Kind, msg string, cause error) *CodeError {
	return &CodeError{Code: codeOf(kind), Kind: kind, Message: msg, cause: cause}
}

// KindOf 提取错误的 Kind；非 CodeError 一律视为 internal
func KindOf(err error) Kind {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

func codeOf(kind Kind) int {
	switch kind {
	case KindNotFound:
		return NotFound
	case KindBadRequest:
		return BadRequest
	case KindTimeout:
		return GatewayTimeout
	case KindTranscriptsUnavailable, KindProviderError:
		return BadGateway
	default:
		return InternalServerError
	}
}

// 常用通用错误码
const (
	OK                  = 200
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
	BadGateway          = 502
	GatewayTimeout      = 504
)

// 常用预定义错误
var (
	ErrSuccess     = New(OK, "", "Success")
	ErrServerError = New(InternalServerError, KindInternal, "系统错误，请联系工作人员")
	ErrParam       = New(BadRequest, KindBadRequest, "参数错误")

	ErrNotFound               = New(NotFound, KindNotFound, "未找到视频字幕")
	ErrTranscriptsUnavailable = New(BadGateway, KindTranscriptsUnavailable, "字幕服务暂不可用")
	ErrProviderError          = New(BadGateway, KindProviderError, "模型提供方调用失败")
	ErrTimeout                = New(GatewayTimeout, KindTimeout, "外部调用超时")
	ErrIndexCorruption        = New(InternalServerError, KindIndexCorruption, "向量索引不一致")
	ErrSynthesisIncomplete    = New(InternalServerError, KindSynthesisIncomplete, "笔记合成覆盖不完整")
)
