// 包 apperr：业务错误分类；每类错误对应一个面向客户端的 detail 文本，由 API 层统一映射为 400
package apperr

import "errors"

// Kind：错误类别
type Kind string

const (
	InvalidInputKind     Kind = "invalid_input_kind"
	MissingDatasetFile   Kind = "missing_dataset_file"
	InsufficientFeatures Kind = "insufficient_features"
	ContainmentViolation Kind = "containment_violation"
	CorruptArchive       Kind = "corrupt_archive"
	UnsupportedGeometry  Kind = "unsupported_geometry"
)

// Error：携带类别与对外文本的错误；Err 为可选底层原因，仅用于日志
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Detail + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf：沿错误链查找第一个 *Error 并返回其类别
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is：判断错误链中是否存在指定类别
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// DetailOf：返回对外文本；非业务错误返回空串
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}
