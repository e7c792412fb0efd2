package domain

import "errors"

// 核心错误分类：Handler 层据此决定返回给调用方的 Result
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)
