package service

import (
	"errors"
	"fmt"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	NotFound            = 404
	InternalServerError = 500
	ServiceUnavailable  = 503
)

var (
	ErrParamInvalid       = errors.New("参数错误")
	ErrInvalidItem        = errors.New("内容不存在或未发布")
	ErrActorUnresolved    = errors.New("无法识别操作者身份")
	ErrRatingOutOfRange   = errors.New("评分超出范围")
	ErrFeatureDisabled    = errors.New("功能未开启")
	ErrStorageUnavailable = errors.New("存储暂不可用")
	ErrWriteFailed        = errors.New("写入失败")
	UnauthorizedError     = errors.New("请先登录")
	UnExpectedError       = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:       BadRequest,
	ErrInvalidItem:        BadRequest,
	ErrActorUnresolved:    BadRequest,
	ErrRatingOutOfRange:   BadRequest,
	ErrFeatureDisabled:    BadRequest,
	ErrStorageUnavailable: ServiceUnavailable,
	ErrWriteFailed:        InternalServerError,
	UnauthorizedError:     Unauthorized,
	UnExpectedError:       InternalServerError,
}

// LookupError 按 errors.Is 匹配业务错误，返回业务码与对外提示
func LookupError(err error) (int, error, bool) {
	for target, code := range ErrorMap {
		if errors.Is(err, target) {
			return code, target, true
		}
	}
	return 0, nil, false
}

// wrapWrite 写路径失败统一包装
func wrapWrite(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrWriteFailed, op, err)
}
