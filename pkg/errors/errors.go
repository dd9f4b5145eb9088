package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError 应用错误
// Code是业务错误码，前三位即HTTP状态码（40400 → 404）
// Message返回给客户端，Err只写日志，不序列化
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Is和errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 同码即同类错误
// 预定义错误是指针，WithErr派生出的新实例仍能被errors.Is识别
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus 由错误码推导HTTP状态码
func (e *AppError) HTTPStatus() int {
	status := e.Code / 100
	if status < 400 || status > 599 || http.StatusText(status) == "" {
		return http.StatusInternalServerError
	}
	return status
}

// WithErr 基于当前错误派生一个携带内部原因的新错误
func (e *AppError) WithErr(err error) *AppError {
	return &AppError{Code: e.Code, Message: e.Message, Err: err}
}

// WithMessage 替换提示信息，保留错误码
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{Code: e.Code, Message: message, Err: e.Err}
}

// New 创建新的AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装系统错误（数据库、网络等），对外只暴露message
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// Wrapf 格式化包装错误
func Wrapf(err error, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// 错误码：前三位为HTTP状态码，后两位为细分
const (
	// 参数与业务校验（400）
	ErrCodeValidation    = 40000
	ErrCodeInvalidParams = 40001
	ErrCodeBindError     = 40002
	ErrCodeWeakPassword  = 40003

	// 认证（401）
	ErrCodeUnauthorized     = 40100
	ErrCodeInvalidToken     = 40101
	ErrCodeTokenExpired     = 40102
	ErrCodeInvalidPassword  = 40103
	ErrCodeInvalidSignature = 40104

	// 授权（403）
	ErrCodeForbidden = 40300

	// 资源不存在（404）
	ErrCodeNotFound       = 40400
	ErrCodeUserNotFound   = 40401
	ErrCodeBookNotFound   = 40402
	ErrCodeOrderNotFound  = 40403
	ErrCodePayoutNotFound = 40404

	// 冲突（409）
	ErrCodeConflict         = 40900
	ErrCodeEmailDuplicate   = 40901
	ErrCodeDuplicateOrderNo = 40902
	ErrCodeCartVersion      = 40903
	ErrCodePayoutInProgress = 40904

	// 业务规则（422）
	ErrCodeInsufficientFunds = 42200
	ErrCodeInvalidTransition = 42201

	// 服务端（500/502）
	ErrCodeInternal        = 50000
	ErrCodeDatabaseError   = 50001
	ErrCodeRedisError      = 50002
	ErrCodeExternalService = 50200
	ErrCodeProviderReject  = 50201
)

var (
	ErrInternal      = New(ErrCodeInternal, "系统内部错误")
	ErrDatabaseError = New(ErrCodeDatabaseError, "数据库错误")
	ErrRedisError    = New(ErrCodeRedisError, "缓存服务错误")

	// ErrExternalService 第三方服务失败，可重试；不透传第三方返回内容
	ErrExternalService = New(ErrCodeExternalService, "支付服务暂时不可用，请稍后重试")
	// ErrProviderRejected 第三方明确拒绝（4xx），重试没有意义
	ErrProviderRejected = New(ErrCodeProviderReject, "支付服务拒绝了该请求")

	ErrUnauthorized     = New(ErrCodeUnauthorized, "请先登录")
	ErrInvalidToken     = New(ErrCodeInvalidToken, "无效的Token")
	ErrTokenExpired     = New(ErrCodeTokenExpired, "Token已过期")
	ErrInvalidPassword  = New(ErrCodeInvalidPassword, "密码错误")
	ErrInvalidSignature = New(ErrCodeInvalidSignature, "签名校验失败")
	ErrForbidden        = New(ErrCodeForbidden, "无权限访问")

	ErrNotFound     = New(ErrCodeNotFound, "资源不存在")
	ErrUserNotFound = New(ErrCodeUserNotFound, "用户不存在")

	ErrConflict       = New(ErrCodeConflict, "资源冲突")
	ErrEmailDuplicate = New(ErrCodeEmailDuplicate, "邮箱已被注册")

	ErrValidation    = New(ErrCodeValidation, "参数校验失败")
	ErrInvalidParams = New(ErrCodeInvalidParams, "参数错误")
	ErrBindError     = New(ErrCodeBindError, "参数格式错误")
	ErrWeakPassword  = New(ErrCodeWeakPassword, "密码强度不足（需8-20位，包含字母和数字）")

	ErrInsufficientFunds = New(ErrCodeInsufficientFunds, "结算账户余额不足")
)

// IsAppError 判断是否为AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError 提取AppError（非AppError统一包装成Internal）
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, "系统内部错误")
}

// HasCode 判断错误链中是否存在指定错误码
func HasCode(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
