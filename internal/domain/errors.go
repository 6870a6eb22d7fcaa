package domain

import (
	"errors"
	"fmt"
)

// 错误分类：入参校验 / 签名认证 / 未找到 / 外部协作方失败 / 幂等冲突。
// Handler 据此映射 HTTP 状态码；外部协作方失败在本地写入已提交后绝不回传给调用方。

// ValidationError 入参不合法（缺少必填字段、钱包格式错误等），无副作用即拒绝
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("validation failed: %s", e.Msg)
}

func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// AuthenticationError 签名/凭证校验失败，在解析负载内容之前拒绝
type AuthenticationError struct {
	Msg string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Msg)
}

func NewAuthenticationError(msg string) error {
	return &AuthenticationError{Msg: msg}
}

// NotFoundError 引用了不存在的患者/病例/查询，与校验失败区分
type NotFoundError struct {
	Kind string
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Ref)
}

func NewNotFoundError(kind, ref string) error {
	return &NotFoundError{Kind: kind, Ref: ref}
}

// ExternalServiceError 抽取/支付网关/存证协作方失败。
// 对已完成的本地持久写入永远非致命：记录后重试，不作为请求失败抛回。
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("external service %s failed: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func NewExternalServiceError(service string, err error) error {
	return &ExternalServiceError{Service: service, Err: err}
}

// ErrDuplicateCase 同一事件幂等键的重复创建（IntegrityError）。
// 约定：持久层返回已存在的病例而不是错误，此哨兵仅供内部分支判断。
var ErrDuplicateCase = errors.New("case already exists for event hash")

// IsValidation errors.As 便捷封装
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound errors.As 便捷封装
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
