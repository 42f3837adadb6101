package intr

import "github.com/fixkme/gointr/errs"

var (
	// ErrRegistration 原生层拒绝布防, 或注册参数非法(周期<=0, 处理函数为空, 注册表已关闭).
	ErrRegistration = errs.Registration
	// ErrUnknownHandle 句柄未注册或已取消.
	ErrUnknownHandle = errs.UnknownHandle
	// ErrIdentityConflict 信号身份已被其他定时器占用.
	ErrIdentityConflict = errs.IdentityConflict
	// ErrPayloadTypeMismatch 以非绑定类型读取负载.
	ErrPayloadTypeMismatch = errs.PayloadTypeMismatch
	// ErrDisarm 原生层撤防失败, 绑定仍然已被移除.
	ErrDisarm = errs.Disarm
)
