package intr

import "os"

// NativeHandle 原生定时源句柄.
type NativeHandle = int64

// NativeCallback 原生层每次触发时的回调, arg 为布防时传入的不透明参数.
type NativeCallback = func(arg any, nowMs int64)

// Facility 工作协程型原生定时设施.
type Facility interface {
	// Arm 布防一个定时源, periodic 为 false 时只触发一次.
	Arm(periodMs int64, periodic bool, cb NativeCallback, arg any) (NativeHandle, error)
	// Disarm 撤防. 已经派发出去的回调不保证撤回.
	Disarm(h NativeHandle) error
}

// SignalFacility 信号型原生定时设施, 每个信号身份最多一个定时源.
type SignalFacility interface {
	// Install 为 sig 安装投递函数.
	Install(sig os.Signal, deliver func(nowMs int64)) error
	// Uninstall 卸载 sig 的投递函数.
	Uninstall(sig os.Signal) error
	// Arm 布防以 sig 为身份的定时源.
	Arm(sig os.Signal, periodMs int64, periodic bool) error
	// Disarm 撤防以 sig 为身份的定时源.
	Disarm(sig os.Signal) error
}

// Interruptible 可被中断的执行体, 中断函数在其自身协程上与普通任务交错执行.
type Interruptible interface {
	Interrupt(fn func()) error
}
