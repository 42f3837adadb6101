// Package sigtimer 信号型原生定时设施.
// 以信号为身份的间隔定时器, 到期时内核向进程发送该信号, 经 os/signal 投递.
// 每个信号同时只能有一个定时源和一个投递函数.
package sigtimer

import "github.com/pkg/errors"

// ErrUnsupportedSignal 该信号没有对应的间隔定时器.
var ErrUnsupportedSignal = errors.New("sigtimer: unsupported signal")

// ErrInstalled 信号已安装投递函数.
var ErrInstalled = errors.New("sigtimer: signal already installed")

// ErrNotInstalled 布防前必须先安装投递函数.
var ErrNotInstalled = errors.New("sigtimer: signal not installed")

// ErrUnsupportedPlatform 当前平台没有信号定时器.
var ErrUnsupportedPlatform = errors.New("sigtimer: unsupported platform")
