package app

import (
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/pkg/errors"

	"github.com/fixkme/gointr/mlog"
)

// 进程全局状态
const (
	AppStateNone = iota // 未开始或已停止
	AppStateInit        // 正在初始化中
	AppStateRun         // 正在运行中
	AppStateStop        // 正在停止中
)

var ErrStarted = errors.New("app: modules cannot start twice")

// 单例
var defaultApp = New()

type Module interface {
	OnInit() error // 初始化
	Destroy()      // 销毁, 须让 Run 返回
	Run()          // 启动, 阻塞到 Destroy
	Name() string  // 名字
}

// DefaultApp 默认单例
func DefaultApp() *App {
	return defaultApp
}

// App 中的 modules 在初始化之后不能变更.
// 只有 GetState 和 Stop 是 goroutine safe 的.
// 定时信号(SIGALRM 等)不在监听之列, 由各自的设施订阅.
type App struct {
	mods  []Module
	state int32
	sig   chan os.Signal
	wg    sync.WaitGroup
}

func New() *App {
	return &App{sig: make(chan os.Signal, 1)}
}

func (app *App) setState(s int32) {
	atomic.StoreInt32(&app.state, s)
}

// GetState 获取状态
func (app *App) GetState() int32 {
	return atomic.LoadInt32(&app.state)
}

func (app *App) start(mods ...Module) error {
	if app.GetState() != AppStateNone || len(app.mods) != 0 {
		return ErrStarted
	}
	mlog.Info("app starting up")
	app.mods = mods
	app.setState(AppStateInit)
	// 模块初始化, 失败时销毁已初始化的模块
	for i, m := range app.mods {
		if err := m.OnInit(); err != nil {
			for j := i - 1; j >= 0; j-- {
				destroy(app.mods[j])
			}
			app.setState(AppStateNone)
			return errors.WithMessagef(err, "module %s init", m.Name())
		}
	}
	for _, m := range app.mods {
		app.wg.Add(1)
		go run(m, &app.wg)
	}
	app.setState(AppStateRun)
	mlog.Info("app started")
	return nil
}

func (app *App) stop() {
	if app.GetState() != AppStateRun {
		return
	}
	mlog.Info("app stop begin")
	app.setState(AppStateStop)
	// 先进后出
	for i := len(app.mods) - 1; i >= 0; i-- {
		m := app.mods[i]
		mlog.Infof("app stop module %s", m.Name())
		destroy(m)
	}
	app.wg.Wait()
	app.setState(AppStateNone)
	mlog.Info("app stopped")
}

func run(m Module, wg *sync.WaitGroup) {
	defer wg.Done()
	m.Run()
}

func destroy(m Module) {
	defer func() {
		if r := recover(); r != nil {
			mlog.Errorf("%s module destroy panic: %v\n%s", m.Name(), r, debug.Stack())
		}
	}()
	m.Destroy()
}

// Run 初始化并启动模块, 阻塞到 SIGINT/SIGTERM 或 Stop, 然后逆序销毁.
// SIGHUP 只记录日志.
func (app *App) Run(mods ...Module) error {
	signal.Notify(app.sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(app.sig)
	if err := app.start(mods...); err != nil {
		return err
	}
	for {
		sig := <-app.sig
		mlog.Infof("app closing down (signal: %v)", sig)
		if sig != syscall.SIGHUP {
			break
		}
	}
	app.stop()
	return nil
}

// Stop 让 Run 返回
func (app *App) Stop() {
	select {
	case app.sig <- syscall.SIGTERM:
	default:
	}
}
