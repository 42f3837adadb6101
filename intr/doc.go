// Package intr 周期定时中断的注册与派发.
//
// 两种派发上下文:
//   - Worker: 由 Facility(如 timerqueue) 在池化的工作协程上回调, 处理函数可以阻塞/分配/IO.
//     同一定时器的两次触发默认允许重叠(AllowOverlap), 需要时用 WithOverlapPolicy(SerializeFires) 串行化.
//   - Signal: 由 SignalFacility(如 sigtimer) 按信号身份投递, 处理函数在 Interruptible 目标协程上
//     插入执行(两个任务之间), 只能操作 SignalSafe 的原子类型负载.
//
// 绑定按定时器分别定型: Bind / BindSignal 在编译期把处理函数的参数类型与负载类型绑定,
// 原生层只看到不透明的 any, 由本包自己还原.
//
// Cancel 是同步的: 返回时保证不会再有触发观察到该绑定, 负载引用已释放.
package intr
