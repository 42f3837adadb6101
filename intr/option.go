package intr

// OverlapPolicy 同一定时器触发重叠时的策略.
type OverlapPolicy int8

const (
	// AllowOverlap 允许同一定时器的触发在不同工作协程上并行, 处理函数必须可重入.
	AllowOverlap OverlapPolicy = iota
	// SerializeFires 同一定时器的触发互斥执行.
	SerializeFires
)

func (p OverlapPolicy) String() string {
	switch p {
	case AllowOverlap:
		return "allow-overlap"
	case SerializeFires:
		return "serialize-fires"
	default:
		return "unknown"
	}
}

// optionSet 注册表选项集合.
type optionSet struct {
	policy    OverlapPolicy
	maxTimers int
}

// Option 注册表选项.
type Option func(*optionSet)

// WithOverlapPolicy 重叠策略, 默认 AllowOverlap.
func WithOverlapPolicy(p OverlapPolicy) Option {
	return func(opts *optionSet) {
		opts.policy = p
	}
}

// WithMaxTimers 活跃定时器上限, <=0 不限制(仍受原生层限制).
func WithMaxTimers(n int) Option {
	return func(opts *optionSet) {
		opts.maxTimers = n
	}
}

// registerOptionSet 单次注册选项集合.
type registerOptionSet struct {
	once bool
}

// RegisterOption 单次注册选项.
type RegisterOption func(*registerOptionSet)

// Once 只触发一次, period 作为延迟. 句柄在 Cancel 之前保持有效.
func Once() RegisterOption {
	return func(opts *registerOptionSet) {
		opts.once = true
	}
}

func applyRegisterOptions(options []RegisterOption) registerOptionSet {
	var opts registerOptionSet
	for _, o := range options {
		o(&opts)
	}
	return opts
}
