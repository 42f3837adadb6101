package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/fixkme/gointr/mlog"
)

var Config *AppConfig

type AppConfig struct {
	AppName    string `json:"app_name" yaml:"app_name"`
	LogConfig  `json:",inline" yaml:",inline"`
	TimerQueue TimerQueueConfig `json:"timer_queue" yaml:"timer_queue"`
	Signal     SignalConfig     `json:"signal" yaml:"signal"`
	Timers     []TimerConfig    `json:"timers" yaml:"timers"`
}

type LogConfig struct {
	LogPath   string `json:"log_path" yaml:"log_path"` //为空时只输出到控制台
	LogName   string `json:"log_name" yaml:"log_name"`
	LogLevel  string `json:"log_level" yaml:"log_level"` //fatal error warn notice info debug trace
	LogStdOut bool   `json:"log_std_out" yaml:"log_std_out"`
}

type TimerQueueConfig struct {
	PoolSize         int   `json:"pool_size" yaml:"pool_size"`                   //工作协程数量
	MaxTimers        int   `json:"max_timers" yaml:"max_timers"`                 //定时器上限, 0 不限制
	FireBuffer       int   `json:"fire_buffer" yaml:"fire_buffer"`               //到期通道容量
	ReleaseTimeoutMs int64 `json:"release_timeout_ms" yaml:"release_timeout_ms"` //关闭时等待在途回调 毫秒
	SerializeFires   bool  `json:"serialize_fires" yaml:"serialize_fires"`       //同一定时器的回调串行执行
}

type SignalConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Name     string `json:"name" yaml:"name"`           //如 SIGALRM
	PeriodMs int64  `json:"period_ms" yaml:"period_ms"` //间隔 毫秒
}

type TimerConfig struct {
	Handler  string `json:"handler" yaml:"handler"`     //处理函数名
	PeriodMs int64  `json:"period_ms" yaml:"period_ms"` //间隔 毫秒
	Arg      string `json:"arg" yaml:"arg"`             //参数, 由处理函数解析
	Once     bool   `json:"once" yaml:"once"`
}

// Default 演示用的默认配置
func Default() *AppConfig {
	return &AppConfig{
		AppName:   "gointr",
		LogConfig: LogConfig{LogLevel: "info", LogStdOut: true},
		Signal:    SignalConfig{Enabled: true, Name: "SIGALRM", PeriodMs: 1000},
		Timers: []TimerConfig{
			{Handler: "isr1", PeriodMs: 2000, Arg: "1"},
			{Handler: "isr2", PeriodMs: 10000, Arg: "Hello World!"},
			{Handler: "isr1", PeriodMs: 1000, Arg: "3"},
		},
	}
}

// LoadConfig 先取默认值, 再读配置文件(.json/.yaml/.yml), 最后由 loadConfigFromEnv 覆盖.
// configFile 为空时跳过文件.
func LoadConfig(configFile string, loadConfigFromEnv func(*AppConfig) error) error {
	conf := Default()
	if len(configFile) != 0 {
		if err := loadConfigFromFile(configFile, conf); err != nil {
			return err
		}
	}
	if loadConfigFromEnv != nil {
		if err := loadConfigFromEnv(conf); err != nil {
			return err
		}
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	Config = conf
	return nil
}

func loadConfigFromFile(configFile string, conf *AppConfig) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return errors.WithMessage(err, "read config")
	}
	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, conf)
	default:
		err = json.Unmarshal(data, conf)
	}
	if err != nil {
		return errors.WithMessagef(err, "parse config %s", configFile)
	}
	return nil
}

// Validate 只检查配置本身, 周期是否合法由注册时判定
func (conf *AppConfig) Validate() error {
	for i, t := range conf.Timers {
		if t.Handler == "" {
			return errors.Errorf("timers[%d]: empty handler", i)
		}
	}
	if conf.Signal.Enabled && conf.Signal.Name == "" {
		return errors.New("signal: empty name")
	}
	if conf.TimerQueue.PoolSize < 0 || conf.TimerQueue.FireBuffer < 0 {
		return errors.New("timer_queue: negative size")
	}
	return nil
}

func (conf *AppConfig) Level() mlog.Level {
	return mlog.ParseLevel(strings.ToLower(conf.LogLevel))
}

// EnvOverlay 读取 prefix 开头的环境变量覆盖配置, 如 GOINTR_LOG_LEVEL
func EnvOverlay(prefix string) func(*AppConfig) error {
	return func(conf *AppConfig) error {
		get := func(key string) (string, bool) {
			return os.LookupEnv(prefix + "_" + key)
		}
		if v, ok := get("LOG_PATH"); ok {
			conf.LogPath = v
		}
		if v, ok := get("LOG_LEVEL"); ok {
			conf.LogLevel = v
		}
		if v, ok := get("POOL_SIZE"); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.WithMessagef(err, "%s_POOL_SIZE", prefix)
			}
			conf.TimerQueue.PoolSize = n
		}
		if v, ok := get("SIGNAL"); ok {
			conf.Signal.Name = v
			conf.Signal.Enabled = v != ""
		}
		return nil
	}
}

func (conf *AppConfig) JsonFormat() string {
	if conf == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(conf, "", "  ")
	if err != nil {
		return ""
	}
	return string(data)
}
