package mlog

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 10
)

// zapLogger 基于zap的实现, 级别过滤由 level 控制, zap core 全部放行
type zapLogger struct {
	level Level
	sugar *zap.SugaredLogger
}

func newZapLogger(level Level, cores ...zapcore.Core) *zapLogger {
	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(2))
	return &zapLogger{level: level, sugar: l.Sugar()}
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000000")
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	return ec
}

func stdoutCore() zapcore.Core {
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stdout), zapcore.DebugLevel)
}

func newStdoutLogger(level Level) *zapLogger {
	return newZapLogger(level, stdoutCore())
}

func genLogName(logName string) string {
	if logName == "" {
		logName = "mlog"
	}
	return logName + ".log"
}

func newFileLogger(logpath, logName string, level Level, stdOut bool) (*zapLogger, error) {
	// 默认使用当前路径
	if len(logpath) == 0 {
		logpath = "."
	}
	if err := os.MkdirAll(logpath, 0755); err != nil {
		return nil, err
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logpath, genLogName(logName)),
		MaxSize:    defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		LocalTime:  true,
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(rotator), zapcore.DebugLevel),
	}
	if stdOut {
		cores = append(cores, stdoutCore())
	}
	return newZapLogger(level, cores...), nil
}

func (l *zapLogger) IsLevelEnabled(level Level) bool {
	return l.level >= level
}

func (l *zapLogger) Sync() error {
	return l.sugar.Sync()
}

func (l *zapLogger) Trace(v ...any) {
	if l.IsLevelEnabled(TraceLevel) {
		l.sugar.Debug(v...)
	}
}

func (l *zapLogger) Tracef(format string, v ...any) {
	if l.IsLevelEnabled(TraceLevel) {
		l.sugar.Debugf(format, v...)
	}
}

func (l *zapLogger) Debug(v ...any) {
	if l.IsLevelEnabled(DebugLevel) {
		l.sugar.Debug(v...)
	}
}

func (l *zapLogger) Debugf(format string, v ...any) {
	if l.IsLevelEnabled(DebugLevel) {
		l.sugar.Debugf(format, v...)
	}
}

func (l *zapLogger) Info(v ...any) {
	if l.IsLevelEnabled(InfoLevel) {
		l.sugar.Info(v...)
	}
}

func (l *zapLogger) Infof(format string, v ...any) {
	if l.IsLevelEnabled(InfoLevel) {
		l.sugar.Infof(format, v...)
	}
}

func (l *zapLogger) Notice(v ...any) {
	if l.IsLevelEnabled(NoticeLevel) {
		l.sugar.Info(v...)
	}
}

func (l *zapLogger) Noticef(format string, v ...any) {
	if l.IsLevelEnabled(NoticeLevel) {
		l.sugar.Infof(format, v...)
	}
}

func (l *zapLogger) Warn(v ...any) {
	if l.IsLevelEnabled(WarnLevel) {
		l.sugar.Warn(v...)
	}
}

func (l *zapLogger) Warnf(format string, v ...any) {
	if l.IsLevelEnabled(WarnLevel) {
		l.sugar.Warnf(format, v...)
	}
}

func (l *zapLogger) Error(v ...any) {
	if l.IsLevelEnabled(ErrorLevel) {
		l.sugar.Error(v...)
	}
}

func (l *zapLogger) Errorf(format string, v ...any) {
	if l.IsLevelEnabled(ErrorLevel) {
		l.sugar.Errorf(format, v...)
	}
}

func (l *zapLogger) Fatal(v ...any) {
	l.sugar.Fatal(v...)
}

func (l *zapLogger) Fatalf(format string, v ...any) {
	l.sugar.Fatalf(format, v...)
}
