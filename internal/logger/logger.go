package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"maktab/backend/internal/config"
)

// Options 日志记录器参数
type Options struct {
	Level       string // debug, info, warn, error
	Development bool   // 开发模式：控制台编码 + 错误堆栈
	LogFile     string // 日志文件路径，留空只输出到标准输出
	MaxSize     int    // 单个日志文件上限（MB）
	MaxBackups  int    // 保留的轮转文件数
	MaxAge      int    // 轮转文件保留天数
	Compress    bool   // 压缩轮转文件
}

// New 创建日志记录器
func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if opts.Development {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	var writeSyncer zapcore.WriteSyncer
	if opts.LogFile != "" {
		logDir := filepath.Dir(opts.LogFile)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, err
		}

		// 日志轮转
		lumberjackLogger := &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		}

		// 同时输出到文件和控制台
		writeSyncer = zapcore.NewMultiWriteSyncer(
			zapcore.AddSync(lumberjackLogger),
			zapcore.AddSync(os.Stdout),
		)
	} else {
		writeSyncer = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)

	if opts.Development {
		return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
	}
	return zap.New(core, zap.AddCaller()), nil
}

// FromConfig 根据应用配置创建日志记录器。
// 生产模式写入轮转日志文件，开发模式只输出到控制台。
func FromConfig(cfg config.LogConfig) *zap.Logger {
	opts := Options{
		Level:       cfg.Level,
		Development: cfg.Development,
	}
	if !cfg.Development {
		opts.LogFile = "logs/maktab.log"
		opts.MaxSize = 100 // MB
		opts.MaxBackups = 3
		opts.MaxAge = 28 // days
		opts.Compress = true
	}

	log, err := New(opts)
	if err != nil {
		return zap.NewNop()
	}
	return log
}
