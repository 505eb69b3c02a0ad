package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger   *zap.Logger
	logLevel = zap.NewAtomicLevel()
)

// Severity 日志级别，数值越小越详细
type Severity int8

const (
	SeverityTrace   Severity = -3
	SeverityVerbose Severity = -2
	SeverityDebug   Severity = Severity(zapcore.DebugLevel)
	SeverityInfo    Severity = Severity(zapcore.InfoLevel)
	SeverityWarn    Severity = Severity(zapcore.WarnLevel)
	SeverityError   Severity = Severity(zapcore.ErrorLevel)
)

func (s Severity) Level() zapcore.Level {
	return zapcore.Level(s)
}

func (s Severity) String() string {
	switch s {
	case SeverityTrace:
		return "trace"
	case SeverityVerbose:
		return "verbose"
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	}
	return zapcore.Level(s).String()
}

// ParseSeverity 解析配置中的日志级别
func ParseSeverity(text string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "trace":
		return SeverityTrace, nil
	case "verbose":
		return SeverityVerbose, nil
	case "debug":
		return SeverityDebug, nil
	case "", "info":
		return SeverityInfo, nil
	case "warn", "warning":
		return SeverityWarn, nil
	case "error":
		return SeverityError, nil
	}
	return SeverityInfo, fmt.Errorf("unknown log level %q", text)
}

func encodeSeverity(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(Severity(l).String())
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.LevelKey = "level"
	cfg.MessageKey = "msg"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = encodeSeverity
	return cfg
}

func rotatingWriter(name string) io.Writer {
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		panic(err)
	}
	// 使用lumberjack进行日志轮转
	return &lumberjack.Logger{
		Filename:   filepath.Join(logDir, name+".log"),
		MaxSize:    500, // megabytes
		MaxBackups: 7,
		MaxAge:     7, // days
		Compress:   true,
	}
}

func NewLogger(serviceName string) *zap.Logger {
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(rotatingWriter(serviceName)), logLevel)

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = encodeSeverity
	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), zap.InfoLevel)

	logger = zap.New(zapcore.NewTee(fileCore, consoleCore), zap.AddCaller())
	return logger
}

// NewBalanceLogger 余额日志单独落盘，不受全局级别影响
func NewBalanceLogger(serviceName string) *zap.Logger {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.AddSync(rotatingWriter(serviceName+"-balance")), zap.InfoLevel)
	return zap.New(core)
}

func SetLogLevel(level string) {
	sev, err := ParseSeverity(level)
	if err != nil {
		return
	}
	logLevel.SetLevel(sev.Level())
	if logger != nil {
		logger.Info("Log level set to", zap.String("level", sev.String()))
	}
}

func WithTrace(ctx context.Context, logger *zap.Logger) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// Logger 带 label 的分级日志
type Logger interface {
	Log(sev Severity, label, msg string, fields ...zap.Field)
}

// Labeled 基于 zap 的 Logger 实现
type Labeled struct {
	base *zap.Logger
}

func NewLabeled(base *zap.Logger) *Labeled {
	return &Labeled{base: base.WithOptions(zap.AddCallerSkip(1))}
}

func (l *Labeled) Log(sev Severity, label, msg string, fields ...zap.Field) {
	if ce := l.base.Check(sev.Level(), msg); ce != nil {
		ce.Write(append(fields, zap.String("label", label))...)
	}
}

// With 返回附加字段后的新实例
func (l *Labeled) With(fields ...zap.Field) *Labeled {
	return &Labeled{base: l.base.With(fields...)}
}
