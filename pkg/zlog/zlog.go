package zlog

import (
	"os"
	"path/filepath"
	"sync"

	"TubeSage/internal/config"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

// getLogger 懒加载全局 logger：同时输出到控制台与滚动日志文件
func getLogger() *zap.Logger {
	once.Do(func() {
		logPath := config.GetConfig().LogConfig.LogPath
		if logPath == "" {
			logPath = "logs/app.log"
		}
		_ = os.MkdirAll(filepath.Dir(logPath), 0o755)

		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
		consoleWriter := zapcore.AddSync(os.Stdout)

		core := zapcore.NewTee(
			zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), fileWriter, zapcore.InfoLevel),
			zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), consoleWriter, zapcore.InfoLevel),
		)
		logger = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	})
	return logger
}

func Debug(msg string, fields ...zap.Field) { getLogger().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { getLogger().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { getLogger().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { getLogger().Error(msg, fields...) }

// Fatal 记录后直接退出进程
func Fatal(msg string, fields ...zap.Field) { getLogger().Fatal(msg, fields...) }

// Sync 刷新缓冲日志，进程退出前调用
func Sync() { _ = getLogger().Sync() }
