package logging

import (
	"io"
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"github.com/spf13/viper"
	"go.elastic.co/ecszap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Viper keys and recognized LOG_LEVEL values.
const (
	LogLevelKey = "LOG_LEVEL"

	LogLevelProd = "prod"
	LogLevelELK  = "elk"
)

// writeSyncer adapts an io.Writer without a meaningful Sync.
type writeSyncer struct {
	io.Writer
}

func (ws writeSyncer) Sync() error {
	return nil
}

// getWriteSyncer returns a size-rotated file sink.
func getWriteSyncer(logName string) zapcore.WriteSyncer {
	return writeSyncer{&lumberjack.Logger{
		Filename:   logName,
		MaxSize:    20, // MB
		MaxBackups: 5,
		MaxAge:     28, // days
		LocalTime:  true,
	}}
}

// SetupLogger builds the process logger: JSON to a rotated file, console
// encoding to stdout/stderr split by level. LOG_LEVEL=elk switches to an
// ECS-formatted stdout core for log shippers.
func SetupLogger(fileName string) *zap.Logger {
	if viper.GetString(LogLevelKey) == LogLevelELK {
		return setupLoggerELK()
	}

	highPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	lowPriority := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl < zapcore.ErrorLevel
	})

	logFile := getWriteSyncer(fileName)
	fileDebugging := zapcore.AddSync(logFile)
	fileErrors := zapcore.AddSync(logFile)

	consoleDebugging := zapcore.Lock(os.Stdout)
	consoleErrors := zapcore.Lock(os.Stderr)

	var cfg zap.Config
	if strings.EqualFold(viper.GetString(LogLevelKey), LogLevelProd) {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig = zap.NewProductionEncoderConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	consoleCfg := cfg
	consoleCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	fileEncoder := zapcore.NewJSONEncoder(cfg.EncoderConfig)
	consoleEncoder := zapcore.NewConsoleEncoder(consoleCfg.EncoderConfig)

	core := zapcore.NewTee(
		zapcore.NewCore(fileEncoder, fileErrors, highPriority),
		zapcore.NewCore(consoleEncoder, consoleErrors, highPriority),
		zapcore.NewCore(fileEncoder, fileDebugging, lowPriority),
		zapcore.NewCore(consoleEncoder, consoleDebugging, lowPriority),
	)

	return zap.New(core, zap.AddCaller())
}

func setupLoggerELK() *zap.Logger {
	encoderConfig := ecszap.EncoderConfig{
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   ecszap.FullCallerEncoder,
	}
	core := ecszap.NewCore(encoderConfig, os.Stdout, zap.DebugLevel)
	return zap.New(core, zap.AddCaller())
}
