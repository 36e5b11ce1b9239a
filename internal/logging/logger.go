package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DebugLogName is the default debug log written by --debug
const DebugLogName = "f120-debug.log"

// NewDebugLogger returns a JSON logger appending to path at the given level.
// The returned close function syncs and closes the file. The terminal is
// never written to, so the log can run under the progress UI.
func NewDebugLogger(path string, level zapcore.Level) (*zap.Logger, func() error, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return zap.NewNop(), func() error { return nil }, fmt.Errorf("failed to open debug log %s: %w", path, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), zap.NewAtomicLevelAt(level))

	logger := zap.New(core, zap.AddCaller())
	closeFn := func() error {
		_ = logger.Sync()
		return file.Close()
	}
	return logger, closeFn, nil
}
