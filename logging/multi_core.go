package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
)

var stdout = os.Stdout

// NewMultiCore tees entries to a console writer and a file writer.
// The file always receives JSON; the console gets the colored encoder in
// development mode.
//
// Parameters:
//   - level: minimum level for both outputs
//   - consoleWriter: usually zapcore.Lock(zapcore.AddSync(os.Stdout))
//   - fileWriter: usually NewFileWriterWithConfig(path, cfg)
//   - isDev: selects the colored console encoder
//
// The core does no redaction itself; Logger redacts fields before they reach it.
func NewMultiCore(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(NewEncoderConfig()),
		fileWriter,
		level,
	)

	var consoleEncoder zapcore.Encoder
	if isDev {
		consoleEncoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(NewEncoderConfig())
	}

	consoleCore := zapcore.NewCore(consoleEncoder, consoleWriter, level)

	return zapcore.NewTee(consoleCore, fileCore)
}
