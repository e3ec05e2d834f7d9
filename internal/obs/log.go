package obs

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	loggerOnce sync.Once
	logger     *logrus.Logger
)

// Logger returns the shared structured logger used across the service.
func Logger() *logrus.Logger {
	loggerOnce.Do(func() {
		logger = logrus.New()
		logger.SetOutput(os.Stdout)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "ts",
				logrus.FieldKeyMsg:  "msg",
			},
		})
	})
	return logger
}

// Configure sets the level and, when file is non-empty, tees output into a
// rotated log file.
func Configure(level, file string) error {
	l := Logger()
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return err
	}
	l.SetLevel(lvl)
	if strings.TrimSpace(file) != "" {
		l.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}))
	}
	return nil
}

// LogRequest emits a request_complete entry with common HTTP fields.
func LogRequest(fields logrus.Fields) {
	Logger().WithFields(fields).Info("request_complete")
}
