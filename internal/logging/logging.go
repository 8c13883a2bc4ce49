package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const envDebug = "TAGSTREAM_DEBUG"

var (
	logger *logrus.Logger
	once   sync.Once
)

// Get returns the process-wide logger. Logging is off unless TAGSTREAM_DEBUG=1,
// in which case a timestamped log file is written under ~/.tagstream/logs.
func Get() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()
		logger.SetOutput(io.Discard)

		if os.Getenv(envDebug) != "1" {
			return
		}

		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

		home, err := os.UserHomeDir()
		if err != nil {
			logger.SetOutput(os.Stderr)
			return
		}
		logsDir := filepath.Join(home, ".tagstream", "logs")
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			logger.SetOutput(os.Stderr)
			return
		}
		name := fmt.Sprintf("tagstream-%s.log", time.Now().Format("2006-01-02_15-04-05"))
		file, err := os.OpenFile(filepath.Join(logsDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger.SetOutput(os.Stderr)
			return
		}
		logger.SetOutput(file)
	})
	return logger
}
