package platform

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Hook 按天切换日志文件
type Hook struct {
	mu       sync.Mutex
	writer   *os.File
	logPath  string
	fileName string
	fileDate string
}

func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	line, err := entry.Bytes()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	timer := entry.Time.Format("2006-01-02")
	//需要切换日志文件
	if h.writer == nil || h.fileDate != timer {
		if h.writer != nil {
			h.writer.Close()
		}
		writer, err := openLogFile(h.logPath, h.fileName, timer)
		if err != nil {
			return err
		}
		h.writer = writer
		h.fileDate = timer
	}
	_, err = h.writer.Write(line)
	return err
}

type LogFormatter struct {
}

func (m *LogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(b, "[%s] [%s] %s", timestamp, entry.Level, entry.Message)
	for k, v := range entry.Data {
		fmt.Fprintf(b, " %s=%v", k, v)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func openLogFile(logPath, fileName, date string) (*os.File, error) {
	if err := os.MkdirAll(logPath, os.ModePerm); err != nil {
		return nil, err
	}
	filename := fmt.Sprintf("%s/%s-%s.log", logPath, date, fileName)
	return os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
}

func newLogger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&LogFormatter{})
	logger.SetOutput(out)
	return logger
}

// Logger is the process-wide application logger. Until InitLogger runs it
// only writes to stderr.
var Logger = newLogger(os.Stderr)

// InitLogger adds the daily file hook to Logger and applies the configured level.
func InitLogger(cfg LogConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	Logger.SetLevel(level)

	timer := time.Now().Format("2006-01-02")
	writer, err := openLogFile(cfg.Path, cfg.Name, timer)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	Logger.AddHook(&Hook{
		writer:   writer,
		logPath:  cfg.Path,
		fileName: cfg.Name,
		fileDate: timer,
	})
	return nil
}
