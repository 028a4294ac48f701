package alerts

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/polywhale/whalewatch/internal/monitor"
)

// LogFile appends one line per big trade to a plain-text log file.
// The file is opened lazily and kept open across alerts.
type LogFile struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewLogFile creates a file-log consumer writing to path.
func NewLogFile(path string) *LogFile {
	return &LogFile{path: path}
}

func (l *LogFile) Name() string { return "file-log" }

func (l *LogFile) HandleAlert(trade monitor.BigTrade) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open alert log: %w", err)
		}
		l.f = f
	}

	line := fmt.Sprintf("%s | %s | Size: %s | Price: %s | Value: %s | Market: %s\n",
		time.Now().Format(time.RFC3339),
		trade.Side,
		trade.Size.String(),
		trade.Price.String(),
		trade.Value.StringFixed(2),
		trade.Question,
	)
	if _, err := l.f.WriteString(line); err != nil {
		return fmt.Errorf("write alert log: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *LogFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
