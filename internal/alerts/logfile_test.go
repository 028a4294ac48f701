package alerts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polywhale/whalewatch/internal/monitor"
)

func sampleTrade() monitor.BigTrade {
	return monitor.BigTrade{
		Order: monitor.Order{
			TokenID: "tok1",
			Side:    monitor.SideBid,
			Price:   decimal.RequireFromString("0.45"),
			Size:    decimal.RequireFromString("1200"),
		},
		Value:    decimal.RequireFromString("540"),
		Outcome:  "Chiefs",
		Question: "Chiefs vs. Bills",
		Type:     monitor.TradeTypeLimitOrder,
	}
}

func TestLogFileAppendsLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.log")
	l := NewLogFile(path)
	defer l.Close()

	require.NoError(t, l.HandleAlert(sampleTrade()))
	require.NoError(t, l.HandleAlert(sampleTrade()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "BID")
	assert.Contains(t, lines[0], "Size: 1200")
	assert.Contains(t, lines[0], "Price: 0.45")
	assert.Contains(t, lines[0], "Value: 540.00")
	assert.Contains(t, lines[0], "Chiefs vs. Bills")
}

func TestLogFileOpenFailure(t *testing.T) {
	l := NewLogFile(filepath.Join(t.TempDir(), "missing-dir", "alerts.log"))
	assert.Error(t, l.HandleAlert(sampleTrade()))
}

func TestLogFileCloseWithoutOpen(t *testing.T) {
	l := NewLogFile(filepath.Join(t.TempDir(), "alerts.log"))
	assert.NoError(t, l.Close())
}

func TestConsoleHandleAlert(t *testing.T) {
	c := NewConsole()
	assert.Equal(t, "console", c.Name())
	assert.NoError(t, c.HandleAlert(sampleTrade()))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde...", truncate("abcdefgh", 5))
}
