package feed

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bookreplay/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeEventFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent("42|1700000000123|1700000000150|UPDATE|27123.5|0.75|BID")
	require.NoError(t, err)

	assert.Equal(t, uint64(42), ev.Sequence)
	assert.Equal(t, int64(1700000000123), ev.ExchangeTS)
	assert.Equal(t, int64(1700000000150), ev.LocalTS)
	assert.Equal(t, domain.KindUpdate, ev.Kind)
	assert.Equal(t, 27123.5, ev.Price)
	assert.Equal(t, 0.75, ev.Quantity)
	assert.Equal(t, domain.SideBid, ev.Side)
}

func TestParseEventTrimsWhitespace(t *testing.T) {
	ev, err := ParseEvent(" 1 | 1000 | 1001 | SNAPSHOT | 100.0 | 2 | ASK ")
	require.NoError(t, err)
	assert.Equal(t, domain.KindSnapshot, ev.Kind)
	assert.Equal(t, domain.SideAsk, ev.Side)
}

func TestParseEventRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"too few fields":  "1|1000|UPDATE|100|2|BID",
		"too many fields": "1|1000|1001|UPDATE|100|2|BID|extra",
		"bad sequence":    "x|1000|1001|UPDATE|100|2|BID",
		"bad timestamp":   "1|abc|1001|UPDATE|100|2|BID",
		"bad kind":        "1|1000|1001|DELETE|100|2|BID",
		"bad price":       "1|1000|1001|UPDATE|nan@|2|BID",
		"zero price":      "1|1000|1001|UPDATE|0|2|BID",
		"bad quantity":    "1|1000|1001|UPDATE|100|two|BID",
		"bad side":        "1|1000|1001|UPDATE|100|2|LEFT",
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEvent(line)
			assert.ErrorIs(t, err, domain.ErrMalformedEvent)
		})
	}
}

func TestFileSourceSkipsMalformedLines(t *testing.T) {
	path := writeEventFile(t, ""+
		"1|1000|1001|UPDATE|100|5|BID\n"+
		"this is not an event\n"+
		"\n"+
		"2|1002|1003|UPDATE|101|3|ASK\n"+
		"3|1004|1005|UPDATE|bad|3|ASK|x\n")

	src, err := NewFileSource(path, discardLogger())
	require.NoError(t, err)
	defer src.Close()

	ev, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ev.Sequence)

	ev, err = src.Next()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), ev.Sequence)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, src.Skipped())
}

func TestFileSourceEmptyFile(t *testing.T) {
	path := writeEventFile(t, "")
	src, err := NewFileSource(path, discardLogger())
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, src.Skipped())
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.txt"), discardLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
