// Package feed reads recorded exchange book-update events from flat files.
package feed

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/alanyoungcy/bookreplay/internal/domain"
)

// eventFields is the exact field count of one recorded event line:
// exchange_seq | exchange_ts_ms | local_ts_ms | kind | price | quantity | side
const eventFields = 7

// FileSource implements domain.EventSource over a pipe-delimited event file.
// Malformed lines are skipped with a diagnostic and counted; only the open
// call and genuine read failures produce errors.
type FileSource struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
	line    int
	skipped int
	logger  *slog.Logger
}

// NewFileSource opens the event file at path. A missing or unreadable file
// is reported here, once, so the caller can exit cleanly instead of
// discovering it mid-replay.
func NewFileSource(path string, logger *slog.Logger) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed: open %s: %w", path, err)
	}
	return &FileSource{
		path:    path,
		file:    f,
		scanner: bufio.NewScanner(f),
		logger:  logger.With(slog.String("component", "feed"), slog.String("file", path)),
	}, nil
}

// Next returns the next well-formed event, skipping blank and malformed
// lines. It returns io.EOF when the file is exhausted.
func (s *FileSource) Next() (domain.Event, error) {
	for s.scanner.Scan() {
		s.line++
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		ev, err := ParseEvent(line)
		if err != nil {
			s.skipped++
			s.logger.Warn("skipping malformed event line",
				slog.Int("line", s.line),
				slog.String("error", err.Error()),
			)
			continue
		}
		return ev, nil
	}
	if err := s.scanner.Err(); err != nil {
		return domain.Event{}, fmt.Errorf("feed: read %s: %w", s.path, err)
	}
	return domain.Event{}, io.EOF
}

// Skipped reports how many malformed lines were rejected so far.
func (s *FileSource) Skipped() int { return s.skipped }

// Close releases the underlying file.
func (s *FileSource) Close() error { return s.file.Close() }

// ParseEvent parses one pipe-delimited event line. All failures wrap
// domain.ErrMalformedEvent.
func ParseEvent(line string) (domain.Event, error) {
	fields := strings.Split(line, "|")
	if len(fields) != eventFields {
		return domain.Event{}, fmt.Errorf("%w: expected %d fields, got %d", domain.ErrMalformedEvent, eventFields, len(fields))
	}
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
	}

	seq, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: exchange_seq %q", domain.ErrMalformedEvent, fields[0])
	}
	exchangeTS, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: exchange_ts %q", domain.ErrMalformedEvent, fields[1])
	}
	localTS, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: local_ts %q", domain.ErrMalformedEvent, fields[2])
	}

	var kind domain.EventKind
	switch fields[3] {
	case string(domain.KindSnapshot):
		kind = domain.KindSnapshot
	case string(domain.KindUpdate):
		kind = domain.KindUpdate
	default:
		return domain.Event{}, fmt.Errorf("%w: event_type %q", domain.ErrMalformedEvent, fields[3])
	}

	price, err := strconv.ParseFloat(fields[4], 64)
	if err != nil || math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return domain.Event{}, fmt.Errorf("%w: price %q", domain.ErrMalformedEvent, fields[4])
	}
	quantity, err := strconv.ParseFloat(fields[5], 64)
	if err != nil || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return domain.Event{}, fmt.Errorf("%w: quantity %q", domain.ErrMalformedEvent, fields[5])
	}

	var side domain.Side
	switch fields[6] {
	case string(domain.SideBid):
		side = domain.SideBid
	case string(domain.SideAsk):
		side = domain.SideAsk
	default:
		return domain.Event{}, fmt.Errorf("%w: side %q", domain.ErrMalformedEvent, fields[6])
	}

	return domain.Event{
		Sequence:   seq,
		ExchangeTS: exchangeTS,
		LocalTS:    localTS,
		Kind:       kind,
		Price:      price,
		Quantity:   quantity,
		Side:       side,
	}, nil
}
