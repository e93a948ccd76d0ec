// Package logsink is the async log sink of spec.md §4.8, with
// New/Write/SetLevel/GetLevel/Flush/Close, synchronous when the queue
// capacity is 0 and otherwise backed by one consumer goroutine draining
// internal/bqueue. It is not a singleton: each New call returns an
// independent Sink, and the package holds no default instance. Grounded on original_source/code/log/log.cpp (day/line
// rotation, lazy file open, isAsync_ gate) and, for the exported call
// shape, on hexinfra-gorox's Logger interface
// (Log/Logln/Logf/Close in hemi/mix_logger.go).
package logsink

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Rainllll/MyWebServer/internal/bqueue"
)

// Level mirrors spec.md §4.8's four levels.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MaxLines is the source's approximate per-file line budget before a
// "-N" segment suffix is appended.
const MaxLines = 50000

// Sink is the log sink. The zero value is inert; use New.
type Sink struct {
	mu    sync.Mutex
	level Level

	dir    string
	suffix string

	file      *os.File
	today     int // YYYYMMDD of the currently open file
	lineCount int

	queue  *bqueue.Queue[string]
	async  bool
	wg     sync.WaitGroup
	closed bool
}

// New creates a Sink at the given level writing under dir with the given
// file suffix (e.g. ".log"). queueCapacity == 0 means synchronous
// writes; otherwise a dedicated consumer goroutine drains a bounded
// queue of that capacity.
func New(level Level, dir, suffix string, queueCapacity int) (*Sink, error) {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, err
	}
	s := &Sink{
		level:  level,
		dir:    dir,
		suffix: suffix,
	}
	if queueCapacity > 0 {
		s.async = true
		s.queue = bqueue.New[string](queueCapacity)
		s.wg.Add(1)
		go s.consume()
	}
	return s, nil
}

// SetLevel changes the minimum level that gets written.
func (s *Sink) SetLevel(level Level) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = level
}

// GetLevel returns the current minimum level.
func (s *Sink) GetLevel() Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Write formats and emits a log line at the given level if it meets the
// sink's current threshold. Best-effort: logging failures never panic or
// propagate, per spec.md §7.
func (s *Sink) Write(level Level, format string, args ...any) {
	s.mu.Lock()
	if level < s.level || s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	now := time.Now()
	line := fmt.Sprintf("%s [%s]: %s\n",
		now.Format("2006-01-02 15:04:05.000000"), level, fmt.Sprintf(format, args...))

	if s.async {
		// Bounded log queue under backpressure: fall back to a synchronous
		// write rather than blocking the caller's hot path (spec.md §9).
		if s.queue.Full() {
			s.writeLine(now, line)
			return
		}
		s.queue.PushBack(line)
		return
	}
	s.writeLine(now, line)
}

func (s *Sink) consume() {
	defer s.wg.Done()
	for {
		line, ok := s.queue.Pop()
		if !ok {
			return
		}
		s.writeLine(time.Now(), line)
	}
}

// writeLine opens/rotates the day file as needed and appends line,
// counting lines toward MaxLines for the "-N" segment suffix.
func (s *Sink) writeLine(now time.Time, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := now.Year()*10000 + int(now.Month())*100 + now.Day()
	if s.file == nil || today != s.today {
		s.rotate(now, today, 0)
	} else if s.lineCount > 0 && s.lineCount%MaxLines == 0 {
		s.rotate(now, today, s.lineCount/MaxLines)
	}
	if s.file == nil {
		return
	}
	if _, err := s.file.WriteString(line); err == nil {
		s.lineCount++
	}
}

func (s *Sink) rotate(now time.Time, today, segment int) {
	if s.file != nil {
		s.file.Close()
	}
	name := now.Format("2006_01_02") + s.suffix
	if segment > 0 {
		name = fmt.Sprintf("%s-%d%s", now.Format("2006_01_02"), segment, s.suffix)
	}
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		s.file = nil
		return
	}
	s.file = f
	s.today = today
	if segment == 0 {
		s.lineCount = 0
	}
}

// Flush wakes the consumer (for async sinks) and flushes the current
// file's OS buffers.
func (s *Sink) Flush() {
	if s.async {
		s.queue.Flush()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		s.file.Sync()
	}
}

// Close drains any pending async writes and releases the file handle.
func (s *Sink) Close() error {
	if s.async {
		for !s.queue.Empty() {
			s.queue.Flush()
		}
		s.queue.Close()
		s.wg.Wait()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
