package testsupport

import (
	"context"
	"sync"

	"github.com/goliatone/go-pagecms/pkg/interfaces"
)

// LogEntry is one recorded log line with its merged fields.
type LogEntry struct {
	Level   string
	Message string
	Logger  string
	Fields  map[string]any
}

// LogRecorder is an interfaces.LoggerProvider that keeps every entry in
// memory so tests can assert on events such as snapshots.publish.completed.
type LogRecorder struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

func (r *LogRecorder) GetLogger(name string) interfaces.Logger {
	return &recordedLogger{recorder: r, name: name, fields: map[string]any{}}
}

// Entries returns a copy of everything recorded so far.
func (r *LogRecorder) Entries() []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LogEntry(nil), r.entries...)
}

// Find returns the first entry for message, or nil.
func (r *LogRecorder) Find(message string) *LogEntry {
	return r.FindWith(message, "", nil)
}

// FindWith returns the first entry for message whose field key equals value.
// An empty key matches any entry for message.
func (r *LogRecorder) FindWith(message, key string, value any) *LogEntry {
	for _, entry := range r.Entries() {
		if entry.Message != message {
			continue
		}
		if key != "" && entry.Fields[key] != value {
			continue
		}
		return &entry
	}
	return nil
}

func (r *LogRecorder) record(entry LogEntry) {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

type recordedLogger struct {
	recorder *LogRecorder
	name     string
	fields   map[string]any
}

var (
	_ interfaces.Logger       = (*recordedLogger)(nil)
	_ interfaces.FieldsLogger = (*recordedLogger)(nil)
)

func (l *recordedLogger) Trace(msg string, args ...any) { l.write("trace", msg, args) }
func (l *recordedLogger) Debug(msg string, args ...any) { l.write("debug", msg, args) }
func (l *recordedLogger) Info(msg string, args ...any)  { l.write("info", msg, args) }
func (l *recordedLogger) Warn(msg string, args ...any)  { l.write("warn", msg, args) }
func (l *recordedLogger) Error(msg string, args ...any) { l.write("error", msg, args) }
func (l *recordedLogger) Fatal(msg string, args ...any) { l.write("fatal", msg, args) }

func (l *recordedLogger) WithContext(context.Context) interfaces.Logger { return l }

func (l *recordedLogger) WithFields(fields map[string]any) interfaces.Logger {
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &recordedLogger{recorder: l.recorder, name: l.name, fields: merged}
}

func (l *recordedLogger) write(level, msg string, args []any) {
	fields := make(map[string]any, len(l.fields)+len(args)/2)
	for k, v := range l.fields {
		fields[k] = v
	}
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok && key != "" {
			fields[key] = args[i+1]
		}
	}
	l.recorder.record(LogEntry{Level: level, Message: msg, Logger: l.name, Fields: fields})
}
