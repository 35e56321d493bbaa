// Package errors defines the error taxonomy of the asset pipeline.
//
// Configuration errors are fatal at startup, transform errors point at the
// offending source file, filesystem errors carry the operation and path, and
// ordering errors report injector inputs that were not built yet. All types
// are meant to be inspected with errors.As after wrapping.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// NewConfigError creates a ConfigError for field.
func NewConfigError(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransformError reports malformed source content found by a transformer.
// Line and Column are 1-based; zero means unknown.
type TransformError struct {
	Task    string
	File    string
	Line    int
	Column  int
	Message string
	Cause   error
}

func (e *TransformError) Error() string {
	var b strings.Builder
	if e.Task != "" {
		b.WriteString(e.Task)
		b.WriteString(": ")
	}
	b.WriteString(e.File)
	if e.Line > 0 {
		fmt.Fprintf(&b, ":%d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&b, ":%d", e.Column)
		}
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *TransformError) Unwrap() error { return e.Cause }

// FSError reports a filesystem failure during a task.
type FSError struct {
	Op    string
	Path  string
	Cause error
}

func (e *FSError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Cause)
}

func (e *FSError) Unwrap() error { return e.Cause }

// NewFSError wraps cause, or returns nil if cause is nil.
func NewFSError(op, path string, cause error) error {
	if cause == nil {
		return nil
	}
	return &FSError{Op: op, Path: path, Cause: cause}
}

// OrderingError reports that a task ran before the artifacts it consumes
// were produced.
type OrderingError struct {
	Task    string
	Missing []string
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("%s: missing upstream artifacts (run build first): %s",
		e.Task, strings.Join(e.Missing, ", "))
}

// StepError wraps the failure of one step of a sequential run.
type StepError struct {
	Step  string
	Cause error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Cause)
}

func (e *StepError) Unwrap() error { return e.Cause }

// IsConfig reports whether err is, or wraps, a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// AsTransform returns the TransformError in err's chain, if any.
func AsTransform(err error) (*TransformError, bool) {
	var te *TransformError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// Entry is one recorded failure.
type Entry struct {
	Source    string
	Err       error
	Timestamp time.Time
}

// Collector keeps the most recent failure per source (a task or watch
// category) so that long-running processes can report current health.
type Collector struct {
	entries map[string]Entry
	mutex   sync.RWMutex
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{entries: make(map[string]Entry)}
}

// Record stores err for source. A nil err clears the source.
func (c *Collector) Record(source string, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err == nil {
		delete(c.entries, source)
		return
	}
	c.entries[source] = Entry{Source: source, Err: err, Timestamp: time.Now()}
}

// Entries returns a copy of the current failures.
func (c *Collector) Entries() []Entry {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out
}

// HasErrors returns true if any source is currently failing.
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries) > 0
}
