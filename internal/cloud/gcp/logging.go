// Package gcp integrates the controller with Google Cloud: structured
// run logs to Cloud Logging, engine credentials from Secret Manager,
// and run status published to instance metadata.
package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"cloud.google.com/go/logging"
	"google.golang.org/api/option"
)

// LogSink is the minimal structured-log surface the controller needs.
type LogSink interface {
	Info(message string, fields map[string]interface{})
	Warning(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
	Close() error
}

// CloudLogger sends structured entries to Cloud Logging. Entries are
// buffered by the client library; Close flushes and releases the
// connection.
type CloudLogger struct {
	client *logging.Client
	logger *logging.Logger
}

// NewCloudLogger creates a Cloud Logging sink for one run. All entries
// carry the run ID as a common label so a run's logs can be queried as
// a unit.
func NewCloudLogger(ctx context.Context, projectID, logName, runID string, opts ...option.ClientOption) (*CloudLogger, error) {
	client, err := logging.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud logging client: %w", err)
	}

	logger := client.Logger(logName, logging.CommonLabels(map[string]string{
		"run_id":    runID,
		"component": "emergent",
	}))
	return &CloudLogger{client: client, logger: logger}, nil
}

func (cl *CloudLogger) log(severity logging.Severity, message string, fields map[string]interface{}) {
	payload := map[string]interface{}{"message": message}
	for k, v := range fields {
		payload[k] = v
	}
	cl.logger.Log(logging.Entry{
		Severity: severity,
		Payload:  payload,
	})
}

// Info writes an INFO entry.
func (cl *CloudLogger) Info(message string, fields map[string]interface{}) {
	cl.log(logging.Info, message, fields)
}

// Warning writes a WARNING entry.
func (cl *CloudLogger) Warning(message string, fields map[string]interface{}) {
	cl.log(logging.Warning, message, fields)
}

// Error writes an ERROR entry.
func (cl *CloudLogger) Error(message string, fields map[string]interface{}) {
	cl.log(logging.Error, message, fields)
}

// Close flushes buffered entries and closes the client.
func (cl *CloudLogger) Close() error {
	return cl.client.Close()
}

// FallbackLogger writes Cloud-Logging-shaped JSON lines to a local
// writer. It is used off GCP so local runs produce the same log shape.
type FallbackLogger struct {
	writer io.Writer
	runID  string
	mu     sync.Mutex
}

// NewFallbackLogger creates a local structured-JSON sink.
func NewFallbackLogger(writer io.Writer, runID string) *FallbackLogger {
	return &FallbackLogger{writer: writer, runID: runID}
}

type fallbackEntry struct {
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (fl *FallbackLogger) log(severity, message string, fields map[string]interface{}) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	entry := fallbackEntry{
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now().UTC(),
		RunID:     fl.runID,
		Fields:    fields,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(fl.writer, `{"severity":"ERROR","message":"failed to marshal log entry: %v"}`+"\n", err)
		return
	}
	fmt.Fprintf(fl.writer, "%s\n", data)
}

// Info writes an INFO entry.
func (fl *FallbackLogger) Info(message string, fields map[string]interface{}) {
	fl.log("INFO", message, fields)
}

// Warning writes a WARNING entry.
func (fl *FallbackLogger) Warning(message string, fields map[string]interface{}) {
	fl.log("WARNING", message, fields)
}

// Error writes an ERROR entry.
func (fl *FallbackLogger) Error(message string, fields map[string]interface{}) {
	fl.log("ERROR", message, fields)
}

// Close is a no-op; writes are synchronous.
func (fl *FallbackLogger) Close() error {
	return nil
}

var (
	_ LogSink = (*CloudLogger)(nil)
	_ LogSink = (*FallbackLogger)(nil)
)

// SinkWriter adapts a LogSink to io.Writer so the standard library
// logger can tee into it.
type SinkWriter struct {
	sink LogSink
}

// NewSinkWriter wraps a sink as a writer.
func NewSinkWriter(sink LogSink) *SinkWriter {
	return &SinkWriter{sink: sink}
}

// Write forwards one log line as an INFO entry.
func (w *SinkWriter) Write(p []byte) (int, error) {
	message := string(p)
	if n := len(message); n > 0 && message[n-1] == '\n' {
		message = message[:n-1]
	}
	w.sink.Info(message, nil)
	return len(p), nil
}
