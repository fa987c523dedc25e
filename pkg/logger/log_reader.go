package logger

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"time"
)

// LogEntry represents a parsed log entry
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Category  string                 `json:"category"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// LogReader reads category log files written by MultiLogger
type LogReader struct {
	logsDir      string
	pollInterval time.Duration
}

// NewLogReader creates a new log reader
func NewLogReader(logsDir string) *LogReader {
	return &LogReader{
		logsDir:      logsDir,
		pollInterval: 200 * time.Millisecond,
	}
}

// GetLogPath returns the path to a category log file for a specific date
func (lr *LogReader) GetLogPath(category LogCategory, date time.Time) string {
	return categoryLogPath(lr.logsDir, category, date)
}

// ReadLogs reads the last limit entries of a category log file.
// A limit of zero or less returns every entry.
func (lr *LogReader) ReadLogs(category LogCategory, date time.Time, limit int) ([]LogEntry, error) {
	file, err := os.Open(lr.GetLogPath(category, date))
	if err != nil {
		if os.IsNotExist(err) {
			return []LogEntry{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	entries := make([]LogEntry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, parseEntry(line, category))
	}
	return entries, nil
}

// SearchLogs returns the last limit entries whose message, level or
// field values contain query (case-insensitive)
func (lr *LogReader) SearchLogs(category LogCategory, date time.Time, query string, limit int) ([]LogEntry, error) {
	entries, err := lr.ReadLogs(category, date, 0)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	filtered := []LogEntry{}
	for _, entry := range entries {
		if entryMatches(entry, query) {
			filtered = append(filtered, entry)
		}
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

// TailLogs sends entries appended to today's category log to entryChan
// until ctx is done. It waits for the file to appear if it does not exist yet.
func (lr *LogReader) TailLogs(ctx context.Context, category LogCategory, entryChan chan<- LogEntry) error {
	ticker := time.NewTicker(lr.pollInterval)
	defer ticker.Stop()

	var file *os.File
	for file == nil {
		f, err := os.Open(lr.GetLogPath(category, time.Now()))
		switch {
		case err == nil:
			file = f
		case !os.IsNotExist(err):
			return err
		default:
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return err
	}

	reader := bufio.NewReader(file)
	var partial string
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if errors.Is(err, io.EOF) {
			// Keep incomplete lines until the writer finishes them
			partial += line
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			continue
		}

		line = strings.TrimSpace(partial + line)
		partial = ""
		if line == "" {
			continue
		}

		select {
		case entryChan <- parseEntry(line, category):
		case <-ctx.Done():
			return nil
		}
	}
}

// parseEntry decodes a JSON log line; non-JSON lines become plain entries
func parseEntry(line string, category LogCategory) LogEntry {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{
			Level:    "info",
			Message:  line,
			Category: string(category),
		}
	}

	entry := LogEntry{Category: string(category)}
	for key, value := range raw {
		s, _ := value.(string)
		switch key {
		case "timestamp":
			entry.Timestamp = s
		case "level":
			entry.Level = s
		case "message":
			entry.Message = s
		case "category":
			entry.Category = s
		default:
			if entry.Fields == nil {
				entry.Fields = make(map[string]interface{})
			}
			entry.Fields[key] = value
		}
	}
	return entry
}

func entryMatches(entry LogEntry, query string) bool {
	if strings.Contains(strings.ToLower(entry.Message), query) ||
		strings.Contains(strings.ToLower(entry.Level), query) {
		return true
	}
	for _, v := range entry.Fields {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), query) {
			return true
		}
	}
	return false
}
