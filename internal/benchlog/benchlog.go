// Package benchlog records benchmark runs of the tilebench command to a
// JSON session file.
package benchlog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Result captures one benchmarked workload
type Result struct {
	Name      string            `json:"name"`
	Status    string            `json:"status"` // "pass" or "fail"
	Runs      int               `json:"runs,omitempty"`
	Average   time.Duration     `json:"average,omitempty"`
	Min       time.Duration     `json:"min,omitempty"`
	Max       time.Duration     `json:"max,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Session manages the results of one tilebench invocation
type Session struct {
	mu      sync.Mutex
	results []Result
	file    string
}

// NewSession creates dir if needed and starts a session file named after
// the session and the current time. An empty dir gives a session that keeps
// results in memory only.
func NewSession(dir, name string) (*Session, error) {
	s := &Session{}
	if dir == "" {
		return s, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	s.file = filepath.Join(dir, fmt.Sprintf("%s_%s.json", name, timestamp))

	return s, s.flush()
}

// File returns the session file path, empty for in-memory sessions
func (s *Session) File() string {
	return s.file
}

// Record appends a result and writes the session to disk
func (s *Session) Record(r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	s.results = append(s.results, r)

	// Flush immediately so a crash keeps earlier results
	return s.flush()
}

// Pass records a successful workload from its per-run durations
func (s *Session) Pass(name string, params map[string]string, runs []time.Duration) error {
	r := Result{Name: name, Status: "pass", Runs: len(runs), Params: params}
	if len(runs) > 0 {
		r.Min, r.Max = runs[0], runs[0]
		var total time.Duration
		for _, d := range runs {
			total += d
			r.Min = min(r.Min, d)
			r.Max = max(r.Max, d)
		}
		r.Average = total / time.Duration(len(runs))
	}
	return s.Record(r)
}

// Fail records a failed workload
func (s *Session) Fail(name string, params map[string]string, err error) error {
	return s.Record(Result{Name: name, Status: "fail", Params: params, Error: err.Error()})
}

// Results returns a copy of the recorded results
func (s *Session) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.results...)
}

// flush writes results to disk
func (s *Session) flush() error {
	if s.file == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	return os.WriteFile(s.file, data, 0644)
}

// Load reads the results of a session file
func Load(file string) ([]Result, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	return results, nil
}

// Latest returns the most recently modified session file in dir
func Latest(dir string) (string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no log files found in %s", dir)
	}

	var latest string
	var latestTime time.Time
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latest = file
			latestTime = info.ModTime()
		}
	}

	return latest, nil
}

// PrintSummary writes a table of results
func PrintSummary(w io.Writer, results []Result) {
	fmt.Fprintln(w, strings.Repeat("=", 62))

	passed, failed := 0, 0
	for _, r := range results {
		switch r.Status {
		case "pass":
			passed++
			fmt.Fprintf(w, "✓ %-32s %4d runs  avg %12v\n", r.Name, r.Runs, r.Average)
		case "fail":
			failed++
			fmt.Fprintf(w, "✗ %-32s FAILED: %s\n", r.Name, r.Error)
		}
	}

	fmt.Fprintln(w, strings.Repeat("=", 62))
	fmt.Fprintf(w, "Total: %d | Passed: %d | Failed: %d\n", len(results), passed, failed)
}
