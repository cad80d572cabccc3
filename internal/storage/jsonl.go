package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dappkit/internal/model"
)

// JsonlStorage writes decoded events and decode errors to JSONL files.
// An empty errors path keeps failures next to the events file with an .errors suffix.
type JsonlStorage struct {
	eventsPath string
	errorsPath string
	mu         sync.Mutex
}

func NewJsonlStorage(eventsPath, errorsPath string) *JsonlStorage {
	if errorsPath == "" {
		errorsPath = eventsPath + ".errors"
	}
	return &JsonlStorage{eventsPath: eventsPath, errorsPath: errorsPath}
}

// PutEvents appends a batch of decoded events as JSON lines.
func (s *JsonlStorage) PutEvents(_ context.Context, events []model.DecodedEvent) error {
	records := make([]interface{}, 0, len(events))
	for _, event := range events {
		records = append(records, event)
	}
	return s.appendLines(s.eventsPath, records)
}

// PutDecodeErrors appends a batch of decode failures as JSON lines.
func (s *JsonlStorage) PutDecodeErrors(_ context.Context, failures []model.DecodeError) error {
	records := make([]interface{}, 0, len(failures))
	for _, failure := range failures {
		records = append(records, failure)
	}
	return s.appendLines(s.errorsPath, records)
}

// SaveAccountSnapshot appends one snapshot line to the events file.
func (s *JsonlStorage) SaveAccountSnapshot(_ context.Context, snapshot model.AccountSnapshot) error {
	return s.appendLines(s.eventsPath, []interface{}{snapshot})
}

func (s *JsonlStorage) appendLines(path string, records []interface{}) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
