package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"dappkit/internal/model"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer file.Close()
	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return lines
}

func TestJsonlStorageAppends(t *testing.T) {
	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "out", "events.jsonl")
	store := NewJsonlStorage(eventsPath, "")
	ctx := context.Background()

	events := []model.DecodedEvent{
		{NetworkID: 1, BlockNumber: 10, EventName: "Deposit", Args: []model.DecodedArg{{Name: "wad", Type: "uint256", Value: "5"}}},
		{NetworkID: 1, BlockNumber: 11, EventName: "Withdrawal"},
	}
	if err := store.PutEvents(ctx, events[:1]); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.PutEvents(ctx, events[1:]); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.PutEvents(ctx, nil); err != nil {
		t.Fatalf("empty put: %v", err)
	}

	lines := readLines(t, eventsPath)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var first model.DecodedEvent
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if wad, _ := first.Arg("wad"); wad != "5" {
		t.Fatalf("unexpected first event: %+v", first)
	}

	if err := store.PutDecodeErrors(ctx, []model.DecodeError{{NetworkID: 1, Error: "unknown event"}}); err != nil {
		t.Fatalf("put errors: %v", err)
	}
	if lines := readLines(t, eventsPath+".errors"); len(lines) != 1 {
		t.Fatalf("expected 1 error line, got %d", len(lines))
	}
}
