package audit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecordFormat(t *testing.T) {
	dir := t.TempDir()
	log := NewLog(dir)

	if err := log.Record("0_Alice", 3, "the prompt", "the response"); err != nil {
		t.Fatalf("record: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "0_Alice_history.txt"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	sep := strings.Repeat("-", 80)
	want := "\n--- Turn 3 ---\nPROMPT:\nthe prompt\n" + sep + "\n\nRESPONSE:\nthe response\n" + sep + "\n"
	if string(data) != want {
		t.Errorf("unexpected section format:\n%q", string(data))
	}
}

func TestRecordAppends(t *testing.T) {
	dir := t.TempDir()
	log := NewLog(dir)

	if err := log.Record("0_Alice", 1, "p1", "r1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := log.Record("0_Alice", 2, "p2", "r2"); err != nil {
		t.Fatalf("record: %v", err)
	}

	data, err := os.ReadFile(log.Path("0_Alice"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)

	first := strings.Index(text, "--- Turn 1 ---")
	second := strings.Index(text, "--- Turn 2 ---")
	if first == -1 || second == -1 || second < first {
		t.Errorf("expected turn sections in append order, got:\n%s", text)
	}
}

func TestRecordError(t *testing.T) {
	dir := t.TempDir()
	log := NewLog(dir)

	if err := log.RecordError("1_Bob", 5, "p", errors.New("exit status 1")); err != nil {
		t.Fatalf("record error: %v", err)
	}

	data, err := os.ReadFile(log.Path("1_Bob"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "RESPONSE:\nERROR: exit status 1") {
		t.Errorf("expected error recorded as response, got:\n%s", string(data))
	}
}

func TestPerPlayerFiles(t *testing.T) {
	dir := t.TempDir()
	log := NewLog(dir)

	log.Record("0_Alice", 1, "p", "r")
	log.Record("1_Bob", 1, "p", "r")

	if log.Path("0_Alice") == log.Path("1_Bob") {
		t.Error("players must not share an audit file")
	}
	if _, err := os.Stat(log.Path("1_Bob")); err != nil {
		t.Errorf("expected Bob's file: %v", err)
	}
}
