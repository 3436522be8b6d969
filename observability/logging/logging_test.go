package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupEmitsStructuredJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Setup("cardd", "test", Options{Level: "debug", Output: &buf})
	logger.Debug("escrow settled",
		slog.String("escrow", "E1"),
		slog.String("dsn", "postgres://card:s3cret@db:5432/journal"),
		slog.String("headers", "api-key=abc"))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for key, want := range map[string]string{
		"service":  "cardd",
		"env":      "test",
		"severity": "DEBUG",
		"message":  "escrow settled",
		"escrow":   "E1",
		"dsn":      "postgres://card:" + RedactedValue + "@db:5432/journal",
		"headers":  RedactedValue,
	} {
		if line[key] != want {
			t.Fatalf("%s: want %q, got %v", key, want, line[key])
		}
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("missing timestamp in %v", line)
	}
}

func TestSetupFiltersBelowLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Setup("cardd", "", Options{Level: "warn", Output: &buf})
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestSetupWritesRotatedFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "card.log")
	var buf bytes.Buffer
	logger := Setup("cardd", "", Options{File: path, Output: &buf})
	logger.Info("persisted")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "persisted") {
		t.Fatalf("log file missing line: %q", raw)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestRedactDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://card:s3cret@db:5432/journal?sslmode=disable":     "postgres://card:" + RedactedValue + "@db:5432/journal?sslmode=disable",
		"postgres://card:p@ss@db/journal":                            "postgres://card:" + RedactedValue + "@db/journal",
		"postgres://card@db/journal?password=s3cret&sslmode=require": "postgres://card@db/journal?password=" + RedactedValue + "&sslmode=require",
		"host=db user=card password=s3cret dbname=journal":           "host=db user=card password=" + RedactedValue + " dbname=journal",
		"host=db password='two words' dbname=journal":                "host=db password=" + RedactedValue + " dbname=journal",
		"file:card-journal.db?cache=shared":                          "file:card-journal.db?cache=shared",
		"":                                                           "",
	}
	for raw, want := range cases {
		if got := RedactDSN(raw); got != want {
			t.Fatalf("RedactDSN(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestMaskField(t *testing.T) {
	if got := MaskField("escrow", "E1").Value.String(); got != "E1" {
		t.Fatalf("public key masked: %q", got)
	}
	if got := MaskField(" Password ", "hunter2").Value.String(); got != RedactedValue {
		t.Fatalf("password not masked: %q", got)
	}
	if got := MaskField("secret", " ").Value.String(); got != " " {
		t.Fatalf("blank value should pass through, got %q", got)
	}
	if MaskValue("  ") != "  " || MaskValue("x") != RedactedValue {
		t.Fatalf("unexpected MaskValue behaviour")
	}
	if !IsCredential("JOURNAL_DSN") || IsCredential("reference") {
		t.Fatalf("unexpected credential classification")
	}
}
