package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oarkflow/json"
)

const (
	admit = "MSH|^~\\&|ADMIT|HOSP|LAB|HOSP|20240115103000||ADT^A01^ADT_A01|MSG0001|P|2.5\r" +
		"EVN|A01|20240115103000\r" +
		"PID|1||12345^^^HOSP^MR||DOE^JOHN^A||19800101|M\r" +
		"PV1|1|I|WARD^101^A"

	rulesYAML = `
name: adt-checks
rules:
  - name: sex-female
    targetPath: PID.8
    condition: equals
    value: F
    severity: error
`
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestParseFlags(t *testing.T) {
	config, err := parseFlags([]string{"-strict", "-output", "JSON", "-workers", "3", "a.hl7", "b.hl7"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if !config.Strict || config.Output != OutputJSON || config.Workers != 3 {
		t.Errorf("config = %+v", config)
	}
	if strings.Join(config.Files, ",") != "a.hl7,b.hl7" {
		t.Errorf("Files = %v", config.Files)
	}
	if config.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want warn", config.LogLevel)
	}
}

func TestParseFlags_ConfigFile(t *testing.T) {
	path := writeFile(t, "hl7v2.yaml", `
output: json
strict: true
workers: 2
rules: site-rules.yaml
checks:
  tables: false
`)

	config, err := parseFlags([]string{"-config", path, "-workers", "6", "msg.hl7"}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	if config.Output != OutputJSON || !config.Strict || config.Rules != "site-rules.yaml" {
		t.Errorf("config file values not applied: %+v", config)
	}
	if config.Workers != 6 {
		t.Errorf("Workers = %d; want flag value 6", config.Workers)
	}
	if config.Checks.Tables == nil || *config.Checks.Tables {
		t.Error("checks.tables should be false")
	}
	if len(engineOptions(config)) != 5 {
		t.Errorf("engineOptions() = %d options; want 5", len(engineOptions(config)))
	}
}

func TestParseFlags_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad output", []string{"-output", "xml", "a.hl7"}},
		{"no files", []string{"-strict"}},
		{"missing config", []string{"-config", "/nonexistent/hl7v2.yaml", "a.hl7"}},
		{"unknown flag", []string{"-nope", "a.hl7"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseFlags(tt.args, io.Discard); err == nil {
				t.Error("parseFlags() expected error")
			}
		})
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	config, err := parseFlags(args, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags() error = %v", err)
	}
	var stdout, stderr bytes.Buffer
	code := run(config, strings.NewReader(""), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Valid(t *testing.T) {
	path := writeFile(t, "admit.hl7", admit)

	code, out, _ := runCLI(t, path)
	if code != exitOK {
		t.Errorf("exit code = %d; want %d", code, exitOK)
	}
	if !strings.Contains(out, "Status: VALID") || !strings.Contains(out, "ADT^A01 MSG0001") {
		t.Errorf("output = %q", out)
	}
}

func TestRun_RulesAndVerbose(t *testing.T) {
	path := writeFile(t, "admit.hl7", admit)
	rulesPath := writeFile(t, "rules.yaml", rulesYAML)

	code, out, _ := runCLI(t, "-rules", rulesPath, "-verbose", path)
	if code != exitInvalid {
		t.Errorf("exit code = %d; want %d", code, exitInvalid)
	}
	if !strings.Contains(out, "rule sex-female:") {
		t.Errorf("output missing rule issue: %q", out)
	}
	if !strings.Contains(out, "> M\n") {
		t.Errorf("verbose output missing field text: %q", out)
	}
}

func TestRun_JSONBatch(t *testing.T) {
	bad := strings.Replace(admit, "|DOE^JOHN^A|", "||", 1)
	batch := "BHS|^~\\&|ADMIT|HOSP\n" + admit + "\n" + bad + "\nBTS|2\n"
	path := writeFile(t, "batch.hl7", batch)

	code, out, _ := runCLI(t, "-output", "json", path)
	if code != exitInvalid {
		t.Errorf("exit code = %d; want %d", code, exitInvalid)
	}

	var outputs []MessageOutput
	if err := json.Unmarshal([]byte(out), &outputs); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(outputs) != 2 {
		t.Fatalf("got %d messages; want 2", len(outputs))
	}
	if !outputs[0].Valid || outputs[1].Valid {
		t.Errorf("Valid = %v, %v; want true, false", outputs[0].Valid, outputs[1].Valid)
	}

	iss := outputs[1].Issues[0]
	if iss.Code != "required" || iss.Expression != "PID.5" {
		t.Errorf("issue = %+v; want required PID.5", iss)
	}
	// PID is line 3 of the message, which starts on line 6 of the file
	if iss.Line != 8 || outputs[1].Line != 6 {
		t.Errorf("issue line = %d, message line = %d; want 8, 6", iss.Line, outputs[1].Line)
	}
}

func TestRun_RoundTrip(t *testing.T) {
	path := writeFile(t, "admit.hl7", "\x0b"+admit+"\r\x1c\r")

	code, out, _ := runCLI(t, "-roundtrip", path)
	if code != exitOK {
		t.Errorf("exit code = %d; want %d", code, exitOK)
	}
	if want := strings.ReplaceAll(admit, "\r", "\n") + "\n"; out != want {
		t.Errorf("output = %q; want %q", out, want)
	}
}

func TestRun_MissingFile(t *testing.T) {
	code, _, stderr := runCLI(t, filepath.Join(t.TempDir(), "missing.hl7"))
	if code != exitInvalid {
		t.Errorf("exit code = %d; want %d", code, exitInvalid)
	}
	if !strings.Contains(stderr, "No files match pattern") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestRun_BadRules(t *testing.T) {
	path := writeFile(t, "admit.hl7", admit)
	code, _, _ := runCLI(t, "-rules", filepath.Join(t.TempDir(), "none.yaml"), path)
	if code != exitUsage {
		t.Errorf("exit code = %d; want %d", code, exitUsage)
	}
}

func TestGetSeverityIcon(t *testing.T) {
	if got := getSeverityIcon("error"); got != "ERROR" {
		t.Errorf("getSeverityIcon(error) = %q", got)
	}
	if got := getSeverityIcon("other"); got != "     " {
		t.Errorf("getSeverityIcon(other) = %q", got)
	}
}
