// Package main implements the hl7v2 CLI tool.
// It validates HL7 v2 message files, batch files and MLLP captures, and can
// print messages regenerated from their parsed form.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oarkflow/json"
	"gopkg.in/yaml.v3"

	hv "github.com/gofhir/hl7v2"
	"github.com/gofhir/hl7v2/engine"
	"github.com/gofhir/hl7v2/highlight"
	"github.com/gofhir/hl7v2/pkg/logger"
	"github.com/gofhir/hl7v2/rules"
	"github.com/gofhir/hl7v2/schema"
	"github.com/gofhir/hl7v2/stream"
)

const (
	version = "0.1.0"
	usage   = `hl7v2 - HL7 v2.x Message Validator

Usage:
  hl7v2 [options] <file>...
  hl7v2 [options] -              (read from stdin)
  cat messages.hl7 | hl7v2 -     (pipe input)

A file may hold one message, several concatenated messages, MLLP frames
or an FHS/BHS batch.

Examples:
  hl7v2 admit.hl7
  hl7v2 -rules adt-rules.yaml admit.hl7
  hl7v2 -output json results/*.hl7
  hl7v2 -strict -workers 8 batch.hl7
  hl7v2 -roundtrip admit.hl7
  hl7v2 -config hl7v2.yaml feed.hl7

Options:
`
)

// Exit codes.
const (
	exitOK      = 0
	exitInvalid = 1
	exitUsage   = 2
)

// OutputFormat specifies the output format.
type OutputFormat string

// Output format constants.
const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// Checks toggles individual schema checks. Nil leaves the engine default.
type Checks struct {
	DataTypes       *bool `yaml:"dataTypes"`
	Tables          *bool `yaml:"tables"`
	Lengths         *bool `yaml:"lengths"`
	UnknownSegments *bool `yaml:"unknownSegments"`
}

// Config holds CLI configuration. The yaml keys are accepted in a -config
// file; flags given on the command line take precedence.
type Config struct {
	Output        OutputFormat `yaml:"output"`
	Rules         string       `yaml:"rules"`
	SchemaDir     string       `yaml:"schemaDir"`
	SchemaVersion string       `yaml:"schemaVersion"`
	Strict        bool         `yaml:"strict"`
	Workers       int          `yaml:"workers"`
	MaxErrors     int          `yaml:"maxErrors"`
	LogLevel      string       `yaml:"logLevel"`
	Checks        Checks       `yaml:"checks"`

	RoundTrip   bool     `yaml:"-"`
	Quiet       bool     `yaml:"-"`
	Verbose     bool     `yaml:"-"`
	ShowVersion bool     `yaml:"-"`
	Files       []string `yaml:"-"`
}

// MessageOutput represents one validated message in JSON output
type MessageOutput struct {
	Source      string        `json:"source"`
	Index       int           `json:"index"`
	Line        int           `json:"line,omitempty"`
	MessageType string        `json:"messageType,omitempty"`
	ControlID   string        `json:"controlId,omitempty"`
	Valid       bool          `json:"valid"`
	Errors      int           `json:"errors"`
	Warnings    int           `json:"warnings"`
	Info        int           `json:"info"`
	Issues      []IssueOutput `json:"issues,omitempty"`
}

// IssueOutput represents a single issue in JSON output
type IssueOutput struct {
	Severity    string `json:"severity"`
	Code        string `json:"code"`
	Diagnostics string `json:"diagnostics"`
	Expression  string `json:"expression,omitempty"`
	Line        int    `json:"line,omitempty"`
	Rule        string `json:"rule,omitempty"`
	Text        string `json:"text,omitempty"`
}

func main() {
	config, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(exitOK)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitUsage)
	}

	if config.ShowVersion {
		fmt.Printf("hl7v2 v%s\n", version)
		os.Exit(exitOK)
	}

	os.Exit(run(config, os.Stdin, os.Stdout, os.Stderr))
}

func defaultConfig() *Config {
	return &Config{
		Output:   OutputText,
		LogLevel: "warn",
	}
}

func parseFlags(args []string, stderr io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("hl7v2", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		fl         = defaultConfig()
		output     string
		configPath string
	)

	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	fs.StringVar(&fl.Rules, "rules", "", "Custom rule set file (.yaml, .yml or .json)")
	fs.StringVar(&fl.SchemaDir, "schema", "", "Directory of schema documents replacing the built-in ones")
	fs.StringVar(&fl.SchemaVersion, "version", "", "Validate against this HL7 version instead of MSH.12")
	fs.StringVar(&output, "output", "text", "Output format: text, json")
	fs.BoolVar(&fl.Strict, "strict", false, "Treat warnings as errors")
	fs.BoolVar(&fl.RoundTrip, "roundtrip", false, "Print each message regenerated from its parsed form")
	fs.IntVar(&fl.Workers, "workers", 0, "Number of parallel workers (default: number of CPUs)")
	fs.IntVar(&fl.MaxErrors, "max-errors", 0, "Stop validating a message after this many errors (0 = no limit)")
	fs.StringVar(&fl.LogLevel, "log-level", "warn", "Engine log level: debug, info, warn, error, none")
	fs.BoolVar(&fl.Quiet, "quiet", false, "Only show errors and warnings")
	fs.BoolVar(&fl.Verbose, "verbose", false, "Show detailed output, including the text each issue points at")
	fs.BoolVar(&fl.ShowVersion, "v", false, "Show version")

	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	config := defaultConfig()
	if configPath != "" {
		if err := loadConfig(configPath, config); err != nil {
			return nil, err
		}
	}

	// Flags given explicitly override the file
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rules":
			config.Rules = fl.Rules
		case "schema":
			config.SchemaDir = fl.SchemaDir
		case "version":
			config.SchemaVersion = fl.SchemaVersion
		case "output":
			config.Output = OutputFormat(strings.ToLower(output))
		case "strict":
			config.Strict = fl.Strict
		case "workers":
			config.Workers = fl.Workers
		case "max-errors":
			config.MaxErrors = fl.MaxErrors
		case "log-level":
			config.LogLevel = fl.LogLevel
		}
	})
	config.RoundTrip = fl.RoundTrip
	config.Quiet = fl.Quiet
	config.Verbose = fl.Verbose
	config.ShowVersion = fl.ShowVersion
	config.Files = fs.Args()

	switch config.Output {
	case OutputText, OutputJSON:
	default:
		return nil, fmt.Errorf("unknown output format %q", config.Output)
	}

	if !config.ShowVersion && len(config.Files) == 0 {
		fs.Usage()
		return nil, flag.ErrHelp
	}
	return config, nil
}

func loadConfig(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// engineOptions converts the configuration to engine options.
func engineOptions(config *Config) []hv.Option {
	opts := []hv.Option{
		hv.WithStrictMode(config.Strict),
		hv.WithMaxErrors(config.MaxErrors),
		hv.WithWorkerCount(config.Workers),
		hv.WithSegmentTerminator("\r"),
	}
	if config.SchemaVersion != "" {
		opts = append(opts, hv.WithSchemaVersion(hv.Version(config.SchemaVersion)))
	}
	if c := config.Checks.DataTypes; c != nil {
		opts = append(opts, hv.WithDataTypes(*c))
	}
	if c := config.Checks.Tables; c != nil {
		opts = append(opts, hv.WithTables(*c))
	}
	if c := config.Checks.Lengths; c != nil {
		opts = append(opts, hv.WithLengths(*c))
	}
	if c := config.Checks.UnknownSegments; c != nil {
		opts = append(opts, hv.WithUnknownSegments(*c))
	}
	return opts
}

func newEngine(config *Config, stderr io.Writer) (*engine.Engine, error) {
	level, err := logger.ParseLevel(config.LogLevel)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(engineOptions(config)...)
	if err != nil {
		return nil, err
	}
	eng.SetLogger(logger.New(stderr, level))

	if config.SchemaDir != "" {
		dir := os.DirFS(config.SchemaDir)
		eng.SetSchemaRegistry(schema.NewRegistryWithLoader(func(v string) (*schema.Schema, error) {
			return schema.LoadFS(dir, ".", v)
		}))
	}
	return eng, nil
}

func run(config *Config, stdin io.Reader, stdout, stderr io.Writer) int {
	var rs *rules.RuleSet
	if config.Rules != "" {
		var err error
		if rs, err = rules.LoadFile(config.Rules); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
	}

	eng, err := newEngine(config, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: Failed to initialize engine: %v\n", err)
		return exitUsage
	}
	defer eng.Close()

	if !config.Quiet && !config.RoundTrip && config.Output == OutputText {
		fmt.Fprintf(stderr, "Processing %d input(s)...\n\n", len(config.Files))
	}

	start := time.Now()
	p := &processor{
		config: config,
		engine: eng,
		rules:  rs,
		stdout: stdout,
		stderr: stderr,
	}

	for _, file := range config.Files {
		if file == "-" {
			p.process(stdin, "stdin")
			continue
		}

		// Handle glob patterns
		matches, globErr := filepath.Glob(file)
		if globErr != nil {
			fmt.Fprintf(stderr, "Error with pattern '%s': %v\n", file, globErr)
			p.failed = true
			continue
		}
		if len(matches) == 0 {
			fmt.Fprintf(stderr, "No files match pattern: %s\n", file)
			p.failed = true
			continue
		}
		for _, match := range matches {
			p.processFile(match)
		}
	}

	if config.Output == OutputJSON && !config.RoundTrip {
		out, _ := json.MarshalIndent(p.outputs, "", "  ")
		fmt.Fprintln(stdout, string(out))
	}

	if !config.Quiet && !config.RoundTrip && config.Output == OutputText {
		fmt.Fprintf(stderr, "%d message(s), %d invalid, %s\n", p.messages, p.invalid, time.Since(start).Round(time.Millisecond))
	}

	if p.failed {
		return exitInvalid
	}
	return exitOK
}

type processor struct {
	config *Config
	engine *engine.Engine
	rules  *rules.RuleSet
	stdout io.Writer
	stderr io.Writer

	outputs  []MessageOutput
	messages int
	invalid  int
	failed   bool
}

func (p *processor) processFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(p.stderr, "Error reading %s: %v\n", path, err)
		p.failed = true
		return
	}
	defer f.Close()
	p.process(f, path)
}

func (p *processor) process(r io.Reader, name string) {
	if p.config.RoundTrip {
		p.roundTrip(r, name)
		return
	}

	for res := range p.engine.ValidateStream(context.Background(), r, p.rules) {
		if res.Error != nil {
			p.failed = true
			fmt.Fprintf(p.stderr, "%s: %v\n", name, res.Error)
			if res.Result != nil {
				res.Result.Release()
			}
			continue
		}

		out := buildOutput(name, res)
		p.messages++
		if !out.Valid {
			p.invalid++
			p.failed = true
		}

		switch p.config.Output {
		case OutputJSON:
			p.outputs = append(p.outputs, out)
		default:
			printTextResult(p.stdout, out, p.config)
		}
		res.Result.Release()
	}
}

// roundTrip prints every message of r regenerated from its parsed form.
func (p *processor) roundTrip(r io.Reader, name string) {
	splitter := stream.NewSplitter(r)
	for {
		m, err := splitter.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			fmt.Fprintf(p.stderr, "%s: %v\n", name, err)
			p.failed = true
			return
		}

		parsed, err := p.engine.Parse(string(m.Raw))
		if err != nil {
			fmt.Fprintf(p.stderr, "%s: message %d (line %d): %v\n", name, m.Index+1, m.Line, err)
			p.failed = true
			continue
		}
		out, err := p.engine.Generate(parsed.Message)
		if err != nil {
			fmt.Fprintf(p.stderr, "%s: message %d (line %d): %v\n", name, m.Index+1, m.Line, err)
			p.failed = true
			continue
		}
		fmt.Fprintln(p.stdout, strings.ReplaceAll(out, "\r", "\n"))
	}
}

func buildOutput(name string, res *stream.MessageResult) MessageOutput {
	result := res.Result
	out := MessageOutput{
		Source:      name,
		Index:       res.Index,
		Line:        res.Line,
		MessageType: result.MessageType,
		ControlID:   result.ControlID,
		Valid:       result.Valid,
		Errors:      result.ErrorCount(),
		Warnings:    result.WarningCount(),
		Info:        result.InfoCount(),
	}

	texts := make(map[int]string, len(result.Issues))
	raw := string(res.Raw)
	for _, span := range highlight.Overlay(raw, result.Issues) {
		texts[span.Issue] = span.Text(raw)
	}

	for i, iss := range result.Issues {
		line := iss.Line
		if line > 0 && res.Line > 0 {
			line += res.Line - 1
		}
		out.Issues = append(out.Issues, IssueOutput{
			Severity:    string(iss.Severity),
			Code:        string(iss.Code),
			Diagnostics: iss.Diagnostics,
			Expression:  iss.Expression,
			Line:        line,
			Rule:        iss.RuleName,
			Text:        texts[i],
		})
	}
	return out
}

func printTextResult(w io.Writer, out MessageOutput, config *Config) {
	status := "VALID"
	if !out.Valid {
		status = "INVALID"
	}

	label := fmt.Sprintf("%s #%d", out.Source, out.Index+1)
	if out.MessageType != "" {
		label += " " + out.MessageType
	}
	if out.ControlID != "" {
		label += " " + out.ControlID
	}

	fmt.Fprintf(w, "== %s ==\n", label)
	fmt.Fprintf(w, "Status: %s\n", status)
	fmt.Fprintf(w, "Errors: %d, Warnings: %d, Info: %d\n", out.Errors, out.Warnings, out.Info)

	if len(out.Issues) > 0 {
		fmt.Fprintln(w, "\nIssues:")
		for _, iss := range out.Issues {
			// Skip info in quiet mode
			if config.Quiet && iss.Severity == string(hv.SeverityInfo) {
				continue
			}

			location := ""
			if iss.Expression != "" {
				location = " @ " + iss.Expression
			}
			if iss.Line > 0 {
				location += fmt.Sprintf(" (line %d)", iss.Line)
			}
			rule := ""
			if iss.Rule != "" {
				rule = " rule " + iss.Rule + ":"
			}

			fmt.Fprintf(w, "  %s [%s]%s %s%s\n", getSeverityIcon(iss.Severity), iss.Code, rule, iss.Diagnostics, location)
			if config.Verbose && iss.Text != "" {
				fmt.Fprintf(w, "        > %s\n", iss.Text)
			}
		}
	}

	fmt.Fprintln(w)
}

func getSeverityIcon(severity string) string {
	switch hv.IssueSeverity(severity) {
	case hv.SeverityError:
		return "ERROR"
	case hv.SeverityWarning:
		return "WARN "
	case hv.SeverityInfo:
		return "INFO "
	default:
		return "     "
	}
}
