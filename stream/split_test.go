package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/gofhir/hl7v2/message"
)

const (
	adt = "MSH|^~\\&|ADMIT|HOSP|LAB|HOSP|20240115103000||ADT^A01|MSG0001|P|2.5\rPID|1||12345^^^HOSP^MR||DOE^JOHN"
	oru = "MSH|^~\\&|LAB|HOSP|EMR|HOSP|20240115110000||ORU^R01|LAB0001|P|2.5\rOBX|1|NM|GLU||105"
)

func collect(t *testing.T, s *Splitter) []*Message {
	t.Helper()
	var out []*Message
	for {
		m, err := s.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		out = append(out, m)
	}
}

func TestSplitter(t *testing.T) {
	frame := func(s string) string {
		return string(rune(message.StartBlock)) + s + "\r" + string(rune(message.EndBlock)) + "\r"
	}

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single", adt, []string{adt}},
		{"concatenated", adt + "\r" + oru + "\r", []string{adt, oru}},
		{"newlines", strings.ReplaceAll(adt+"\r"+oru, "\r", "\r\n"), []string{adt, oru}},
		{"blank lines", adt + "\n\n\n" + oru + "\n", []string{adt, oru}},
		{"mllp frames", frame(adt) + frame(oru), []string{adt, oru}},
		{"empty", "", nil},
		{"stray segments", "PID|1\r" + adt, []string{"PID|1", adt}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collect(t, NewSplitter(strings.NewReader(tt.input)))
			if len(got) != len(tt.want) {
				t.Fatalf("got %d messages; want %d", len(got), len(tt.want))
			}
			for i, m := range got {
				if string(m.Raw) != tt.want[i]+"\r" {
					t.Errorf("message %d = %q; want %q", i, m.Raw, tt.want[i]+"\r")
				}
				if m.Index != i {
					t.Errorf("Index = %d; want %d", m.Index, i)
				}
				if m.ID == "" {
					t.Error("ID should be set")
				}
			}
		})
	}
}

func TestSplitter_Lines(t *testing.T) {
	got := collect(t, NewSplitter(strings.NewReader(adt+"\r\r"+oru)))
	if got[0].Line != 1 || got[1].Line != 4 {
		t.Errorf("Line = %d, %d; want 1, 4", got[0].Line, got[1].Line)
	}
}

func TestSplitter_Batches(t *testing.T) {
	input := strings.Join([]string{
		"FHS|^~\\&|LAB|HOSP|EMR|HOSP|20240115||||FILE01",
		"BHS|^~\\&|LAB|HOSP|EMR|HOSP|20240115||||BATCH01^X",
		adt,
		oru,
		"BTS|2",
		"BHS|^~\\&|LAB|HOSP|EMR|HOSP|20240115||||BATCH02",
		oru,
		"BTS|3",
		"FTS|2",
	}, "\r")

	s := NewSplitter(strings.NewReader(input))
	msgs := collect(t, s)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages; want 3", len(msgs))
	}

	batches := s.Batches()
	if len(batches) != 3 {
		t.Fatalf("got %d batches; want 3", len(batches))
	}

	file, first, second := batches[0], batches[1], batches[2]
	if file.Header != FileHeader || file.ControlID != "FILE01" || file.Count != 2 || !file.Balanced() {
		t.Errorf("file = %+v", file)
	}
	if first.ControlID != "BATCH01" || first.Count != 2 || !first.Balanced() {
		t.Errorf("first batch = %+v", first)
	}
	if second.Count != 1 || second.Declared != 3 || second.Balanced() {
		t.Errorf("second batch = %+v", second)
	}

	if msgs[0].Batch != first.ID || msgs[1].Batch != first.ID || msgs[2].Batch != second.ID {
		t.Error("messages not attributed to their batch")
	}
	if msgs[0].Line != 3 {
		t.Errorf("Line = %d; want 3", msgs[0].Line)
	}
}

func TestSplitter_MissingTrailer(t *testing.T) {
	s := NewSplitter(strings.NewReader("BHS|^~\\&|A\r" + adt))
	msgs := collect(t, s)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages; want 1", len(msgs))
	}
	b := s.Batches()[0]
	if b.Declared != -1 || !b.Balanced() {
		t.Errorf("batch = %+v; want undeclared and balanced", b)
	}
}

func TestBatchCountError(t *testing.T) {
	err := &BatchCountError{Batch: Batch{Header: BatchHeader, Line: 6, Declared: 3, Count: 1}}
	want := "BHS at line 6 declares 3 but contains 1"
	if err.Error() != want {
		t.Errorf("Error() = %q; want %q", err.Error(), want)
	}
}

func TestSplitter_LongSegment(t *testing.T) {
	long := adt + "\rOBX|1|ED|PDF||" + strings.Repeat("A", 200*1024)
	msgs := collect(t, NewSplitter(strings.NewReader(long)))
	if len(msgs) != 1 || len(msgs[0].Raw) != len(long)+1 {
		t.Errorf("long segment not kept whole")
	}
}
