package message

import "testing"

func TestUnescape(t *testing.T) {
	d := DefaultDelimiters
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a\\F\\b", "a|b"},
		{"\\S\\\\T\\\\R\\\\E\\", "^&~\\"},
		{"line\\.br\\two", "line\ntwo"},
		{"\\X414243\\", "ABC"},
		{"\\Xzz\\", "\\Xzz\\"},
		{"\\H\\bold\\N\\", "\\H\\bold\\N\\"},
		{"dangling\\", "dangling\\"},
	}
	for _, tt := range tests {
		if got := Unescape(tt.in, d); got != tt.want {
			t.Errorf("Unescape(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestEscape(t *testing.T) {
	d := DefaultDelimiters
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a|b", "a\\F\\b"},
		{"^&~\\", "\\S\\\\T\\\\R\\\\E\\"},
		{"one\ntwo", "one\\.br\\two"},
		{"cr\r", "cr\\X0D\\"},
	}
	for _, tt := range tests {
		got := Escape(tt.in, d)
		if got != tt.want {
			t.Errorf("Escape(%q) = %q; want %q", tt.in, got, tt.want)
		}
		if back := Unescape(got, d); back != tt.in {
			t.Errorf("Unescape(Escape(%q)) = %q", tt.in, back)
		}
	}
}

func TestEscape_ParsesAsText(t *testing.T) {
	d := DefaultDelimiters
	v := ParseValue(Escape("DOE^JOHN|X~Y&Z", d), d)
	if v.Kind() != Text {
		t.Errorf("escaped value kind = %v; want text", v.Kind())
	}
}
