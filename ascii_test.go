package ftpc

import (
	"io"
	"strings"
	"testing"
)

func TestCRLFReader(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare LF expanded",
			input: "one\ntwo\nthree\n",
			want:  "one\r\ntwo\r\nthree\r\n",
		},
		{
			name:  "existing CRLF untouched",
			input: "one\r\ntwo\r\n",
			want:  "one\r\ntwo\r\n",
		},
		{
			name:  "mixed endings",
			input: "one\r\ntwo\nthree",
			want:  "one\r\ntwo\r\nthree",
		},
		{
			name:  "lone CR is data",
			input: "col1\rcol2\n",
			want:  "col1\rcol2\r\n",
		},
		{
			name:  "no trailing newline",
			input: "no newline",
			want:  "no newline",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newCRLFReader(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("crlfReader(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLFReader(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "CRLF collapsed",
			input: "one\r\ntwo\r\nthree\r\n",
			want:  "one\ntwo\nthree\n",
		},
		{
			name:  "bare LF untouched",
			input: "one\ntwo\n",
			want:  "one\ntwo\n",
		},
		{
			name:  "lone CR is data",
			input: "col1\rcol2\r\n",
			want:  "col1\rcol2\n",
		},
		{
			name:  "trailing CR at EOF kept",
			input: "data\r",
			want:  "data\r",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newLFReader(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("lfReader(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// A one-byte destination buffer forces every state transition of the
// translators to straddle a Read call.
func TestASCIIReaders_TinyBuffer(t *testing.T) {
	t.Parallel()

	readByByte := func(r io.Reader) string {
		var out []byte
		buf := make([]byte, 1)
		for {
			n, err := r.Read(buf)
			out = append(out, buf[:n]...)
			if err != nil {
				return string(out)
			}
		}
	}

	if got := readByByte(newCRLFReader(strings.NewReader("a\nb\r\nc"))); got != "a\r\nb\r\nc" {
		t.Errorf("crlfReader byte-wise = %q, want %q", got, "a\r\nb\r\nc")
	}
	if got := readByByte(newLFReader(strings.NewReader("a\r\nb\rc\n"))); got != "a\nb\rc\n" {
		t.Errorf("lfReader byte-wise = %q, want %q", got, "a\nb\rc\n")
	}
}

func TestASCIIRoundTrip(t *testing.T) {
	t.Parallel()

	local := "line one\nline two\n\nlast"
	wire, err := io.ReadAll(newCRLFReader(strings.NewReader(local)))
	if err != nil {
		t.Fatalf("upload translation error = %v", err)
	}
	back, err := io.ReadAll(newLFReader(strings.NewReader(string(wire))))
	if err != nil {
		t.Fatalf("download translation error = %v", err)
	}
	if string(back) != local {
		t.Errorf("round trip = %q, want %q", back, local)
	}
}
