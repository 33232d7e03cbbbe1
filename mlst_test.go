package ftpc

import (
	"testing"
	"time"
)

func TestParseMLLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		line     string
		wantName string
		wantType string
		wantSize int64
		wantPerm string
		wantErr  bool
	}{
		{
			name:     "plain file",
			line:     "type=file;size=1037794;modify=20231214122200; report.pdf",
			wantName: "report.pdf",
			wantType: "file",
			wantSize: 1037794,
		},
		{
			name:     "directory with perm",
			line:     "type=dir;modify=20240110123000;perm=flcdmpe; pub",
			wantName: "pub",
			wantType: "dir",
			wantPerm: "flcdmpe",
		},
		{
			name:     "cdir entry",
			line:     "type=cdir;modify=20240110123000; .",
			wantName: ".",
			wantType: "cdir",
		},
		{
			name:     "pdir entry",
			line:     "type=pdir;modify=20240110123000; ..",
			wantName: "..",
			wantType: "pdir",
		},
		{
			name:     "fact keys are case-insensitive",
			line:     "Type=file;Size=99; a.txt",
			wantName: "a.txt",
			wantType: "file",
			wantSize: 99,
		},
		{
			name:     "unix symlink type",
			line:     "type=OS.unix=symlink;size=6; latest",
			wantName: "latest",
			wantType: "link",
		},
		{
			name:     "unrecognized type",
			line:     "type=weird; thing",
			wantName: "thing",
			wantType: "unknown",
		},
		{
			name:     "name with spaces",
			line:     "type=file;size=512; annual report.pdf",
			wantName: "annual report.pdf",
			wantType: "file",
			wantSize: 512,
		},
		{
			name:    "no name",
			line:    "type=file;size=512;",
			wantErr: true,
		},
		{
			name:    "no facts",
			line:    "just a bare name",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := parseMLLine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseMLLine(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if entry.Name != tt.wantName {
				t.Errorf("name = %q, want %q", entry.Name, tt.wantName)
			}
			if entry.Type != tt.wantType {
				t.Errorf("type = %q, want %q", entry.Type, tt.wantType)
			}
			if entry.Size != tt.wantSize {
				t.Errorf("size = %d, want %d", entry.Size, tt.wantSize)
			}
			if entry.Perm != tt.wantPerm {
				t.Errorf("perm = %q, want %q", entry.Perm, tt.wantPerm)
			}
			if entry.Facts == nil {
				t.Error("facts map is nil")
			}
		})
	}
}

func TestParseMLLine_Modify(t *testing.T) {
	t.Parallel()

	entry, err := parseMLLine("type=file;modify=20231214122233; a.txt")
	if err != nil {
		t.Fatalf("parseMLLine() error = %v", err)
	}
	want := time.Date(2023, time.December, 14, 12, 22, 33, 0, time.UTC)
	if !entry.ModTime.Equal(want) {
		t.Errorf("modtime = %v, want %v", entry.ModTime, want)
	}
}

func TestParseMLTimestamp(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "plain",
			input: "20231214122233",
			want:  time.Date(2023, time.December, 14, 12, 22, 33, 0, time.UTC),
		},
		{
			name:  "fractional seconds dropped",
			input: "20231214122233.541",
			want:  time.Date(2023, time.December, 14, 12, 22, 33, 0, time.UTC),
		},
		{
			name:    "too short",
			input:   "20231214",
			wantErr: true,
		},
		{
			name:    "not numeric",
			input:   "2023121412223x",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMLTimestamp(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseMLTimestamp(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && !got.Equal(tt.want) {
				t.Errorf("parseMLTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
