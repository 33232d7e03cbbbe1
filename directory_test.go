package ftpc

import (
	"testing"
	"time"
)

func TestUnixParser(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		line       string
		wantName   string
		wantType   string
		wantSize   int64
		wantPerm   string
		wantTarget string
		wantOK     bool
	}{
		{
			name:     "file with year",
			line:     "-rw-r--r--  1 ftp  ftp  18430 Mar  3  2024 notes.txt",
			wantName: "notes.txt",
			wantType: "file",
			wantSize: 18430,
			wantPerm: "-rw-r--r--",
			wantOK:   true,
		},
		{
			name:     "directory",
			line:     "drwxr-xr-x  2 ftp  ftp   4096 Jan 10  2024 pub",
			wantName: "pub",
			wantType: "dir",
			wantSize: 4096,
			wantPerm: "drwxr-xr-x",
			wantOK:   true,
		},
		{
			name:       "symlink with target",
			line:       "lrwxrwxrwx  1 ftp  ftp      6 Mar  3  2024 latest -> v2.1.0",
			wantName:   "latest",
			wantType:   "link",
			wantSize:   6,
			wantPerm:   "lrwxrwxrwx",
			wantTarget: "v2.1.0",
			wantOK:     true,
		},
		{
			name:     "eight fields without group column",
			line:     "-rw-r--r--  1 ftp  18430 Mar  3  2024 notes.txt",
			wantName: "notes.txt",
			wantType: "file",
			wantSize: 18430,
			wantPerm: "-rw-r--r--",
			wantOK:   true,
		},
		{
			name:     "name with spaces",
			line:     "-rw-r--r--  1 ftp  ftp  512 Jun 30  2023 annual report.pdf",
			wantName: "annual report.pdf",
			wantType: "file",
			wantSize: 512,
			wantPerm: "-rw-r--r--",
			wantOK:   true,
		},
		{
			name:   "too few fields",
			line:   "-rw-r--r-- 1 ftp 512",
			wantOK: false,
		},
		{
			name:   "not a mode string",
			line:   "total 24 something else entirely here now ok",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := unixParser{}.Parse(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if !ok {
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
			if entry.Target != tt.wantTarget {
				t.Errorf("target = %q, want %q", entry.Target, tt.wantTarget)
			}
			if entry.Raw != tt.line {
				t.Errorf("raw = %q, want the input line", entry.Raw)
			}
		})
	}
}

func TestParseUnixTime(t *testing.T) {
	t.Parallel()

	t.Run("explicit year", func(t *testing.T) {
		got := parseUnixTime("Jan", "10", "2024")
		want := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("parseUnixTime() = %v, want %v", got, want)
		}
	})

	t.Run("clock resolves to a recent date", func(t *testing.T) {
		got := parseUnixTime("Mar", "3", "16:45")
		if got.Month() != time.March || got.Day() != 3 || got.Hour() != 16 || got.Minute() != 45 {
			t.Fatalf("parseUnixTime() = %v, want Mar 3 16:45", got)
		}
		now := time.Now().UTC()
		if got.After(now) {
			t.Errorf("parseUnixTime() = %v is in the future", got)
		}
		if got.Year() != now.Year() && got.Year() != now.Year()-1 {
			t.Errorf("parseUnixTime() year = %d, want %d or %d", got.Year(), now.Year(), now.Year()-1)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		for _, args := range [][3]string{
			{"Xxx", "10", "2024"},
			{"Jan", "40", "2024"},
			{"Jan", "10", "2x:45"},
			{"Jan", "10", "garbage"},
		} {
			if got := parseUnixTime(args[0], args[1], args[2]); !got.IsZero() {
				t.Errorf("parseUnixTime(%q, %q, %q) = %v, want zero", args[0], args[1], args[2], got)
			}
		}
	})
}

func TestDOSParser(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		line     string
		wantName string
		wantType string
		wantSize int64
		wantTime time.Time
		wantOK   bool
	}{
		{
			name:     "file",
			line:     "12-14-23  12:22PM           1037794 report.pdf",
			wantName: "report.pdf",
			wantType: "file",
			wantSize: 1037794,
			wantTime: time.Date(2023, time.December, 14, 12, 22, 0, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:     "directory",
			line:     "09-24-24  10:30AM       <DIR>       logs",
			wantName: "logs",
			wantType: "dir",
			wantTime: time.Date(2024, time.September, 24, 10, 30, 0, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:     "four digit year",
			line:     "01-02-2024  08:05AM              99 a.txt",
			wantName: "a.txt",
			wantType: "file",
			wantSize: 99,
			wantTime: time.Date(2024, time.January, 2, 8, 5, 0, 0, time.UTC),
			wantOK:   true,
		},
		{
			name:   "unix line rejected",
			line:   "-rw-r--r--  1 ftp  ftp  18430 Mar  3  2024 notes.txt",
			wantOK: false,
		},
		{
			name:   "size not numeric",
			line:   "12-14-23  12:22PM  big report.pdf",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := dosParser{}.Parse(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if !ok {
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
			if !entry.ModTime.Equal(tt.wantTime) {
				t.Errorf("modtime = %v, want %v", entry.ModTime, tt.wantTime)
			}
		})
	}
}

func TestEPLFParser(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		line     string
		wantName string
		wantType string
		wantSize int64
		wantTime time.Time
		wantOK   bool
	}{
		{
			name:     "file with size and mtime",
			line:     "+i8388621.48594,m825718503,r,s280,\tdjb.html",
			wantName: "djb.html",
			wantType: "file",
			wantSize: 280,
			wantTime: time.Unix(825718503, 0).UTC(),
			wantOK:   true,
		},
		{
			name:     "directory",
			line:     "+i8388621.50690,m824255907,/,\t514",
			wantName: "514",
			wantType: "dir",
			wantTime: time.Unix(824255907, 0).UTC(),
			wantOK:   true,
		},
		{
			name:   "no plus prefix",
			line:   "i8388621.48594,m825718503,r,s280,\tdjb.html",
			wantOK: false,
		},
		{
			name:   "no separator",
			line:   "+i8388621.48594,m825718503,r,s280,",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, ok := eplfParser{}.Parse(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if !ok {
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
			if !entry.ModTime.Equal(tt.wantTime) {
				t.Errorf("modtime = %v, want %v", entry.ModTime, tt.wantTime)
			}
		})
	}
}

func TestParseListLine(t *testing.T) {
	t.Parallel()
	parsers := []ListingParser{eplfParser{}, dosParser{}, unixParser{}}

	t.Run("blank line dropped", func(t *testing.T) {
		if e := parseListLine("   ", parsers); e != nil {
			t.Errorf("parseListLine(blank) = %+v, want nil", e)
		}
	})

	t.Run("unknown format degrades", func(t *testing.T) {
		line := "some listing format nobody has seen before"
		e := parseListLine(line, parsers)
		if e == nil {
			t.Fatal("parseListLine() = nil, want unknown entry")
		}
		if e.Type != "unknown" {
			t.Errorf("type = %q, want unknown", e.Type)
		}
		if e.Name != line {
			t.Errorf("name = %q, want the raw line", e.Name)
		}
	})

	t.Run("recognized format wins", func(t *testing.T) {
		e := parseListLine("drwxr-xr-x  2 ftp  ftp  4096 Jan 10  2024 pub", parsers)
		if e == nil || e.Type != "dir" || e.Name != "pub" {
			t.Errorf("parseListLine() = %+v, want dir pub", e)
		}
	})
}

func TestEntryIsDir(t *testing.T) {
	t.Parallel()
	tests := []struct {
		typ  string
		want bool
	}{
		{"dir", true},
		{"cdir", true},
		{"pdir", true},
		{"file", false},
		{"link", false},
		{"unknown", false},
	}

	for _, tt := range tests {
		e := &Entry{Type: tt.typ}
		if got := e.IsDir(); got != tt.want {
			t.Errorf("Entry{Type: %q}.IsDir() = %v, want %v", tt.typ, got, tt.want)
		}
	}
}
