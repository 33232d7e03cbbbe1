package ftpc

import (
	"bufio"
	"strconv"
	"strings"
	"time"
)

// Entry is one remote directory entry, produced by List, NameList,
// MListDir or MListFile. Entries are read-only query results.
type Entry struct {
	// Name is the file, directory or link name.
	Name string

	// Type is "file", "dir" or "link"; machine listings may also yield
	// "cdir" (the listed directory itself) and "pdir" (its parent).
	// Lines no parser understood get "unknown".
	Type string

	// Size is the size in bytes, when the listing carries one.
	Size int64

	// ModTime is the modification time, when the listing carries one.
	ModTime time.Time

	// Perm is the raw permission information: a Unix mode string from
	// LIST, or the RFC 3659 perm fact from MLSx.
	Perm string

	// Target is the link target for "link" entries.
	Target string

	// Raw is the unparsed listing line as received.
	Raw string

	// Facts holds every fact=value pair of an MLSx entry. Nil for
	// entries parsed from LIST.
	Facts map[string]string
}

// IsDir reports whether the entry names a directory, including the
// "cdir"/"pdir" entries of machine listings.
func (e *Entry) IsDir() bool {
	return e.Type == "dir" || e.Type == "cdir" || e.Type == "pdir"
}

// List runs LIST over a data connection and parses each line into an
// Entry. An empty path lists the current directory. An empty directory
// yields an empty slice, not an error. When SetListHidden is on, the
// server is asked to include hidden files.
func (c *Client) List(path string) ([]*Entry, error) {
	lines, err := c.textData("LIST", path)
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(lines))
	for _, line := range lines {
		if e := parseListLine(line, c.parsers()); e != nil {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// NameList runs NLST over a data connection and returns the bare
// names, one per line. An empty directory yields an empty slice.
func (c *Client) NameList(path string) ([]string, error) {
	lines, err := c.textData("NLST", path)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(lines))
	for _, line := range lines {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// textData runs one listing command over a data connection and returns
// the raw lines, honoring the hidden-files setting.
func (c *Client) textData(command, path string) ([]string, error) {
	if err := c.requireAuth(command); err != nil {
		return nil, err
	}

	var args []string
	// Hidden-file inclusion only applies to the unstructured listings;
	// MLSD has no option syntax.
	if c.listHidden && (command == "LIST" || command == "NLST") {
		args = append(args, "-a")
	}
	if path != "" {
		args = append(args, path)
	}

	dataConn, err := c.openDataCmd(command, args...)
	if err != nil {
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(dataConn)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		c.releaseData(dataConn)
		// A broken listing leaves the completion reply unread; eat it
		// so the control channel stays in sync, then report the data
		// failure.
		if reply, rerr := c.readControlReply(); rerr != nil {
			c.markBroken()
		} else {
			c.logger.Debug("listing aborted", "code", reply.Code)
		}
		return nil, &TransferError{Op: command, Path: path, Err: err}
	}

	reply, err := c.finishData(dataConn)
	if err != nil {
		return nil, err
	}
	if reply.Class() != ReplyPositiveCompletion {
		return nil, &TransferError{Op: command, Path: path, Code: reply.Code, Text: reply.Text}
	}
	return lines, nil
}

// ListingParser parses one raw listing line. Parsers are tried in
// order; the first one that recognizes the line wins.
type ListingParser interface {
	Parse(line string) (*Entry, bool)
}

func (c *Client) parsers() []ListingParser {
	return []ListingParser{eplfParser{}, dosParser{}, unixParser{}}
}

// parseListLine runs the parsers over one line. Unrecognized non-blank
// lines become "unknown" entries carrying only the raw text, so odd
// server formats degrade instead of disappearing.
func parseListLine(line string, parsers []ListingParser) *Entry {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	for _, p := range parsers {
		if e, ok := p.Parse(trimmed); ok {
			return e
		}
	}

	return &Entry{Name: trimmed, Type: "unknown", Raw: line}
}

// unixParser handles ls-style lines:
//
//	drwxr-xr-x  2 ftp  ftp   4096 Jan 10  2024 pub
//	-rw-r--r--  1 ftp  ftp  18430 Mar  3 16:45 notes.txt
//	lrwxrwxrwx  1 ftp  ftp      6 Mar  3 16:45 latest -> v2.1.0
//
// Both the 9-field form above and the 8-field form without a group
// column are accepted.
type unixParser struct{}

func (unixParser) Parse(line string) (*Entry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return nil, false
	}

	mode := fields[0]
	if len(mode) < 10 || !strings.ContainsRune("-dlbcps", rune(mode[0])) {
		return nil, false
	}

	entry := &Entry{Raw: line, Perm: mode}
	switch mode[0] {
	case 'd':
		entry.Type = "dir"
	case 'l':
		entry.Type = "link"
	default:
		entry.Type = "file"
	}

	// Locate the size column: fields[4] in the 9-field layout,
	// fields[3] when the group column is missing.
	sizeIdx := -1
	for _, idx := range []int{4, 3} {
		if len(fields) < idx+5 {
			continue
		}
		size, err := strconv.ParseInt(fields[idx], 10, 64)
		if err != nil {
			continue
		}
		if _, ok := monthNum[fields[idx+1]]; ok {
			entry.Size = size
			sizeIdx = idx
			break
		}
	}
	if sizeIdx == -1 {
		return nil, false
	}

	entry.ModTime = parseUnixTime(fields[sizeIdx+1], fields[sizeIdx+2], fields[sizeIdx+3])

	name := strings.Join(fields[sizeIdx+4:], " ")
	if entry.Type == "link" {
		if before, after, ok := strings.Cut(name, " -> "); ok {
			name, entry.Target = before, after
		}
	}
	if name == "" {
		return nil, false
	}
	entry.Name = name
	return entry, true
}

var monthNum = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// parseUnixTime resolves the "Mon DD YYYY" and "Mon DD HH:MM" date
// columns of an ls listing. The HH:MM form carries no year; ls uses it
// for entries less than six months old, so the current year is assumed
// unless that would place the entry in the future.
func parseUnixTime(monthStr, dayStr, yearOrClock string) time.Time {
	month, ok := monthNum[monthStr]
	if !ok {
		return time.Time{}
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return time.Time{}
	}

	now := time.Now().UTC()

	if strings.Contains(yearOrClock, ":") {
		hStr, mStr, _ := strings.Cut(yearOrClock, ":")
		hour, err1 := strconv.Atoi(hStr)
		minute, err2 := strconv.Atoi(mStr)
		if err1 != nil || err2 != nil {
			return time.Time{}
		}
		t := time.Date(now.Year(), month, day, hour, minute, 0, 0, time.UTC)
		if t.After(now) {
			t = t.AddDate(-1, 0, 0)
		}
		return t
	}

	year, err := strconv.Atoi(yearOrClock)
	if err != nil {
		return time.Time{}
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// dosParser handles IIS-style lines:
//
//	12-14-23  12:22PM           1037794 report.pdf
//	09-24-24  10:30AM       <DIR>       logs
type dosParser struct{}

var dosTimeLayouts = []string{
	"01-02-06 03:04PM",
	"01-02-2006 03:04PM",
	"01/02/06 03:04PM",
	"01/02/2006 03:04PM",
}

func (dosParser) Parse(line string) (*Entry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return nil, false
	}

	var stamp time.Time
	matched := false
	for _, layout := range dosTimeLayouts {
		if t, err := time.Parse(layout, fields[0]+" "+fields[1]); err == nil {
			stamp = t.UTC()
			matched = true
			break
		}
	}
	if !matched {
		return nil, false
	}

	entry := &Entry{Raw: line, ModTime: stamp}
	name := strings.Join(fields[3:], " ")
	if name == "" {
		return nil, false
	}
	entry.Name = name

	if fields[2] == "<DIR>" {
		entry.Type = "dir"
		return entry, true
	}

	size, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, false
	}
	entry.Type = "file"
	entry.Size = size
	return entry, true
}

// eplfParser handles Easily Parsed LIST Format lines:
//
//	+i8388621.48594,m825718503,r,s280,\tdjb.html
type eplfParser struct{}

func (eplfParser) Parse(line string) (*Entry, bool) {
	rest, ok := strings.CutPrefix(line, "+")
	if !ok {
		return nil, false
	}

	sep := strings.IndexAny(rest, "\t ")
	if sep < 0 {
		return nil, false
	}
	facts := rest[:sep]
	name := strings.TrimSpace(rest[sep+1:])
	if name == "" {
		return nil, false
	}

	entry := &Entry{Raw: line, Name: name, Type: "file"}
	for _, fact := range strings.Split(facts, ",") {
		if fact == "" {
			continue
		}
		switch fact[0] {
		case '/':
			entry.Type = "dir"
		case 's':
			if size, err := strconv.ParseInt(fact[1:], 10, 64); err == nil {
				entry.Size = size
			}
		case 'm':
			if secs, err := strconv.ParseInt(fact[1:], 10, 64); err == nil {
				entry.ModTime = time.Unix(secs, 0).UTC()
			}
		}
	}
	return entry, true
}

// ChangeDir changes the server-side working directory (CWD).
func (c *Client) ChangeDir(path string) error {
	if err := c.requireAuth("CWD"); err != nil {
		return err
	}
	_, err := c.expectCompletion("CWD", path)
	return err
}

// CurrentDir returns the server-side working directory (PWD).
func (c *Client) CurrentDir() (string, error) {
	if err := c.requireAuth("PWD"); err != nil {
		return "", err
	}
	reply, err := c.expectCompletion("PWD")
	if err != nil {
		return "", err
	}

	// 257 "/home/user" is the current directory
	open := strings.Index(reply.Text, `"`)
	if open < 0 {
		return "", &ProtocolError{Command: "PWD", Code: reply.Code, Text: reply.Text}
	}
	closeQ := strings.Index(reply.Text[open+1:], `"`)
	if closeQ < 0 {
		return "", &ProtocolError{Command: "PWD", Code: reply.Code, Text: reply.Text}
	}
	return reply.Text[open+1 : open+1+closeQ], nil
}

// Size asks the server for a file's size in bytes (SIZE).
func (c *Client) Size(path string) (int64, error) {
	if err := c.requireAuth("SIZE"); err != nil {
		return 0, err
	}
	reply, err := c.expectCompletion("SIZE", path)
	if err != nil {
		return 0, err
	}
	size, perr := strconv.ParseInt(strings.TrimSpace(reply.Text), 10, 64)
	if perr != nil {
		return 0, &ProtocolError{Command: "SIZE", Code: reply.Code, Text: reply.Text}
	}
	return size, nil
}

// ModTime asks the server for a file's modification time (MDTM).
// Times on the wire are UTC per RFC 3659.
func (c *Client) ModTime(path string) (time.Time, error) {
	if err := c.requireAuth("MDTM"); err != nil {
		return time.Time{}, err
	}
	reply, err := c.expectCompletion("MDTM", path)
	if err != nil {
		return time.Time{}, err
	}
	t, perr := parseMLTimestamp(strings.TrimSpace(reply.Text))
	if perr != nil {
		return time.Time{}, &ProtocolError{Command: "MDTM", Code: reply.Code, Text: reply.Text}
	}
	return t, nil
}

// Delete removes a remote file (DELE).
func (c *Client) Delete(path string) error {
	if err := c.requireAuth("DELE"); err != nil {
		return err
	}
	_, err := c.expectCompletion("DELE", path)
	return err
}

// Rename moves a remote file or directory (RNFR + RNTO).
func (c *Client) Rename(from, to string) error {
	if err := c.requireAuth("RNFR"); err != nil {
		return err
	}

	reply, err := c.sendCommand("RNFR", from)
	if err != nil {
		return err
	}
	if reply.Class() != ReplyPositiveIntermediate {
		return &ProtocolError{Command: "RNFR", Code: reply.Code, Text: reply.Text}
	}

	_, err = c.expectCompletion("RNTO", to)
	return err
}
