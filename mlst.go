package ftpc

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MListDir lists a directory with MLSD (RFC 3659), the machine-parsable
// alternative to LIST. Each line is a set of fact=value pairs followed
// by the entry name. An empty directory yields an empty slice.
func (c *Client) MListDir(path string) ([]*Entry, error) {
	lines, err := c.textData("MLSD", path)
	if err != nil {
		return nil, err
	}

	entries := make([]*Entry, 0, len(lines))
	for _, line := range lines {
		entry, perr := parseMLLine(strings.TrimSpace(line))
		if perr != nil {
			// Tolerate the odd malformed line; servers disagree on
			// blank lines and trailing garbage.
			c.logger.Debug("skipping MLSD line", "line", line, "err", perr)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// MListFile describes a single file or directory with MLST (RFC 3659).
// Unlike the other listings, the entry arrives on the control channel
// inside the reply itself.
func (c *Client) MListFile(path string) (*Entry, error) {
	if err := c.requireAuth("MLST"); err != nil {
		return nil, err
	}

	var reply *Reply
	var err error
	if path == "" {
		reply, err = c.sendCommand("MLST")
	} else {
		reply, err = c.sendCommand("MLST", path)
	}
	if err != nil {
		return nil, err
	}
	if reply.Code != 250 {
		return nil, &ProtocolError{Command: "MLST", Code: reply.Code, Text: reply.Text}
	}

	// The entry is the indented line between the opening "250-" line
	// and the closing "250 " line.
	for _, line := range reply.Lines[1:] {
		if strings.HasPrefix(line, "250") {
			continue
		}
		if entry, perr := parseMLLine(strings.TrimSpace(line)); perr == nil {
			return entry, nil
		}
	}
	return nil, &ProtocolError{Command: "MLST", Code: reply.Code, Text: reply.Text}
}

// parseMLLine parses one "fact1=v1;fact2=v2; name" machine-listing
// line into an Entry.
func parseMLLine(line string) (*Entry, error) {
	factsStr, name, ok := strings.Cut(line, " ")
	if !ok || name == "" {
		return nil, fmt.Errorf("no name in machine listing line %q", line)
	}

	facts := make(map[string]string)
	for pair := range strings.SplitSeq(factsStr, ";") {
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		facts[strings.ToLower(key)] = value
	}
	if len(facts) == 0 {
		return nil, fmt.Errorf("no facts in machine listing line %q", line)
	}

	entry := &Entry{
		Name:  name,
		Type:  "file",
		Raw:   line,
		Facts: facts,
	}

	if t, ok := facts["type"]; ok {
		switch v := strings.ToLower(t); v {
		case "file", "dir", "cdir", "pdir":
			entry.Type = v
		default:
			// OS-specific types like "OS.unix=symlink".
			if strings.HasSuffix(v, "symlink") || strings.HasPrefix(v, "os.unix=slink") {
				entry.Type = "link"
			} else {
				entry.Type = "unknown"
			}
		}
	}
	if s, ok := facts["size"]; ok {
		if size, err := strconv.ParseInt(s, 10, 64); err == nil {
			entry.Size = size
		}
	}
	if m, ok := facts["modify"]; ok {
		if t, err := parseMLTimestamp(m); err == nil {
			entry.ModTime = t
		}
	}
	if p, ok := facts["perm"]; ok {
		entry.Perm = p
	}

	return entry, nil
}

// parseMLTimestamp parses the RFC 3659 time-val format
// (YYYYMMDDHHMMSS with optional fractional seconds), always UTC.
func parseMLTimestamp(s string) (time.Time, error) {
	s, _, _ = strings.Cut(s, ".")
	if len(s) != 14 {
		return time.Time{}, fmt.Errorf("bad time-val %q", s)
	}
	t, err := time.Parse("20060102150405", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
