package config

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/emcview/internal/fsutil"
)

// ReadList reads a newline-delimited list file. Trailing whitespace is
// stripped from every line and blank lines are dropped.
func ReadList(fsys fsutil.FileSystem, path string) ([]string, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read list file: %w", err)
	}

	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read list file %s: %w", path, err)
	}
	return out, nil
}

// Blacklist holds one flag per global frame; a non-zero flag excludes the
// frame.
type Blacklist struct {
	Path  string
	Flags []uint8
}

// ReadBlacklist parses a blacklist file: one integer flag per non-blank
// line, in global frame order.
func ReadBlacklist(fsys fsutil.FileSystem, path string) (*Blacklist, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blacklist file: %w", err)
	}

	b := &Blacklist{Path: path}
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseUint(text, 10, 8)
		if err != nil {
			return nil, &ResolutionError{Key: "emc.blacklist_file", Path: path, Reason: fmt.Sprintf("line %d: invalid flag %q", line, text)}
		}
		b.Flags = append(b.Flags, uint8(v))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read blacklist file %s: %w", path, err)
	}
	return b, nil
}

// Len returns the number of frames covered by the blacklist.
func (b *Blacklist) Len() int { return len(b.Flags) }

// Indices returns the excluded global frame indices in ascending order.
// The blacklist must cover exactly total frames.
func (b *Blacklist) Indices(total int) ([]int, error) {
	if len(b.Flags) != total {
		return nil, &ResolutionError{
			Key:    "emc.blacklist_file",
			Path:   b.Path,
			Reason: fmt.Sprintf("has %d entries for %d frames", len(b.Flags), total),
		}
	}
	var out []int
	for i, f := range b.Flags {
		if f != 0 {
			out = append(out, i)
		}
	}
	return out, nil
}
