package listing

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/samsarahq/go/oops"
)

const (
	linePrefix = "Fetched address for"
	separator  = ": "
)

// LoadFile reads the monitored listings from an address file.
func LoadFile(path string, logger zerolog.Logger) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, oops.Wrapf(err, "open address file %s", path)
	}
	defer f.Close()

	entries, err := Load(f, logger)
	if err != nil {
		return nil, oops.Wrapf(err, "read address file %s", path)
	}
	return entries, nil
}

// Load parses lines of the form "Fetched address for <url>: <address>".
// Every other line is ignored. A URL listed twice keeps its first position and
// its last address.
func Load(r io.Reader, logger zerolog.Logger) ([]Entry, error) {
	entries := make([]Entry, 0)
	index := make(map[string]int)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !strings.HasPrefix(line, linePrefix) {
			continue
		}
		entry, ok := parseLine(strings.TrimSpace(line))
		if !ok {
			logger.Debug().Int("line", lineNo).Msg("skipping malformed address line")
			continue
		}
		if i, seen := index[entry.URL]; seen {
			logger.Warn().
				Str("url", entry.URL).
				Str("previous_address", entries[i].Address).
				Str("address", entry.Address).
				Msg("duplicate listing url, keeping last address")
			entries[i].Address = entry.Address
			continue
		}
		index[entry.URL] = len(entries)
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, oops.Wrapf(err, "scan line %d", lineNo+1)
	}
	return entries, nil
}

func parseLine(line string) (Entry, bool) {
	head, address, found := strings.Cut(line, separator)
	if !found {
		return Entry{}, false
	}
	url := strings.TrimSpace(strings.TrimPrefix(head, linePrefix))
	if url == "" {
		return Entry{}, false
	}
	return Entry{URL: url, Address: strings.TrimSpace(address)}, true
}
