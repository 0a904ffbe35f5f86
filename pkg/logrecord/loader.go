// Package logrecord acquires campaign records from log exports.
package logrecord

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/crowdsecurity/sqlitrace/pkg/campaign"
)

const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// Column names of the export, as written by the capture tool.
const (
	timeField   = "Time"
	sourceField = "Source"
	infoField   = "Info"
)

var (
	ErrUnknownFormat = errors.New("unknown format")
	ErrNoFormat      = errors.New("unable to guess format")
)

// Formats lists the supported input formats.
func Formats() []string {
	return []string{FormatCSV, FormatJSON, FormatJSONL}
}

// DetectFormat guesses the format and compression from a file name.
func DetectFormat(filename string) (format string, gzipped bool, err error) {
	name := strings.ToLower(filepath.Base(filename))

	if strings.HasSuffix(name, ".gz") {
		gzipped = true
		name = strings.TrimSuffix(name, ".gz")
	}

	switch filepath.Ext(name) {
	case ".csv":
		return FormatCSV, gzipped, nil
	case ".json":
		return FormatJSON, gzipped, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, gzipped, nil
	}

	return "", gzipped, fmt.Errorf("%w from file name %q", ErrNoFormat, filename)
}

// Parse decodes the whole content in the given format. It never returns a
// partial record set: on error, the records are nil.
func Parse(content []byte, format string) ([]campaign.Record, error) {
	switch format {
	case FormatCSV:
		return parseCSV(content)
	case FormatJSON:
		return parseJSON(content)
	case FormatJSONL:
		return parseJSONLines(content)
	}

	return nil, fmt.Errorf("%w '%s', expected one of %s", ErrUnknownFormat, format, strings.Join(Formats(), ", "))
}

// Read loads all records from r. When gzipped is true, the stream is
// decompressed first.
func Read(r io.Reader, format string, gzipped bool) ([]campaign.Record, error) {
	if gzipped {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("unable to decompress: %w", err)
		}
		defer gz.Close()

		r = gz
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read: %w", err)
	}

	return Parse(content, format)
}

// LoadFile reads the records of a file. An empty format is guessed from the
// file extension. "-" reads from stdin and requires a format.
func LoadFile(path string, format string) ([]campaign.Record, error) {
	var (
		fin     *os.File
		gzipped bool
		err     error
	)

	if path == "-" {
		if format == "" {
			return nil, fmt.Errorf("%w: a format is required when reading from stdin", ErrNoFormat)
		}

		fin = os.Stdin
	} else {
		detected, gz, derr := DetectFormat(path)
		gzipped = gz

		if format == "" {
			if derr != nil {
				return nil, derr
			}

			format = detected
		}

		fin, err = os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("unable to open %s: %w", path, err)
		}
		defer fin.Close()
	}

	log.Debugf("reading %s as %s (gzip: %t)", path, format, gzipped)

	records, err := Read(fin, format, gzipped)
	if err != nil {
		return nil, fmt.Errorf("while loading %s: %w", path, err)
	}

	log.Debugf("loaded %d records from %s", len(records), path)

	return records, nil
}

func isBlank(content []byte) bool {
	return len(bytes.TrimSpace(content)) == 0
}
