package logrecord

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"

	"github.com/crowdsecurity/sqlitrace/pkg/campaign"
)

const maxLineSize = 1024 * 1024

var errNotAnObject = errors.New("expected a json object")

// parseJSON reads an array of objects. Values are converted as in json
// lines, so a record reads the same whichever json format carries it.
func parseJSON(content []byte) ([]campaign.Record, error) {
	if isBlank(content) {
		return []campaign.Record{}, nil
	}

	var raw []map[string]json.RawMessage

	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("unable to parse json: %w", err)
	}

	records := make([]campaign.Record, len(raw))

	for i, obj := range raw {
		rec := campaign.Record{}

		for key, dst := range map[string]*string{
			timeField:   &rec.Time,
			sourceField: &rec.Source,
			infoField:   &rec.Info,
		} {
			value, ok := obj[key]
			if !ok {
				continue
			}

			v, dataType, _, err := jsonparser.Get(value)
			if err != nil {
				return nil, fmt.Errorf("unable to parse json: object %d: field %s: %w", i, key, err)
			}

			if *dst, err = fieldValue(v, dataType); err != nil {
				return nil, fmt.Errorf("unable to parse json: object %d: field %s: %w", i, key, err)
			}
		}

		records[i] = rec
	}

	return records, nil
}

// fieldValue returns strings unescaped, null as an empty string and any other
// value as its json text.
func fieldValue(value []byte, dataType jsonparser.ValueType) (string, error) {
	switch dataType {
	case jsonparser.String:
		return jsonparser.ParseString(value)
	case jsonparser.Null:
		return "", nil
	default:
		return string(value), nil
	}
}

// parseJSONLines reads one object per line, blank lines are skipped.
func parseJSONLines(content []byte) ([]campaign.Record, error) {
	records := []campaign.Record{}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		rec, err := parseJSONLine(line)
		if err != nil {
			return nil, fmt.Errorf("unable to parse json line %d: %w", lineNo, err)
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("unable to parse json lines: %w", err)
	}

	return records, nil
}

func parseJSONLine(line []byte) (campaign.Record, error) {
	rec := campaign.Record{}

	if line[0] != '{' {
		return rec, errNotAnObject
	}

	err := jsonparser.ObjectEach(line, func(key []byte, value []byte, dataType jsonparser.ValueType, _ int) error {
		var dst *string

		switch string(key) {
		case timeField:
			dst = &rec.Time
		case sourceField:
			dst = &rec.Source
		case infoField:
			dst = &rec.Info
		default:
			return nil
		}

		s, err := fieldValue(value, dataType)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}

		*dst = s

		return nil
	})

	return rec, err
}
