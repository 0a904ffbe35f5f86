package logrecord

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/jszwec/csvutil"

	"github.com/crowdsecurity/sqlitrace/pkg/campaign"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvRecord maps the columns of the export. Other columns are ignored and
// missing ones leave the field empty.
type csvRecord struct {
	Time   string `csv:"Time,omitempty"`
	Source string `csv:"Source,omitempty"`
	Info   string `csv:"Info,omitempty"`
}

// parseCSV reads the export as written by capture tools, which do not quote
// payloads: a bare quote is kept as is, fields beyond the header are dropped
// and missing trailing fields are empty.
func parseCSV(content []byte) ([]campaign.Record, error) {
	content = bytes.TrimPrefix(content, utf8BOM)

	if isBlank(content) {
		return []campaign.Record{}, nil
	}

	r := csv.NewReader(bytes.NewReader(content))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("unable to parse csv header: %w", err)
	}

	dec.AlignRecord = true

	records := []campaign.Record{}

	for {
		var row csvRecord

		err := dec.Decode(&row)
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("unable to parse csv: %w", err)
		}

		records = append(records, campaign.Record(row))
	}

	return records, nil
}
