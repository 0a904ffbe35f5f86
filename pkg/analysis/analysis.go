// Package analysis runs the load, aggregate and account pipeline shared by
// the command line, the API server and the watcher.
package analysis

import (
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/crowdsecurity/sqlitrace/pkg/campaign"
	"github.com/crowdsecurity/sqlitrace/pkg/logrecord"
	"github.com/crowdsecurity/sqlitrace/pkg/metrics"
	"github.com/crowdsecurity/sqlitrace/pkg/sqlisig"
)

// Analyzer is safe for concurrent use: the catalog is immutable and each
// call builds its own campaign.
type Analyzer struct {
	catalog *sqlisig.Catalog
	origin  string
	logger  *log.Entry
}

func New(catalog *sqlisig.Catalog, origin string) *Analyzer {
	return &Analyzer{
		catalog: catalog,
		origin:  origin,
		logger:  log.WithField("origin", origin),
	}
}

func (a *Analyzer) Catalog() *sqlisig.Catalog {
	return a.catalog
}

// Records aggregates records that have already been loaded.
func (a *Analyzer) Records(records []campaign.Record) *campaign.Campaign {
	start := time.Now()
	c := campaign.Aggregate(records, a.catalog)
	elapsed := time.Since(start)

	metrics.Observe(a.origin, c, elapsed)

	logger := a.logger.WithFields(log.Fields{
		"scanned": c.Stats.Scanned,
		"matched": c.Stats.Matched,
		"ignored": c.Stats.Ignored,
	})

	if c.Attacker == nil {
		logger.Debugf("no suspicious record in %s", elapsed)
	} else {
		logger.Debugf("attacker %q sent %d suspicious records (%s)", *c.Attacker, len(c.Events), elapsed)
	}

	return c
}

// File loads and aggregates a log export. An empty format is guessed from
// the file name.
func (a *Analyzer) File(path string, format string) (*campaign.Campaign, error) {
	records, err := logrecord.LoadFile(path, format)
	if err != nil {
		return nil, err
	}

	return a.Records(records), nil
}

// Reader loads and aggregates records from r.
func (a *Analyzer) Reader(r io.Reader, format string, gzipped bool) (*campaign.Campaign, error) {
	records, err := logrecord.Read(r, format, gzipped)
	if err != nil {
		return nil, err
	}

	return a.Records(records), nil
}
