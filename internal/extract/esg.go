package extract

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/climateburdentract/cbi-pipeline/internal/fetcher"
	"github.com/climateburdentract/cbi-pipeline/internal/table"
)

// ESGComponents are the four score components, canonical column order.
var ESGComponents = []string{"total_score", "environment_score", "social_score", "governance_score"}

// defaultESGAliases maps vendor header spellings onto the canonical component
// names. Overridable per deployment with a YAML file of the same shape.
var defaultESGAliases = map[string]string{
	"total":           "total_score",
	"overall":         "total_score",
	"overall_score":   "total_score",
	"esg_score":       "total_score",
	"total_esg_score": "total_score",
	"environment":     "environment_score",
	"environmental":   "environment_score",
	"env_score":       "environment_score",
	"e_score":         "environment_score",
	"social":          "social_score",
	"s_score":         "social_score",
	"governance":      "governance_score",
	"gov_score":       "governance_score",
	"g_score":         "governance_score",
	"company":         "company",
	"company_name":    "company",
	"name":            "company",
	"ticker":          "ticker",
	"symbol":          "ticker",
	"sector":          "sector",
	"gics_sector":     "sector",
	"industry":        "sector",
}

// ESGRecord is one company's rescaled ESG scores. Component values align
// with ESGComponents and sit in [0, 100] or are nil.
type ESGRecord struct {
	Company string
	Ticker  string
	Sector  string
	Scores  []*float64
}

// ESG reads the single company/sector ratings archive under zipDir and
// normalizes its score components. The archive's first CSV or XLSX member is
// used. Components published on a fractional scale (column max <= 1) are
// rescaled to 0-100; all values are clipped to [0, 100]. A missing total is
// filled with the mean of the present components. aliasPath, when non-empty
// and present, overlays defaultESGAliases.
func ESG(ctx context.Context, zipDir, scratchDir, aliasPath string) ([]ESGRecord, error) {
	log := zap.L().With(zap.String("source", "esg"))

	zips, err := filepath.Glob(filepath.Join(zipDir, "*.zip"))
	if err != nil {
		return nil, eris.Wrap(err, "extract: glob esg archives")
	}
	if len(zips) == 0 {
		log.Warn("no ESG archive found, treating source as absent", zap.String("dir", zipDir))
		return nil, nil
	}
	if ctx.Err() != nil {
		return nil, eris.Wrap(ctx.Err(), "extract: esg cancelled")
	}

	aliases, err := loadESGAliases(aliasPath)
	if err != nil {
		return nil, err
	}

	members, err := fetcher.ExtractZIP(zips[0], scratchDir)
	if err != nil {
		log.Warn("corrupt ESG archive, treating source as absent", zap.String("file", zips[0]), zap.Error(err))
		return nil, nil
	}

	rows, err := readESGTable(members)
	if err != nil {
		log.Warn("no usable table in ESG archive", zap.String("file", zips[0]), zap.Error(err))
		return nil, nil
	}
	if len(rows) < 2 {
		return nil, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		canon, ok := aliases[normalizeHeader(h)]
		if !ok {
			canon = normalizeHeader(h)
		}
		header[i] = canon
	}
	colIdx := mapColumns(header)

	records := make([]ESGRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := ESGRecord{
			Company: getCol(row, colIdx, "company"),
			Ticker:  getCol(row, colIdx, "ticker"),
			Sector:  getCol(row, colIdx, "sector"),
			Scores:  make([]*float64, len(ESGComponents)),
		}
		for i, c := range ESGComponents {
			rec.Scores[i] = parseFloatPtr(getCol(row, colIdx, c))
		}
		records = append(records, rec)
	}

	rescaleESGComponents(records)
	fillESGTotals(records)

	log.Info("ESG records extracted", zap.Int("records", len(records)))
	return records, nil
}

func loadESGAliases(path string) (map[string]string, error) {
	aliases := make(map[string]string, len(defaultESGAliases))
	for k, v := range defaultESGAliases {
		aliases[k] = v
	}
	if path == "" {
		return aliases, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return aliases, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read esg alias file %s", path)
	}

	var override map[string]string
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, eris.Wrapf(err, "extract: parse esg alias file %s", path)
	}
	for k, v := range override {
		aliases[normalizeHeader(k)] = v
	}
	return aliases, nil
}

// readESGTable returns the rows of the archive's first CSV member, falling
// back to its first XLSX member.
func readESGTable(members []string) ([][]string, error) {
	if path := fetcher.FirstMatch(members, ".csv"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "extract: open esg csv %s", path)
		}
		defer func() { _ = f.Close() }()
		return fetcher.ReadCSV(f, fetcher.CSVOptions{TrimSpace: true, LazyQuotes: true})
	}
	if path := fetcher.FirstMatch(members, ".xlsx"); path != "" {
		return fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	}
	return nil, eris.New("extract: esg archive has no csv or xlsx member")
}

// rescaleESGComponents detects fractional-scale components by column max and
// rescales them to 0-100, then clips every value to [0, 100].
func rescaleESGComponents(records []ESGRecord) {
	for i := range ESGComponents {
		max := 0.0
		any := false
		for _, rec := range records {
			if v := rec.Scores[i]; v != nil {
				any = true
				if *v > max {
					max = *v
				}
			}
		}
		if !any {
			continue
		}

		for _, rec := range records {
			v := rec.Scores[i]
			if v == nil {
				continue
			}
			if max <= 1.0 {
				*v *= 100.0
			}
			if *v < 0 {
				*v = 0
			}
			if *v > 100 {
				*v = 100
			}
		}
	}
}

// fillESGTotals sets a missing total_score to the mean of the present
// component scores.
func fillESGTotals(records []ESGRecord) {
	for r := range records {
		rec := &records[r]
		if rec.Scores[0] != nil {
			continue
		}
		var sum float64
		var n int
		for i := 1; i < len(rec.Scores); i++ {
			if v := rec.Scores[i]; v != nil {
				sum += *v
				n++
			}
		}
		if n > 0 {
			total := sum / float64(n)
			rec.Scores[0] = &total
		}
	}
}

func esgHeader() []string {
	h := []string{"company", "ticker", "sector"}
	return append(h, ESGComponents...)
}

// WriteESG writes ESG records to the interim table at path.
func WriteESG(path string, records []ESGRecord) error {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := []string{rec.Company, rec.Ticker, rec.Sector}
		for _, v := range rec.Scores {
			row = append(row, table.FormatFloat(v))
		}
		rows = append(rows, row)
	}
	return table.Write(path, esgHeader(), rows)
}

// ReadESG reads an interim ESG table. A missing file yields (nil, nil).
func ReadESG(path string) ([]ESGRecord, error) {
	if !table.Exists(path) {
		return nil, nil
	}
	header, rows, err := table.Read(path)
	if err != nil {
		return nil, err
	}
	colIdx := mapColumns(header)

	out := make([]ESGRecord, 0, len(rows))
	for _, row := range rows {
		rec := ESGRecord{
			Company: getCol(row, colIdx, "company"),
			Ticker:  getCol(row, colIdx, "ticker"),
			Sector:  getCol(row, colIdx, "sector"),
			Scores:  make([]*float64, len(ESGComponents)),
		}
		for i, c := range ESGComponents {
			rec.Scores[i] = table.ParseFloat(getCol(row, colIdx, c))
		}
		out = append(out, rec)
	}
	return out, nil
}
