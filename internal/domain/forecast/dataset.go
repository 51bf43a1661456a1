package forecast

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-sql/civil"
)

// Metric names in the order they are reported.
var Metrics = []string{"recovered", "active", "deaths", "confirmed"}

// metricAliases lists the accepted column headers per metric.
var metricAliases = map[string][]string{
	"recovered": {"recovered", "recovery", "recovered_cases"},
	"active":    {"active", "activecases"},
	"deaths":    {"deaths", "death"},
	"confirmed": {"confirmed", "totalinfected"},
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "02-01-2006", "02/01/2006", "2006-01-02T15:04:05Z07:00"}

const unknownState = "Unknown"

var ErrEmptyDataset = errors.New("dataset has no rows")

// Row is one line of the dataset. Missing or unparseable values are NaN.
type Row struct {
	State  string
	Date   civil.Date
	Values map[string]float64
}

// Dataset is a parsed statistics file.
type Dataset struct {
	Rows     []Row
	HasDates bool
}

// detectDelimiter picks whichever of comma, semicolon and tab occurs most
// often in the header line.
func detectDelimiter(header string) rune {
	best, count := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := strings.Count(header, string(d)); n > count {
			best, count = d, n
		}
	}
	return best
}

func parseDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

func parseValue(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// Parse reads a delimited statistics file. The header is matched case
// insensitively; "region" stands in for a missing "state" column. When a
// date column exists, rows with an unparseable date are dropped.
func Parse(r io.Reader) (*Dataset, error) {
	br := bufio.NewReader(r)
	first, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	header := string(first)
	if i := bytes.IndexByte(first, '\n'); i >= 0 {
		header = string(first[:i])
	}

	cr := csv.NewReader(br)
	cr.Comma = detectDelimiter(header)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, ErrEmptyDataset
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	stateCol, ok := cols["state"]
	if !ok {
		stateCol, ok = cols["region"]
	}
	if !ok {
		stateCol = -1
	}
	dateCol, hasDates := cols["date"]
	if !hasDates {
		dateCol = -1
	}
	metricCols := make(map[string]int)
	for _, m := range Metrics {
		for _, alias := range metricAliases[m] {
			if i, ok := cols[alias]; ok {
				metricCols[m] = i
				break
			}
		}
	}

	field := func(rec []string, i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	ds := &Dataset{HasDates: hasDates}
	for _, rec := range records[1:] {
		row := Row{State: field(rec, stateCol), Values: make(map[string]float64, len(metricCols))}
		if stateCol < 0 {
			row.State = unknownState
		}
		if row.State == "" {
			continue
		}
		if hasDates {
			d, ok := parseDate(field(rec, dateCol))
			if !ok {
				continue
			}
			row.Date = d
		}
		for m, i := range metricCols {
			row.Values[m] = parseValue(field(rec, i))
		}
		ds.Rows = append(ds.Rows, row)
	}
	if len(ds.Rows) == 0 {
		return nil, ErrEmptyDataset
	}
	return ds, nil
}

// States returns the distinct state names, sorted.
func (d *Dataset) States() []string {
	seen := make(map[string]struct{})
	for _, r := range d.Rows {
		seen[r.State] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Series is one state's history, one point per date.
type Series struct {
	Dates  []civil.Date
	Values map[string][]float64
}

func (s Series) Len() int { return len(s.Dates) }

// SeriesFor collects the rows of state (case-insensitive). Rows sharing a
// date are summed. Without a date column, file order is the time axis and
// the last row is dated the day before today. Gaps are forward filled, and
// a metric missing from the start of the series counts as zero.
func (d *Dataset) SeriesFor(state string, today civil.Date) (Series, bool) {
	var rows []Row
	for _, r := range d.Rows {
		if strings.EqualFold(r.State, state) {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return Series{}, false
	}

	if !d.HasDates {
		start := today.AddDays(-len(rows))
		for i := range rows {
			rows[i].Date = start.AddDays(i)
		}
	}

	byDate := make(map[civil.Date]map[string]float64)
	var dates []civil.Date
	for _, r := range rows {
		agg, ok := byDate[r.Date]
		if !ok {
			agg = make(map[string]float64)
			byDate[r.Date] = agg
			dates = append(dates, r.Date)
		}
		for m, v := range r.Values {
			prev, seen := agg[m]
			switch {
			case !seen:
				agg[m] = v
			case math.IsNaN(prev):
				agg[m] = v
			case !math.IsNaN(v):
				agg[m] = prev + v
			}
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	s := Series{Dates: dates, Values: make(map[string][]float64)}
	for _, m := range Metrics {
		if _, ok := byDate[dates[0]][m]; !ok {
			continue
		}
		vals := make([]float64, len(dates))
		last := 0.0
		for i, dt := range dates {
			v, ok := byDate[dt][m]
			if !ok || math.IsNaN(v) {
				v = last
			}
			vals[i] = v
			last = v
		}
		s.Values[m] = vals
	}
	return s, true
}

// Source loads a dataset from disk and reloads it when the file changes.
type Source struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	size    int64
	ds      *Dataset
}

func NewSource(path string) *Source {
	return &Source{path: path}
}

func (s *Source) Dataset() (*Dataset, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ds != nil && info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return s.ds, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	ds, err := Parse(f)
	if err != nil {
		return nil, err
	}
	s.ds, s.modTime, s.size = ds, info.ModTime(), info.Size()
	return ds, nil
}
