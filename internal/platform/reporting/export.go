package reporting

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// utf8BOM lets spreadsheet applications detect UTF-8 so Arabic text opens
// correctly.
const utf8BOM = "\uFEFF"

// Dataset is a tabular export. Every row has one value per column.
type Dataset struct {
	Name    string
	Columns []string
	Rows    [][]interface{}
}

// Empty reports whether the dataset has no rows.
func (d *Dataset) Empty() bool { return len(d.Rows) == 0 }

// WriteCSV writes d as comma-delimited UTF-8 with a byte order mark. Fields
// holding a comma, a quote or a line break are quoted and inner quotes
// doubled. nil values are written as empty fields.
func WriteCSV(w io.Writer, d *Dataset) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Columns); err != nil {
		return err
	}
	record := make([]string, len(d.Columns))
	for _, row := range d.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = formatValue(row[i])
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes d as a pretty-printed array of objects whose keys follow
// column order.
func WriteJSON(w io.Writer, d *Dataset) error {
	objects := make([]orderedRow, len(d.Rows))
	for i, row := range d.Rows {
		objects[i] = orderedRow{columns: d.Columns, values: row}
	}
	out, err := json.MarshalIndent(objects, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s export: %w", d.Name, err)
	}
	_, err = w.Write(out)
	return err
}

type orderedRow struct {
	columns []string
	values  []interface{}
}

func (r orderedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(col)
		buf.Write(key)
		buf.WriteByte(':')

		var v interface{}
		if i < len(r.values) {
			v = r.values[i]
		}
		if t, ok := v.(time.Time); ok {
			v = formatValue(t)
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case *string:
		if x == nil {
			return ""
		}
		return *x
	case time.Time:
		return x.Format("2006-01-02 15:04")
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// Range limits an export to records created since the start of a calendar
// period.
type Range string

const (
	RangeAll   Range = "all"
	RangeToday Range = "today"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
	RangeYear  Range = "year"
)

// ParseRange accepts the range query parameter; blank means all.
func ParseRange(s string) (Range, error) {
	switch r := Range(s); r {
	case "":
		return RangeAll, nil
	case RangeAll, RangeToday, RangeWeek, RangeMonth, RangeYear:
		return r, nil
	}
	return "", fmt.Errorf("unknown range %q", s)
}

// Since returns the inclusive lower bound for r relative to now, or nil for
// RangeAll. Weeks start on Sunday.
func (r Range) Since(now time.Time) *time.Time {
	y, m, d := now.Date()
	loc := now.Location()
	var start time.Time
	switch r {
	case RangeToday:
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
	case RangeWeek:
		start = time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, loc)
	case RangeMonth:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case RangeYear:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	default:
		return nil
	}
	return &start
}

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts the format query parameter; blank means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// ContentType returns the MIME type of the encoded file.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json; charset=utf-8"
	}
	return "text/csv; charset=utf-8"
}

// Write encodes d in format f.
func (f Format) Write(w io.Writer, d *Dataset) error {
	if f == FormatJSON {
		return WriteJSON(w, d)
	}
	return WriteCSV(w, d)
}
