package extract

import "fmt"

// Table is a rectangular view of extracted fields: one column per field,
// as many rows as the field with the most matches. Row i of every column is
// that field's i-th match, so cells in a row are not guaranteed to belong
// to the same order line.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Assemble pads every field to the longest match list with empty strings.
func Assemble(fields Fields) *Table {
	maxLen := 0
	for _, f := range fields {
		maxLen = max(maxLen, len(f.Matches))
	}

	t := &Table{
		Columns: make([]string, len(fields)),
		Rows:    make([][]string, maxLen),
	}
	for i, f := range fields {
		t.Columns[i] = f.Field
	}
	for r := range maxLen {
		row := make([]string, len(fields))
		for c, f := range fields {
			if r < len(f.Matches) {
				row[c] = f.Matches[r]
			}
		}
		t.Rows[r] = row
	}

	return t
}

// NewTable rebuilds a table from row-major cells, as posted back by the
// review form after editing.
func NewTable(columns, cells []string, rows int) (*Table, error) {
	if rows < 0 {
		return nil, fmt.Errorf("row count %d is negative", rows)
	}
	if len(columns) == 0 {
		if rows > 0 || len(cells) > 0 {
			return nil, fmt.Errorf("table has %d rows but no columns", rows)
		}
		return &Table{Columns: []string{}, Rows: [][]string{}}, nil
	}
	// Compare by division so a huge row count cannot overflow the product.
	if len(cells)%len(columns) != 0 || len(cells)/len(columns) != rows {
		return nil, fmt.Errorf("table is not rectangular: %d cells for %d columns x %d rows",
			len(cells), len(columns), rows)
	}

	t := &Table{
		Columns: append([]string(nil), columns...),
		Rows:    make([][]string, rows),
	}
	for r := range rows {
		t.Rows[r] = append([]string(nil), cells[r*len(columns):(r+1)*len(columns)]...)
	}
	return t, nil
}

// Column returns the cells of column c from top to bottom.
func (t *Table) Column(c int) []string {
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[c]
	}
	return out
}

// Records returns the header followed by every row.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, t.Columns)
	out = append(out, t.Rows...)
	return out
}
