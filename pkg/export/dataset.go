package export

// Dataset is a table ready to be rendered. Rows are positional and must have
// as many cells as Headers.
type Dataset struct {
	Title    string
	Subtitle string
	Headers  []string
	Rows     [][]string
}

func (d Dataset) cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
