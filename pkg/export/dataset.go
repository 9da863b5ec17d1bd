package export

import "strings"

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Field is one labelled value in a document header block.
type Field struct {
	Label string
	Value string
}

// Document is a narrative export: a header block followed by markdown-like body text.
type Document struct {
	Title  string
	Fields []Field
	Body   string
	Footer string
}

// FieldsDataset flattens document fields into a two column dataset.
func (d Document) FieldsDataset() Dataset {
	rows := make([]map[string]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		rows = append(rows, map[string]string{"Field": f.Label, "Value": f.Value})
	}
	return Dataset{Headers: []string{"Field", "Value"}, Rows: rows}
}

// PlainLines strips markdown emphasis and heading markers from body text.
func PlainLines(body string) []string {
	replacer := strings.NewReplacer("**", "")
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimLeft(line, "# ")
		out = append(out, replacer.Replace(line))
	}
	return out
}
