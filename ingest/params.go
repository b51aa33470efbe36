package ingest

import (
	"strconv"
	"strings"

	"github.com/nikibot/niki/models"
)

// Parameter-list documents are tabular: every row describes one device
// parameter (name, description, SMS command format, default, valid
// range, unit). Each row becomes one atomic chunk so a single row is
// retrievable as a complete, self-contained fact. Row chunks are never
// merged or re-split.

var paramHeaderAliases = map[string][]string{
	"param_name":  {"param", "name", "parameter", "parametre"},
	"group":       {"group", "kategori"},
	"description": {"description", "açıklama"},
	"sms_format":  {"sms", "command", "komut"},
	"default":     {"default", "varsayılan"},
	"range":       {"range", "aralık"},
	"unit":        {"unit", "birim"},
}

// SplitParamTable parses a pipe-delimited parameter table (first row
// headers, optional separator row) into one chunk per data row. Rows
// that do not look like table rows are ignored.
func SplitParamTable(doc RawDocument) []models.DocumentChunk {
	var rows []string
	for _, line := range strings.Split(doc.Text, "\n") {
		if strings.Contains(line, "|") {
			rows = append(rows, line)
		}
	}
	if len(rows) < 2 {
		return nil
	}

	headers := splitCells(rows[0])
	for i, h := range headers {
		headers[i] = strings.ToLower(h)
	}

	data := rows[1:]
	if isSeparatorRow(data[0]) {
		data = data[1:]
	}

	var chunks []models.DocumentChunk
	for i, row := range data {
		cells := splitCells(row)
		if len(cells) == 0 || isSeparatorRow(row) {
			continue
		}
		rowMap := map[string]string{}
		for j := 0; j < len(headers) && j < len(cells); j++ {
			rowMap[headers[j]] = cells[j]
		}

		fields := map[string]string{}
		for field, aliases := range paramHeaderAliases {
			for _, alias := range aliases {
				if v, ok := rowMap[alias]; ok && v != "" {
					fields[field] = v
					break
				}
			}
		}
		if fields["param_name"] == "" {
			continue
		}

		// Embed text in a fixed field order so rebuilds reproduce the
		// same content.
		text := strings.Join([]string{
			"param_name: " + fields["param_name"],
			"group: " + fields["group"],
			"description: " + fields["description"],
			"sms_format: " + fields["sms_format"],
			"default: " + fields["default"],
			"range: " + fields["range"],
			"unit: " + fields["unit"],
		}, " | ")

		metadata := map[string]string{
			"source":         doc.Source,
			"logical_type":   "param_row",
			"param_name":     fields["param_name"],
			"group":          fields["group"],
			"description":    fields["description"],
			"sms_format":     fields["sms_format"],
			"default":        fields["default"],
			"range":          fields["range"],
			"unit":           fields["unit"],
			"has_sms_format": strconv.FormatBool(fields["sms_format"] != ""),
			"row_index":      strconv.Itoa(i),
		}

		chunks = append(chunks, models.DocumentChunk{
			ID:       ChunkID(doc.Source, text),
			Text:     text,
			Source:   doc.Source,
			Metadata: metadata,
		})
	}
	return chunks
}

func splitCells(row string) []string {
	var cells []string
	for _, c := range strings.Split(row, "|") {
		c = strings.TrimSpace(c)
		if c != "" {
			cells = append(cells, c)
		}
	}
	return cells
}

func isSeparatorRow(row string) bool {
	trimmed := strings.Map(func(r rune) rune {
		switch r {
		case '|', '-', ':', ' ':
			return -1
		}
		return r
	}, row)
	return trimmed == ""
}

// IsParamTable reports whether a source file should take the
// table-aware ingestion path, by name convention.
func IsParamTable(source string) bool {
	lower := strings.ToLower(source)
	return strings.Contains(lower, "param")
}
