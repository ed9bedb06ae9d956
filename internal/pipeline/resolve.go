package pipeline

import (
	"strings"

	"github.com/noahpengding/peng-finance/internal/domain"
)

// resolveField produces one canonical field's value for a single row.
// Multi-column sources concatenate the referenced columns' non-empty values
// with the mapping delimiter; single columns read the cell; literals apply
// to every row as-is.
func resolveField(t *Table, row []string, source domain.FieldSource) string {
	switch source.Kind {
	case domain.SourceColumns:
		var values []string
		for _, col := range source.Columns {
			if v := t.Value(row, col); v != "" {
				values = append(values, v)
			}
		}
		return strings.Join(values, domain.SourceDelimiter)
	case domain.SourceColumn:
		return t.Value(row, source.Columns[0])
	default:
		return source.Value
	}
}

// bindSources binds every mapped field's raw source string against the
// table's headers, producing the tagged variants the row loop consumes.
func bindSources(raw map[domain.CanonicalField]string, t *Table) map[domain.CanonicalField]domain.FieldSource {
	headers := t.HeaderSet()
	bound := make(map[domain.CanonicalField]domain.FieldSource, len(raw))
	for field, source := range raw {
		if strings.TrimSpace(source) == "" {
			continue
		}
		bound[field] = domain.BindSource(source, headers)
	}
	return bound
}
