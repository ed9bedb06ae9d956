package domain

import "strings"

// CanonicalField is one of the fixed transaction attributes an import must
// populate from the uploaded table.
type CanonicalField string

const (
	FieldAccountType      CanonicalField = "account_type"
	FieldDate             CanonicalField = "date"
	FieldPostDate         CanonicalField = "post_date"
	FieldOriginalCategory CanonicalField = "original_category"
	FieldMerchantName     CanonicalField = "merchant_name"
	FieldDescription      CanonicalField = "description"
	FieldCurrency         CanonicalField = "currency"
	FieldAmount           CanonicalField = "amount"
)

// CanonicalFields lists every mappable field in display order.
var CanonicalFields = []CanonicalField{
	FieldAccountType,
	FieldDate,
	FieldPostDate,
	FieldOriginalCategory,
	FieldMerchantName,
	FieldDescription,
	FieldCurrency,
	FieldAmount,
}

// RequiredFields must have a non-empty source before an import may run.
// currency defaults to the base currency when unmapped; account_type and
// original_category are institution extras that many exports lack.
var RequiredFields = []CanonicalField{
	FieldDate,
	FieldPostDate,
	FieldMerchantName,
	FieldDescription,
	FieldAmount,
}

// SourceDelimiter joins multiple column references in a persisted mapping
// source, and joins their resolved values on import.
const SourceDelimiter = ";"

// SourceKind discriminates the FieldSource variant.
type SourceKind int

const (
	// SourceColumn reads a single named column of the uploaded table.
	SourceColumn SourceKind = iota
	// SourceColumns concatenates several columns' values with SourceDelimiter.
	SourceColumns
	// SourceLiteral applies a fixed value to every row.
	SourceLiteral
)

// FieldSource is the bound form of a persisted mapping source string.
type FieldSource struct {
	Kind    SourceKind
	Columns []string // SourceColumn (len 1) or SourceColumns
	Value   string   // SourceLiteral
}

// BindSource interprets a raw mapping source against the headers of an
// uploaded table. A delimiter-joined source always binds to SourceColumns;
// a single token binds to SourceColumn when it names a header, otherwise it
// is a literal fixed value.
func BindSource(raw string, headers map[string]bool) FieldSource {
	if strings.Contains(raw, SourceDelimiter) {
		parts := strings.Split(raw, SourceDelimiter)
		cols := make([]string, 0, len(parts))
		for _, p := range parts {
			if p != "" {
				cols = append(cols, p)
			}
		}
		return FieldSource{Kind: SourceColumns, Columns: cols}
	}
	if headers[raw] {
		return FieldSource{Kind: SourceColumn, Columns: []string{raw}}
	}
	return FieldSource{Kind: SourceLiteral, Value: raw}
}

// Encode renders a FieldSource back to its persisted string form.
func (s FieldSource) Encode() string {
	switch s.Kind {
	case SourceColumn, SourceColumns:
		return strings.Join(s.Columns, SourceDelimiter)
	default:
		return s.Value
	}
}
