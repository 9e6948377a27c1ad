package core

// Schema describes the structure of a document table.
type Schema struct {
	// TableName is the name of the table.
	TableName string

	// PrimaryKey is the name of the primary identifier field.
	// Defaults to IDField when left empty.
	PrimaryKey string

	// Columns contains the declared column definitions for the table.
	// Documents may carry fields beyond the declared columns; the
	// schema validator only checks declared ones.
	Columns []Column

	// Indexes contains the secondary index definitions for the table.
	Indexes []Index
}

// Column represents a single declared column.
type Column struct {
	// Name is the column name.
	Name string

	// Type is the declared type (e.g. "string", "int64", "float64",
	// "bool"). Empty means untyped: any value is accepted.
	Type string

	// Nullable indicates whether the column may be absent or nil.
	Nullable bool
}

// Index represents a secondary index over one or more fields.
type Index struct {
	// Name is the index name. Single-field indexes conventionally use
	// the "by_<field>" naming scheme.
	Name string

	// Fields are the field names composing the index, in declared
	// order. Equality scans bind a prefix of this order.
	Fields []string
}

// IDKey returns the schema's primary identifier field name.
func (s *Schema) IDKey() string {
	if s == nil || s.PrimaryKey == "" {
		return IDField
	}
	return s.PrimaryKey
}

// IndexByName returns the index with the given name, or nil.
func (s *Schema) IndexByName(name string) *Index {
	if s == nil {
		return nil
	}
	for i := range s.Indexes {
		if s.Indexes[i].Name == name {
			return &s.Indexes[i]
		}
	}
	return nil
}

// ColumnByName returns the declared column with the given name, or nil.
func (s *Schema) ColumnByName(name string) *Column {
	if s == nil {
		return nil
	}
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i]
		}
	}
	return nil
}
