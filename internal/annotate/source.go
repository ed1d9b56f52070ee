package annotate

import "slices"

// Annotator adds external knowledge to variant records.
type Annotator interface {
	Name() string // e.g. "cadd"

	// CanAnnotate reports whether records of the given schema carry every
	// field the annotator needs. When it returns false the second value is a
	// human-readable reason.
	CanAnnotate(schema Schema) (bool, string)

	// Annotate returns zero or more output records for rec. It must not
	// modify rec.
	Annotate(rec Record) ([]Record, error)

	// OutputFields lists the fields this annotator writes, in output order.
	OutputFields() []Field
}

// FieldType is the semantic type of a record field.
type FieldType string

// Field types understood by the engine.
const (
	FieldTypeString    FieldType = "STRING"
	FieldTypeText      FieldType = "TEXT"
	FieldTypeInt       FieldType = "INT"
	FieldTypeLong      FieldType = "LONG"
	FieldTypeDecimal   FieldType = "DECIMAL"
	FieldTypeStringSet FieldType = "STRING_SET"
	FieldTypeLongSet   FieldType = "LONG_SET"
)

// Field describes a single named field of a record.
type Field struct {
	Name        string
	Type        FieldType
	Description string
}

// Schema is the ordered list of fields an input source provides.
type Schema []Field

// Lookup returns the field with the given name.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Capability mismatch reasons.
const (
	ReasonWrongDatatype = "a required attribute has the wrong datatype"
	ReasonMissingField  = "missing required attribute"
)

// Requirement names a field an annotator needs and the types it accepts.
type Requirement struct {
	Name  string
	Types []FieldType
}

// Locus requirements shared by every annotator.
var (
	RequireChrom = Requirement{Name: FieldChrom, Types: []FieldType{FieldTypeString, FieldTypeText}}
	RequirePos   = Requirement{Name: FieldPos, Types: []FieldType{FieldTypeLong, FieldTypeInt}}
	RequireRef   = Requirement{Name: FieldRef, Types: []FieldType{FieldTypeText, FieldTypeString}}
	RequireAlt   = Requirement{Name: FieldAlt, Types: []FieldType{FieldTypeText, FieldTypeString}}
)

// CheckRequirements validates schema against reqs. Requirements are checked
// in order and the first failing one determines the reason.
func CheckRequirements(schema Schema, reqs ...Requirement) (bool, string) {
	for _, req := range reqs {
		f, ok := schema.Lookup(req.Name)
		if !ok {
			return false, ReasonMissingField + " " + req.Name
		}
		if !slices.Contains(req.Types, f.Type) {
			return false, ReasonWrongDatatype
		}
	}
	return true, ""
}
