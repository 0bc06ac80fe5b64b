// Package schema describes the tables queries run against: field names,
// types, aliases and the primary key.
//
// Definitions are loaded from YAML or CUE files (see LoadFile) or built in
// code with New. Every name a query mentions goes through Schema.FieldName
// so criteria always carry canonical column names.
package schema

import (
	"fmt"

	"github.com/iancoleman/strcase"
)

// FieldType is the storage type of a field.
type FieldType string

const (
	TypeBool     FieldType = "bool"
	TypeInt      FieldType = "int"
	TypeBigInt   FieldType = "bigint"
	TypeString   FieldType = "string"
	TypeFloat    FieldType = "float"
	TypeDecimal  FieldType = "decimal"
	TypeDatetime FieldType = "datetime"
	TypeDate     FieldType = "date"
	TypeUUID     FieldType = "uuid"
	TypeBytes    FieldType = "bytes"
	TypeJSON     FieldType = "json"
)

// DefaultPrimaryKey is added to schemas that do not declare a primary key.
const DefaultPrimaryKey = "_id"

// Field describes one column.
type Field struct {
	Name    string    `yaml:"name" json:"name" validate:"required,fieldname"`
	Type    FieldType `yaml:"type" json:"type" validate:"required,oneof=bool int bigint string float decimal datetime date uuid bytes json"`
	Aliases []string  `yaml:"aliases,omitempty" json:"aliases,omitempty" validate:"dive,required"`

	// PK marks the primary key. At most one field may set it.
	PK bool `yaml:"pk,omitempty" json:"pk,omitempty"`

	// Required fields are NOT NULL.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// Size fixes a string width; MaxSize bounds it.
	Size    int `yaml:"size,omitempty" json:"size,omitempty" validate:"gte=0"`
	MaxSize int `yaml:"max_size,omitempty" json:"max_size,omitempty" validate:"gte=0"`

	// IgnoreCase makes string comparisons case-insensitive.
	IgnoreCase bool `yaml:"ignore_case,omitempty" json:"ignore_case,omitempty"`

	// Ref names the table this field references by primary key.
	Ref string `yaml:"ref,omitempty" json:"ref,omitempty"`
}

// Index is a secondary index over one or more fields.
type Index struct {
	Name   string   `yaml:"name" json:"name" validate:"required,fieldname"`
	Fields []string `yaml:"fields" json:"fields" validate:"required,min=1,dive,required"`
	Unique bool     `yaml:"unique,omitempty" json:"unique,omitempty"`
}

// Schema is an immutable table description.
type Schema struct {
	Table   string
	Indexes []Index

	fields  []Field
	byName  map[string]int
	aliases map[string]string
	pk      string
}

// New builds a Schema and validates it. A field named DefaultPrimaryKey of
// type int is prepended when no field is marked PK.
func New(table string, fields []Field, indexes ...Index) (*Schema, error) {
	def := Definition{Table: table, Fields: fields, Indexes: indexes}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	s := &Schema{
		Table:   table,
		Indexes: append([]Index(nil), indexes...),
		byName:  make(map[string]int, len(fields)+1),
		aliases: make(map[string]string),
	}

	hasPK := false
	for _, f := range fields {
		if f.PK {
			hasPK = true
		}
	}
	if !hasPK {
		s.addField(Field{Name: DefaultPrimaryKey, Type: TypeInt, PK: true})
	}
	for _, f := range fields {
		if _, dup := s.byName[f.Name]; dup {
			return nil, fmt.Errorf("schema %s: duplicate field %q", table, f.Name)
		}
		s.addField(f)
	}
	for _, f := range s.fields {
		for _, a := range f.Aliases {
			if other, ok := s.aliases[a]; ok && other != f.Name {
				return nil, fmt.Errorf("schema %s: alias %q used by %q and %q", table, a, other, f.Name)
			}
			if _, clash := s.byName[a]; clash && a != f.Name {
				return nil, fmt.Errorf("schema %s: alias %q of %q shadows another field", table, a, f.Name)
			}
			s.aliases[a] = f.Name
		}
	}
	for _, idx := range s.Indexes {
		for _, name := range idx.Fields {
			if _, ok := s.byName[name]; !ok {
				return nil, fmt.Errorf("schema %s: index %s references unknown field %q", table, idx.Name, name)
			}
		}
	}
	return s, nil
}

// MustNew is New that panics on error. Intended for tests and static schemas.
func MustNew(table string, fields []Field, indexes ...Index) *Schema {
	s, err := New(table, fields, indexes...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) addField(f Field) {
	f.Aliases = append([]string(nil), f.Aliases...)
	s.byName[f.Name] = len(s.fields)
	s.fields = append(s.fields, f)
	if f.PK {
		s.pk = f.Name
	}
}

// FieldName resolves a caller-supplied name to the canonical field name.
//
// Resolution order: exact field name, "pk" for the primary key, a declared
// alias, then the snake_case form of the name. Names that resolve to
// nothing are returned unchanged.
func (s *Schema) FieldName(alias string) string {
	if _, ok := s.byName[alias]; ok {
		return alias
	}
	if alias == "pk" {
		return s.pk
	}
	if name, ok := s.aliases[alias]; ok {
		return name
	}
	snake := strcase.ToSnake(alias)
	if _, ok := s.byName[snake]; ok {
		return snake
	}
	if name, ok := s.aliases[snake]; ok {
		return name
	}
	return alias
}

// HasField reports whether name is a canonical field name.
func (s *Schema) HasField(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Field returns the field called name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Fields returns the fields in declaration order, primary key first when it
// was added implicitly.
func (s *Schema) Fields() []Field {
	return append([]Field(nil), s.fields...)
}

// FieldNames returns canonical field names in declaration order.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// PrimaryKeyName returns the primary key field name.
func (s *Schema) PrimaryKeyName() string {
	return s.pk
}

// PrimaryKey returns the primary key field.
func (s *Schema) PrimaryKey() Field {
	f, _ := s.Field(s.pk)
	return f
}

func (s *Schema) String() string {
	return s.Table
}
