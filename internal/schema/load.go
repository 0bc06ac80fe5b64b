package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Load error codes.
const (
	ErrCodeNotFound     = "S001"
	ErrCodeFormat       = "S002"
	ErrCodeParse        = "S003"
	ErrCodeInvalid      = "S004"
	ErrCodeNoDefinition = "S005"
)

// LoadError reports a definition file that could not be turned into schemas.
type LoadError struct {
	Code    string
	Path    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Definition is the serialized form of a Schema.
type Definition struct {
	Table   string  `yaml:"table" json:"table" validate:"required,fieldname"`
	Fields  []Field `yaml:"fields" json:"fields" validate:"required,min=1,dive"`
	Indexes []Index `yaml:"indexes,omitempty" json:"indexes,omitempty" validate:"dive"`
}

// File is the YAML document layout.
type File struct {
	Tables []Definition `yaml:"tables"`
}

var (
	validate       = newValidator()
	identifierExpr = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("fieldname", func(fl validator.FieldLevel) bool {
		return identifierExpr.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks struct tags and cross-field rules.
func (d Definition) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("schema %s: %s", d.Table, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("schema %s: %w", d.Table, err)
	}
	pks := 0
	for _, f := range d.Fields {
		if f.PK {
			pks++
		}
	}
	if pks > 1 {
		return fmt.Errorf("schema %s: %d primary keys declared, at most one allowed", d.Table, pks)
	}
	return nil
}

// Build turns a definition into a Schema.
func (d Definition) Build() (*Schema, error) {
	return New(d.Table, d.Fields, d.Indexes...)
}

// Set is a group of schemas keyed by table name.
type Set map[string]*Schema

// Get returns the schema for table.
func (s Set) Get(table string) (*Schema, bool) {
	sch, ok := s[table]
	return sch, ok
}

// Tables returns the table names in sorted order.
func (s Set) Tables() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile reads schema definitions from a .yaml, .yml or .cue file.
func LoadFile(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Path: path, Message: "reading schema file", Err: err}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML(bytes.NewReader(data), path)
	case ".cue":
		return loadCUE(data, path)
	default:
		return nil, &LoadError{Code: ErrCodeFormat, Path: path, Message: fmt.Sprintf("unsupported schema file extension %q", filepath.Ext(path))}
	}
}

// LoadYAML reads definitions from a YAML document with a top-level
// "tables" list. Unknown keys are rejected.
func LoadYAML(r io.Reader) (Set, error) {
	return loadYAML(r, "")
}

func loadYAML(r io.Reader, path string) (Set, error) {
	var file File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Path: path, Message: "parsing YAML", Err: err}
	}
	return build(file.Tables, path)
}

// LoadCUE reads definitions from CUE source. Tables are fields of the
// top-level "table" struct; the field label is the table name:
//
//	table: users: {
//	    fields: [{name: "email", type: "string", required: true}]
//	}
func LoadCUE(src []byte) (Set, error) {
	return loadCUE(src, "")
}

func loadCUE(src []byte, path string) (Set, error) {
	name := path
	if name == "" {
		name = "schema.cue"
	}
	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename(name))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Path: path, Message: "building CUE value", Err: err}
	}

	tablesVal := value.LookupPath(cue.ParsePath("table"))
	if !tablesVal.Exists() {
		return nil, &LoadError{Code: ErrCodeNoDefinition, Path: path, Message: "no table definitions found"}
	}
	iter, err := tablesVal.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Path: path, Message: "iterating tables", Err: err}
	}

	var defs []Definition
	for iter.Next() {
		var def Definition
		if err := iter.Value().Decode(&def); err != nil {
			return nil, &LoadError{Code: ErrCodeParse, Path: path, Message: fmt.Sprintf("decoding table %s", iter.Label()), Err: err}
		}
		if def.Table == "" {
			def.Table = iter.Label()
		}
		defs = append(defs, def)
	}
	return build(defs, path)
}

func build(defs []Definition, path string) (Set, error) {
	if len(defs) == 0 {
		return nil, &LoadError{Code: ErrCodeNoDefinition, Path: path, Message: "no table definitions found"}
	}
	set := make(Set, len(defs))
	for _, def := range defs {
		if _, dup := set[def.Table]; dup {
			return nil, &LoadError{Code: ErrCodeInvalid, Path: path, Message: fmt.Sprintf("table %s defined twice", def.Table)}
		}
		s, err := def.Build()
		if err != nil {
			return nil, &LoadError{Code: ErrCodeInvalid, Path: path, Message: err.Error(), Err: err}
		}
		set[def.Table] = s
	}
	return set, nil
}
