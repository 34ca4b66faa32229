// Package catalog holds the static case and item definitions.
//
// The catalog bundled with the binary is always loaded. An extra file with
// user-defined cases can be merged on top of it. Every file is checked
// against an embedded JSON Schema before it is decoded.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/deppfellow/case-unboxing/internal/config"
	"github.com/deppfellow/case-unboxing/internal/model"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed data/cases.json
var bundledCatalog []byte

//go:embed data/catalog.schema.json
var catalogSchema []byte

const schemaURL = "catalog.schema.json"

var ErrDuplicateCase = errors.New("duplicate case id")

// Case is a case together with the items it can drop.
type Case struct {
	model.Case
	Items []model.Item `json:"items"`
}

// CaseSummary is the list view of a case.
type CaseSummary struct {
	model.Case
	ItemCount int `json:"itemCount"`
}

type file struct {
	Cases []Case `json:"cases"`
}

// Catalog is an immutable, id-indexed set of cases. It is safe for
// concurrent reads.
type Catalog struct {
	cases map[string]*Case
	order []string
}

func newCatalog() *Catalog {
	return &Catalog{cases: make(map[string]*Case)}
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	c, err := Parse(bundledCatalog)
	if err != nil {
		return nil, fmt.Errorf("bundled catalog: %w", err)
	}
	return c, nil
}

// New loads the bundled catalog and merges the custom file from cfg, if any.
func New(cfg config.CatalogConfig) (*Catalog, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	if cfg.CustomPath == "" {
		return c, nil
	}

	custom, err := Load(os.DirFS(filepath.Dir(cfg.CustomPath)), filepath.Base(cfg.CustomPath))
	if err != nil {
		return nil, err
	}

	if err := c.Merge(custom); err != nil {
		return nil, fmt.Errorf("merge %s: %w", cfg.CustomPath, err)
	}

	return c, nil
}

// Load reads and parses the catalog at path in fsys.
func Load(fsys fs.FS, path string) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse validates data against the catalog schema and indexes its cases.
func Parse(data []byte) (*Catalog, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := newCatalog()
	for i := range f.Cases {
		if err := c.add(&f.Cases[i]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) add(cs *Case) error {
	if _, ok := c.cases[cs.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCase, cs.ID)
	}
	c.cases[cs.ID] = cs
	c.order = append(c.order, cs.ID)
	return nil
}

// Merge adds every case of other to c. It fails without modifying c when an
// id is present in both.
func (c *Catalog) Merge(other *Catalog) error {
	for _, id := range other.order {
		if _, ok := c.cases[id]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateCase, id)
		}
	}
	for _, id := range other.order {
		if err := c.add(other.cases[id]); err != nil {
			return err
		}
	}
	return nil
}

// Case returns the case with the given id.
func (c *Catalog) Case(id string) (*Case, bool) {
	cs, ok := c.cases[id]
	return cs, ok
}

// Cases lists every case in load order.
func (c *Catalog) Cases() []CaseSummary {
	out := make([]CaseSummary, 0, len(c.order))
	for _, id := range c.order {
		cs := c.cases[id]
		out = append(out, CaseSummary{Case: cs.Case, ItemCount: len(cs.Items)})
	}
	return out
}

// Len returns the number of cases.
func (c *Catalog) Len() int {
	return len(c.order)
}

var compiledSchema *jsonschema.Schema

func init() {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(catalogSchema))
	if err != nil {
		panic(fmt.Sprintf("catalog: parse schema: %v", err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		panic(fmt.Sprintf("catalog: add schema: %v", err))
	}

	compiledSchema, err = compiler.Compile(schemaURL)
	if err != nil {
		panic(fmt.Sprintf("catalog: compile schema: %v", err))
	}
}

func validateSchema(data []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}

	if err := compiledSchema.Validate(doc); err != nil {
		var validationErr *jsonschema.ValidationError
		if errors.As(err, &validationErr) {
			var lines []string
			collectErrors(validationErr, &lines)
			return fmt.Errorf("schema validation failed:\n%s", strings.Join(lines, "\n"))
		}
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

func collectErrors(err *jsonschema.ValidationError, lines *[]string) {
	if len(err.Causes) == 0 {
		location := "/" + strings.Join(err.InstanceLocation, "/")
		*lines = append(*lines, fmt.Sprintf("  - at %s: %s", location, strings.Join(err.ErrorKind.KeywordPath(), ".")))
		return
	}
	for _, cause := range err.Causes {
		collectErrors(cause, lines)
	}
}
