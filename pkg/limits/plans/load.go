package plans

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.schema.json
var catalogSchema []byte

const catalogSchemaID = "inmemory://tollgate/catalog.schema.json"

// catalogFile is the on-disk YAML layout.
//
//	plans:
//	  - tier: starter
//	    display_name: Starter
//	    features:
//	      bulkOperations: false
//	    limits:
//	      clientSpaces: 3
//	      storageGB: unlimited
type catalogFile struct {
	Plans []planFile `yaml:"plans"`
}

type planFile struct {
	Tier        string                `yaml:"tier"`
	DisplayName string                `yaml:"display_name"`
	Features    map[string]bool       `yaml:"features"`
	Limits      map[string]limitValue `yaml:"limits"`
}

type limitValue Limit

func (l *limitValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: limit must be an integer or \"unlimited\"", node.Line)
	}
	if node.Value == "unlimited" {
		*l = limitValue(Unlimited)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("line %d: limit must be an integer or \"unlimited\"", node.Line)
	}
	if n < 0 {
		return fmt.Errorf("line %d: limit must not be negative", node.Line)
	}
	*l = limitValue(Finite(n))
	return nil
}

// LoadCatalog reads and validates a YAML plan catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan catalog: %w", err)
	}
	catalog, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("plan catalog %s: %w", path, err)
	}
	return catalog, nil
}

// ParseCatalog validates YAML catalog data against the catalog schema and
// builds a Catalog from it.
func ParseCatalog(data []byte) (*Catalog, error) {
	if err := validateCatalog(data); err != nil {
		return nil, err
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plan catalog: %w", err)
	}

	defs := make([]*Definition, 0, len(file.Plans))
	for _, p := range file.Plans {
		tier, err := ParseTier(p.Tier)
		if err != nil {
			return nil, err
		}

		def := &Definition{
			Tier:        tier,
			DisplayName: p.DisplayName,
			Features:    featureSet(),
			Limits:      make(map[Quota]Limit, len(p.Limits)),
		}
		for name, enabled := range p.Features {
			f, err := ParseFeature(name)
			if err != nil {
				return nil, fmt.Errorf("tier %s: %w", tier, err)
			}
			def.Features[f] = enabled
		}
		for name, limit := range p.Limits {
			q, err := ParseQuota(name)
			if err != nil {
				return nil, fmt.Errorf("tier %s: %w", tier, err)
			}
			def.Limits[q] = Limit(limit)
		}
		defs = append(defs, def)
	}

	return NewCatalog(defs)
}

func validateCatalog(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(catalogSchemaID, bytes.NewReader(catalogSchema)); err != nil {
		return fmt.Errorf("add catalog schema: %w", err)
	}
	schema, err := compiler.Compile(catalogSchemaID)
	if err != nil {
		return fmt.Errorf("compile catalog schema: %w", err)
	}

	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse plan catalog: %w", err)
	}

	// Round-trip through JSON so the validator sees JSON types.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalize plan catalog: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return fmt.Errorf("normalize plan catalog: %w", err)
	}

	if err := schema.Validate(payload); err != nil {
		return fmt.Errorf("plan catalog schema validation failed: %w", err)
	}
	return nil
}
