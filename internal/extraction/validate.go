package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// lineItemSchema describes a well-formed manifest row from the vision model
const lineItemSchema = `{
  "type": "object",
  "properties": {
    "cikkszam":        {"type": "string", "pattern": "^[0-9]{6}$"},
    "bizonylat_szam":  {"type": "string", "pattern": "^[0-9]{5}$"},
    "cikk_megnevezes": {"type": "string"},
    "elvi_keszlet":    {"type": "integer", "minimum": 0}
  },
  "required": ["cikkszam", "bizonylat_szam", "elvi_keszlet"]
}`

var compiledLineItemSchema = mustCompileSchema("line_item.json", lineItemSchema)

func mustCompileSchema(name, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// ValidateLineItem checks the shape of one vision row. It never rejects the row.
func ValidateLineItem(index int, it VisionLineItem) []ValidationWarning {
	doc := map[string]any{
		"cikkszam":        string(it.ProductCode),
		"bizonylat_szam":  string(it.ManifestNumber),
		"cikk_megnevezes": it.ProductName,
	}
	if it.ExpectedQty.Set {
		doc["elvi_keszlet"] = it.ExpectedQty.Value
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return []ValidationWarning{{Index: index, Message: err.Error()}}
	}
	var v any
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&v); err != nil {
		return []ValidationWarning{{Index: index, Message: err.Error()}}
	}

	err = compiledLineItemSchema.Validate(v)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []ValidationWarning{{Index: index, Message: err.Error()}}
	}

	var warnings []ValidationWarning
	for _, leaf := range leafErrors(verr) {
		field := strings.TrimPrefix(leaf.InstanceLocation, "/")
		value := ""
		if raw, ok := doc[field]; ok {
			value = fmt.Sprint(raw)
		}
		warnings = append(warnings, ValidationWarning{
			Index:   index,
			Field:   field,
			Value:   value,
			Message: leaf.Message,
		})
	}
	return warnings
}

func leafErrors(e *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(e.Causes) == 0 {
		return []*jsonschema.ValidationError{e}
	}
	var out []*jsonschema.ValidationError
	for _, c := range e.Causes {
		out = append(out, leafErrors(c)...)
	}
	return out
}
