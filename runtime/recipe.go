package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// StepDef is one entry in a Recipe's step list: a type name and its raw,
// not-yet-validated config object.
type StepDef struct {
	Type   string         `json:"type" yaml:"type"`
	Config map[string]any `json:"config" yaml:"config"`
}

// Recipe is a validated, ready-to-execute step list plus the subset of the
// host environment it is allowed to read via its env_mask.
type Recipe struct {
	Name        string    `json:"name,omitempty" yaml:"name,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []StepDef `json:"steps" yaml:"steps"`
	EnvMask     []string  `json:"env_mask,omitempty" yaml:"env_mask,omitempty"`
}

// LoadRecipe resolves source into a validated Recipe. source may be:
//   - *Recipe: used as-is (still shape-validated)
//   - map[string]any: decoded directly
//   - string starting with '{' or '[' (leading whitespace ignored): parsed
//     as inline JSON
//   - any other string: a file path, read and parsed by extension
//     (.yaml/.yml via yaml.v3, otherwise JSON); a missing or unreadable
//     path fails as missing-recipe
func LoadRecipe(source any) (*Recipe, error) {
	switch v := source.(type) {
	case *Recipe:
		if err := validateRecipeShape(v); err != nil {
			return nil, err
		}
		return v, nil

	case map[string]any:
		rec, err := decodeRecipeMap(v, "<inline>")
		if err != nil {
			return nil, err
		}
		return rec, nil

	case string:
		return loadRecipeFromString(v)

	default:
		return nil, NewFlowError(KindParseError, fmt.Sprintf("unsupported recipe source type %T", source), nil)
	}
}

// loadRecipeFromString decides, before ever touching the filesystem,
// whether s is inline JSON or a file path: a string that starts with '{' or
// '[' (ignoring leading whitespace) is inline source; anything else is
// treated as a path, so a missing recipe file always fails as
// *missing-recipe* rather than falling through to a misleading
// *parse-error* from trying to JSON-parse a bare path string.
func loadRecipeFromString(s string) (*Recipe, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return parseRecipeBytes([]byte(s), "<inline>")
	}

	info, err := os.Stat(s)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewFlowError(KindMissingRecipe, fmt.Sprintf("recipe path %q does not exist", s), err)
		}
		return nil, NewFlowError(KindMissingRecipe, fmt.Sprintf("stat recipe path %q: %v", s, err), err)
	}
	if info.IsDir() {
		return nil, NewFlowError(KindMissingRecipe, fmt.Sprintf("recipe path %q is a directory", s), nil)
	}

	data, err := os.ReadFile(s)
	if err != nil {
		return nil, NewFlowError(KindMissingRecipe, fmt.Sprintf("read recipe file %q: %v", s, err), err)
	}
	return parseRecipeBytes(data, s)
}

func parseRecipeBytes(data []byte, source string) (*Recipe, error) {
	var rec Recipe
	ext := strings.ToLower(filepath.Ext(source))

	var err error
	if ext == ".yaml" || ext == ".yml" {
		err = yaml.Unmarshal(data, &rec)
	} else {
		err = json.Unmarshal(data, &rec)
	}
	if err != nil {
		return nil, NewFlowError(KindParseError, fmt.Sprintf("parse recipe %q: %v", source, err), err)
	}

	if err := validateRecipeShape(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func decodeRecipeMap(m map[string]any, source string) (*Recipe, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, NewFlowError(KindParseError, fmt.Sprintf("re-marshal recipe map %q: %v", source, err), err)
	}
	var rec Recipe
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, NewFlowError(KindParseError, fmt.Sprintf("decode recipe map %q: %v", source, err), err)
	}
	if err := validateRecipeShape(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func validateRecipeShape(rec *Recipe) error {
	if rec == nil {
		return NewFlowError(KindValidationError, "recipe is nil", nil)
	}
	if len(rec.Steps) == 0 {
		return NewFlowError(KindValidationError, "recipe has no steps", nil)
	}
	for i, s := range rec.Steps {
		if strings.TrimSpace(s.Type) == "" {
			return NewFlowError(KindValidationError, fmt.Sprintf("step %d has no type", i), nil)
		}
	}
	return nil
}
