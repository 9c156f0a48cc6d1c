// Package request decodes menu and substitution requests from JSON or YAML.
package request

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/iwvelando/portion-planner/pkg/constants"
	"github.com/iwvelando/portion-planner/pkg/nutrition"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownKind is returned when a request is neither a menu nor a substitution request.
	ErrUnknownKind = errors.New("unknown request kind")

	// ErrEmptyRequest is returned for an empty request document.
	ErrEmptyRequest = errors.New("empty request")
)

// Kind identifies what a request asks for.
type Kind int

const (
	KindMenu Kind = iota + 1
	KindSubstitution
)

func (k Kind) String() string {
	switch k {
	case KindMenu:
		return "menu"
	case KindSubstitution:
		return "substitution"
	}
	return "unknown"
}

// Request keys. The alternatives are accepted for the same field.
const (
	keyTarget      = "target"
	keyUserProfile = "user_profile"
	keyMenu        = "menu"
	keyFoodOld     = "food_old"
	keyOld         = "old"
	keyCandidates  = "candidates"
	keyTop         = "top"
)

// Request is a decoded request. Target and Menu are set for KindMenu; Old,
// Candidates and Top for KindSubstitution.
type Request struct {
	Kind Kind

	Target nutrition.Vector
	Menu   []nutrition.Dish

	Old        nutrition.Dish
	Candidates []nutrition.Dish
	Top        int
}

// FormatFromPath picks the decoding format from a file extension. Anything
// other than .yaml or .yml is read as JSON.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return constants.OutputFormatYAML
	}
	return constants.OutputFormatJSON
}

// Load reads and decodes the request file at path.
func Load(path string) (*Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening request file: %w", err)
	}
	defer f.Close()

	req, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return req, nil
}

// Decode reads a request document in the given format ("json" or "yaml").
func Decode(r io.Reader, format string) (*Request, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading request: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyRequest
	}

	raw, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	doc := gjson.Parse(raw)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: request must be an object", ErrUnknownKind)
	}
	if len(doc.Map()) == 0 {
		return nil, ErrEmptyRequest
	}

	switch {
	case doc.Get(keyMenu).Exists():
		return decodeMenu(doc)
	case first(doc, keyFoodOld, keyOld).Exists():
		return decodeSubstitution(doc)
	}
	return nil, fmt.Errorf("%w: expected %q or %q", ErrUnknownKind, keyMenu, keyFoodOld)
}

func toJSON(data []byte, format string) (string, error) {
	switch format {
	case constants.OutputFormatJSON, "":
		if !gjson.ValidBytes(data) {
			return "", fmt.Errorf("request is not valid JSON")
		}
		return string(data), nil
	case constants.OutputFormatYAML:
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return "", fmt.Errorf("parsing YAML request: %w", err)
		}
		if doc == nil {
			return "", ErrEmptyRequest
		}
		out, err := json.Marshal(doc)
		if err != nil {
			return "", fmt.Errorf("converting YAML request: %w", err)
		}
		return string(out), nil
	}
	return "", fmt.Errorf("unsupported request format %q", format)
}

func decodeMenu(doc gjson.Result) (*Request, error) {
	req := &Request{Kind: KindMenu}

	if target := first(doc, keyTarget, keyUserProfile); target.Exists() && target.Type != gjson.Null {
		v, err := nutrition.ParseTarget(target.Raw)
		if err != nil {
			return nil, fmt.Errorf("target: %w", err)
		}
		req.Target = v
	}

	menu, err := nutrition.ParseDishes(doc.Get(keyMenu).Raw)
	if err != nil {
		return nil, fmt.Errorf("menu: %w", err)
	}
	for i, dish := range menu {
		if dish.Problem != nil {
			return nil, fmt.Errorf("menu dish %d: %w", i, dish.Problem)
		}
	}
	req.Menu = menu

	return req, nil
}

func decodeSubstitution(doc gjson.Result) (*Request, error) {
	req := &Request{Kind: KindSubstitution}

	old := nutrition.ParseDish(first(doc, keyFoodOld, keyOld).Raw)
	if old.Problem != nil {
		return nil, fmt.Errorf("old dish: %w", old.Problem)
	}
	req.Old = old

	// malformed candidates are kept; the scorer ranks them last
	candidates, err := nutrition.ParseDishes(doc.Get(keyCandidates).Raw)
	if err != nil {
		return nil, fmt.Errorf("candidates: %w", err)
	}
	req.Candidates = candidates

	if top := doc.Get(keyTop); top.Exists() {
		if top.Type != gjson.Number {
			return nil, fmt.Errorf("top: expected a number, got %s", top.Raw)
		}
		req.Top = int(top.Int())
	}

	return req, nil
}

func first(doc gjson.Result, keys ...string) gjson.Result {
	for _, key := range keys {
		if v := doc.Get(key); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}
