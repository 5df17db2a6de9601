package runtime

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
)

var separatorRe = regexp.MustCompile(`[\s-]+`)
var wordBoundaryRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)
var nonWordRe = regexp.MustCompile(`[^a-z0-9_]+`)
var underscoreRunRe = regexp.MustCompile(`_+`)

func init() {
	_ = pongo2.RegisterFilter("snakecase", filterSnakecase)
	_ = pongo2.RegisterFilter("json", filterJSON)
	_ = pongo2.RegisterFilter("date", filterDate)
}

func filterSnakecase(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	s := in.String()
	s = separatorRe.ReplaceAllString(s, "_")
	s = wordBoundaryRe.ReplaceAllString(s, "${1}_${2}")
	s = strings.ToLower(s)
	s = nonWordRe.ReplaceAllString(s, "")
	s = underscoreRunRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	return pongo2.AsValue(s), nil
}

func filterJSON(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	b, err := json.Marshal(in.Interface())
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:json", OrigError: err}
	}
	return pongo2.AsValue(string(b)), nil
}

func filterDate(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	layout := param.String()
	if layout == "" {
		layout = time.RFC3339
	}
	t, ok := in.Interface().(time.Time)
	if !ok {
		return pongo2.AsValue(in.String()), nil
	}
	return pongo2.AsValue(t.Format(layout)), nil
}

// Renderer renders Liquid/Jinja2-style template text against a Context's
// artifacts, exposing the Context's config under the reserved "config" key.
type Renderer struct {
	set *pongo2.TemplateSet
}

// NewRenderer returns a renderer backed by a fresh, isolated pongo2 template
// set (so recipes from different runs never share a template cache).
func NewRenderer() *Renderer {
	return &Renderer{set: pongo2.NewSet("recipe", pongo2.MustNewLocalFileSystemLoader(""))}
}

// Render expands text against rc. Empty input renders to the empty string
// without invoking the template engine.
func (r *Renderer) Render(text string, rc *Context) (string, error) {
	if text == "" {
		return "", nil
	}

	tpl, err := r.set.FromString(text)
	if err != nil {
		return "", NewFlowError(
			KindRenderError,
			fmt.Sprintf("parse template %q against keys %v: %v", truncate(text, 120), rc.Keys(), err),
			err,
		)
	}

	vars := pongo2.Context{}
	for k, v := range rc.AsDict() {
		vars[k] = v
	}
	vars["config"] = rc.Config()

	out, err := tpl.Execute(vars)
	if err != nil {
		return "", NewFlowError(
			KindRenderError,
			fmt.Sprintf("render template %q against keys %v: %v", truncate(text, 120), rc.Keys(), err),
			err,
		)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
