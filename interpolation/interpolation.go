// Package interpolation evaluates `{root.path}` templates against an explicit set of
// request-scoped values. Supported roots are env, context, info, root, args and variables.
package interpolation

import (
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Environment is the set of environment variables visible to templates.
// It is passed explicitly; this package never reads the process environment on its own.
type Environment map[string]string

// EnvironmentFromOS snapshots the process environment.
func EnvironmentFromOS() Environment {
	env := make(Environment)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[k] = v
	}
	return env
}

// Data holds the values a template may reference.
type Data struct {
	Env       Environment
	Context   any
	Info      any
	Root      any
	Args      any
	Variables any
}

var placeholder = regexp.MustCompile(`\{([^{}]+)\}`)

var knownRoots = map[string]bool{
	"env":       true,
	"context":   true,
	"info":      true,
	"root":      true,
	"args":      true,
	"variables": true,
}

// String evaluates tpl against data. Placeholders with a known root but no value become
// empty strings; braces whose first segment is not a known root are left as written.
func String(tpl string, data Data) string {
	if !strings.Contains(tpl, "{") {
		return tpl
	}

	r := &resolver{data: data, rendered: make(map[string][]byte)}
	return placeholder.ReplaceAllStringFunc(tpl, func(m string) string {
		v, ok := r.resolve(strings.TrimSpace(m[1 : len(m)-1]))
		if !ok {
			return m
		}
		return v
	})
}

// Headers evaluates every value of tpl and returns the resulting header set.
func Headers(tpl map[string]string, data Data) http.Header {
	h := make(http.Header, len(tpl))
	for k, v := range tpl {
		h.Set(k, String(v, data))
	}
	return h
}

// HasPlaceholders reports whether tpl contains at least one placeholder with a known root.
func HasPlaceholders(tpl string) bool {
	for _, m := range placeholder.FindAllStringSubmatch(tpl, -1) {
		root, _, _ := strings.Cut(strings.TrimSpace(m[1]), ".")
		if knownRoots[root] {
			return true
		}
	}
	return false
}

type resolver struct {
	data     Data
	rendered map[string][]byte
}

func (r *resolver) resolve(expr string) (string, bool) {
	root, path, _ := strings.Cut(expr, ".")

	var v any
	switch root {
	case "env":
		return r.data.Env[path], true
	case "context":
		v = r.data.Context
	case "info":
		v = r.data.Info
	case "root":
		v = r.data.Root
	case "args":
		v = r.data.Args
	case "variables":
		v = r.data.Variables
	default:
		return "", false
	}

	return r.lookup(root, path, v), true
}

func (r *resolver) lookup(root, path string, v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok && path == "" {
		return s
	}

	b, ok := r.rendered[root]
	if !ok {
		var err error
		b, err = json.Marshal(v)
		if err != nil {
			b = nil
		}
		r.rendered[root] = b
	}
	if b == nil {
		return ""
	}

	if path == "" {
		return string(b)
	}

	res := gjson.GetBytes(b, path)
	switch res.Type {
	case gjson.Null:
		return ""
	case gjson.JSON:
		return res.Raw
	default:
		return res.String()
	}
}
