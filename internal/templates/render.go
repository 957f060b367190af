package templates

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`{{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)\s*}}`)

const (
	ifOpen  = "{{#if"
	ifClose = "{{/if}}"
)

// Rendered is substituted text plus the placeholders left without a value.
type Rendered struct {
	Text       string
	Unresolved []string
}

// Render substitutes {{name}} placeholders and evaluates {{#if name}}…{{/if}}
// blocks. Blocks are kept when the variable is truthy and removed entirely
// otherwise. Unknown placeholders stay in the text and are reported.
func Render(tpl string, vars map[string]any) Rendered {
	text := renderConditionals(tpl, vars)

	missing := map[string]struct{}{}
	text = placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		val, ok := lookup(vars, name)
		if !ok || val == nil {
			missing[name] = struct{}{}
			return match
		}
		return formatValue(val)
	})

	out := Rendered{Text: text}
	for name := range missing {
		out.Unresolved = append(out.Unresolved, name)
	}
	sort.Strings(out.Unresolved)
	return out
}

// renderConditionals resolves the innermost block first so nested blocks
// work.
func renderConditionals(tpl string, vars map[string]any) string {
	for {
		end := strings.Index(tpl, ifClose)
		if end < 0 {
			return tpl
		}
		start := strings.LastIndex(tpl[:end], ifOpen)
		if start < 0 {
			// Stray close tag.
			tpl = tpl[:end] + tpl[end+len(ifClose):]
			continue
		}
		headerEnd := strings.Index(tpl[start:end], "}}")
		if headerEnd < 0 {
			return tpl
		}
		name := strings.TrimSpace(tpl[start+len(ifOpen) : start+headerEnd])
		inner := tpl[start+headerEnd+2 : end]

		val, _ := lookup(vars, name)
		replacement := ""
		if truthy(val) {
			replacement = inner
		}
		tpl = tpl[:start] + replacement + tpl[end+len(ifClose):]
	}
}

func lookup(vars map[string]any, path string) (any, bool) {
	var current any = vars
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func truthy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return strings.TrimSpace(rv.String()) != ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []string:
		return strings.Join(t, "\n")
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
