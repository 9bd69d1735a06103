package agent

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// normalizeTask lowercases a task description and folds underscores into spaces
// so "search_knowledge" and "Search knowledge" route the same way
func normalizeTask(task string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(task, "_", " "))), " ")
}

// route is a task keyword bound to a handler
type route[H any] struct {
	keyword string
	handler H
}

// matchRoute returns the first route whose keyword appears in the task
func matchRoute[H any](task string, routes []route[H]) (H, bool) {
	normalized := normalizeTask(task)
	for _, r := range routes {
		if strings.Contains(normalized, normalizeTask(r.keyword)) {
			return r.handler, true
		}
	}
	var zero H
	return zero, false
}

func stringParam(m map[string]interface{}, key, def string) string {
	if v, ok := m[key]; ok && v != nil {
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case fmt.Stringer:
			return s.String()
		}
	}
	return def
}

func intParam(m map[string]interface{}, key string, def int) int {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case float32:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return def
}

func floatParam(m map[string]interface{}, key string, def float64) float64 {
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		if !math.IsNaN(n) {
			return n
		}
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return def
}

func boolParam(m map[string]interface{}, key string, def bool) bool {
	if b, ok := m[key].(bool); ok {
		return b
	}
	return def
}

// stringSlice accepts []string, []interface{} or a single string
func stringSlice(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok && str != "" {
				out = append(out, str)
			}
		}
		return out
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	}
	return nil
}

func mapParam(m map[string]interface{}, key string) map[string]interface{} {
	if v, ok := m[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}

// mapSlice accepts []map[string]interface{} or []interface{} of maps
func mapSlice(v interface{}) []map[string]interface{} {
	switch s := v.(type) {
	case []map[string]interface{}:
		return s
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(s))
		for _, e := range s {
			if m, ok := e.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// lookup checks the request context first and falls back to parameters
func lookup(req *Request, key string) (interface{}, bool) {
	if v, ok := req.Context[key]; ok && v != nil {
		return v, true
	}
	if v, ok := req.Parameters[key]; ok && v != nil {
		return v, true
	}
	return nil, false
}

func lookupString(req *Request, key, def string) string {
	if v, ok := lookup(req, key); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}

func titleWords(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
