package ingest

import (
	"bufio"
	"bytes"
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// DefaultSelector picks every element of a top-level array, or the
// document itself when it is an object.
const DefaultSelector = ""

// Select runs a JSONPath selector over a parsed document and returns the
// matched objects.
func Select(root any, selector string) ([]map[string]any, error) {
	var results []any
	if selector == DefaultSelector {
		switch v := root.(type) {
		case []any:
			results = v
		default:
			results = []any{v}
		}
	} else {
		x, err := jp.ParseString(selector)
		if err != nil {
			return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
		}
		results = x.Get(root)
	}

	out := make([]map[string]any, 0, len(results))
	for i, r := range results {
		obj, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("match %d is %T, not an object", i, r)
		}
		out = append(out, obj)
	}
	return out, nil
}

// ParseJSON parses one JSON document and selects its records.
func ParseJSON(data []byte, selector string) ([]map[string]any, error) {
	root, err := oj.ParseString(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return Select(root, selector)
}

// ParseLines parses JSON Lines: one object per non-blank line. The
// selector, when set, is applied to each line.
func ParseLines(data []byte, selector string) ([]map[string]any, error) {
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		v, err := oj.ParseString(string(b))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		recs, err := Select(v, selector)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, recs...)
	}
	return out, sc.Err()
}
