package fileutils

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const fence = "```"

// StripCodeFences returns the body of a markdown code block: everything after the first
// fence line and before the last fence. Text without fences is returned trimmed.
func StripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	start := strings.Index(t, fence)
	if start == -1 {
		return t
	}
	t = t[start+len(fence):]
	if nl := strings.IndexByte(t, '\n'); nl != -1 {
		t = t[nl+1:]
	}
	if end := strings.LastIndex(t, fence); end != -1 {
		t = t[:end]
	}
	return strings.TrimSpace(t)
}

// DecodeModelJSON unmarshals JSON from a model response. It tolerates markdown fences and
// prose around the payload by falling back to the outermost array or object it can find.
func DecodeModelJSON(outputText string, v any) error {
	s := StripCodeFences(outputText)
	if s == "" {
		return io.ErrUnexpectedEOF
	}

	err := json.Unmarshal([]byte(s), v)
	if err == nil {
		return nil
	}

	sub, ok := outermostJSON(s)
	if !ok {
		return fmt.Errorf("no JSON value found in model output (len=%d): %w", len(s), err)
	}
	if err := json.Unmarshal([]byte(sub), v); err != nil {
		return fmt.Errorf("failed to unmarshal extracted JSON (len=%d): %w", len(sub), err)
	}
	return nil
}

// outermostJSON picks whichever of '[' or '{' opens first and cuts at the last matching closer.
func outermostJSON(s string) (string, bool) {
	obj := strings.IndexByte(s, '{')
	arr := strings.IndexByte(s, '[')
	open, closer := obj, byte('}')
	if arr != -1 && (obj == -1 || arr < obj) {
		open, closer = arr, ']'
	}
	if open == -1 {
		return "", false
	}
	end := strings.LastIndexByte(s, closer)
	if end <= open {
		return "", false
	}
	return s[open : end+1], true
}
