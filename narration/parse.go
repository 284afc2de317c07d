package narration

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/theimaginaryfoundation/narration-script/narration/fileutils"
)

const defaultCandidateDuration = 2.0

// ParseCandidates turns raw oracle output into candidate entries. Items with an unknown
// or ignore action, or whose script sanitizes to nothing, are dropped. Output that is
// not decodable JSON is an error for the whole window.
func ParseCandidates(content string, san Sanitizer) ([]ScriptEntry, error) {
	var data any
	if err := fileutils.DecodeModelJSON(content, &data); err != nil {
		return nil, fmt.Errorf("ParseCandidates: decode oracle output: %w", err)
	}

	var items []any
	switch v := data.(type) {
	case []any:
		items = v
	case map[string]any:
		if inner, ok := v["entries"].([]any); ok {
			items = inner
		} else {
			items = []any{v}
		}
	default:
		items = []any{v}
	}

	out := make([]ScriptEntry, 0, len(items))
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		rawAction, ok := obj["action_type"]
		if !ok {
			rawAction = string(ActionIgnore)
		}
		action, ok := normalizeAction(rawAction)
		if !ok || action == ActionIgnore {
			continue
		}

		ducking := action == ActionGapFilling
		if v, ok := obj["ducking"]; ok {
			ducking = truthy(v)
		}

		script := ""
		if v, ok := obj["script"]; ok && v != nil {
			script = san.Sanitize(stringify(v))
		}
		if script == "" {
			continue
		}

		out = append(out, ScriptEntry{
			TimeIn:            floatOr(obj["time_in"], 0),
			ActionType:        action,
			Script:            script,
			Ducking:           ducking,
			EstimatedDuration: floatOr(obj["estimated_duration"], defaultCandidateDuration),
			Ref:               parseRef(obj["ref"]),
			Widget:            parseWidget(obj["widget"]),
		})
	}
	return out, nil
}

func normalizeAction(v any) (ActionType, bool) {
	if v == nil {
		return "", false
	}
	s := strings.ToLower(strings.TrimSpace(stringify(v)))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	switch a := ActionType(s); a {
	case ActionPreTeachPause, ActionGapFilling, ActionIgnore:
		return a, true
	}
	return "", false
}

func parseRef(v any) Ref {
	obj, ok := v.(map[string]any)
	if !ok {
		return Ref{}
	}
	ref := Ref{
		SubtitleIndexes: intList(obj["subtitle_indexes"]),
		SceneIDs:        intList(obj["scene_ids"]),
		GapAfterIndexes: intList(obj["gap_after_indexes"]),
	}
	if r, ok := obj["reason"]; ok && r != nil {
		ref.Reason = stringify(r)
	}
	return ref
}

func parseWidget(v any) *Widget {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	raw := obj["widget_type"]
	if raw == nil {
		return nil
	}
	wt := WidgetType(strings.TrimSpace(stringify(raw)))
	if !wt.Valid() {
		return nil
	}
	title := ""
	if t, ok := obj["title"]; ok && t != nil {
		title = stringify(t)
	}
	body, ok := obj["body"].(map[string]any)
	if !ok {
		body = map[string]any{}
	}
	return &Widget{WidgetType: wt, Title: title, Body: body}
}

func intList(v any) []int {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(arr))
	for _, x := range arr {
		if n, ok := toInt(x); ok {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return int(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func floatOr(v any, def float64) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case bool:
		if x {
			f = 1
		}
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return def
		}
		f = p
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}
