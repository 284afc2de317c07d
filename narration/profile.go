package narration

import (
	"fmt"
	"strings"
)

// Profile describes who the narration is written for.
type Profile struct {
	NarrationLang       string      `json:"narration_lang" validate:"required"`
	Audience            string      `json:"audience" validate:"required"`
	EnglishLevel        string      `json:"english_level"`
	MaxEntriesPerMinute int         `json:"max_entries_per_minute" validate:"min=1"`
	Directives          *Directives `json:"directives,omitempty"`
}

func DefaultProfile() Profile {
	return Profile{
		NarrationLang:       "zh",
		Audience:            "adult",
		EnglishLevel:        "intermediate",
		MaxEntriesPerMinute: 3,
	}
}

func (p Profile) langKey() string {
	k := strings.ToLower(strings.TrimSpace(p.NarrationLang))
	if k == "" {
		return "zh"
	}
	return k
}

func (p Profile) isEnglish() bool { return strings.HasPrefix(p.langKey(), "en") }

func (p Profile) isChild() bool {
	return strings.ToLower(strings.TrimSpace(p.Audience)) == "child"
}

// Direction keys accepted in Directives.Directions.
const (
	DirectionEnglishVocab   = "english_vocab"
	DirectionPlotSummary    = "plot_summary"
	DirectionKnowledgePoint = "knowledge_point"
	DirectionCultureBG      = "culture_bg"
	DirectionSummaryRecap   = "summary_recap"
)

var directionLabels = map[string][2]string{
	DirectionEnglishVocab:   {"英语知识点（词汇、语法、发音）", "English vocabulary/grammar/pronunciation"},
	DirectionPlotSummary:    {"剧情解说（情节梳理、转折点）", "Plot summary/turning points"},
	DirectionKnowledgePoint: {"专业知识点（学科概念、推导）", "Subject knowledge/concepts"},
	DirectionCultureBG:      {"文化背景/梗（俚语、典故）", "Cultural background/idioms"},
	DirectionSummaryRecap:   {"总结回顾（段落小结、要点提炼）", "Summary/key points recap"},
}

// Directives are user-selected narration directions.
type Directives struct {
	Directions []string `json:"directions"`
	FocusLevel string   `json:"focus_level"`
	CourseType string   `json:"course_type"`
}

// Localized holds the same prompt fragment in both narration languages.
type Localized struct {
	Key string
	Zh  string
	En  string
}

func (l Localized) For(p Profile) string {
	if p.isEnglish() {
		return l.En
	}
	return l.Zh
}

// LevelProfile describes the learner level in human terms. Keys look like
// "cefr:b1", "cn:primary:3" or "cn:cet4"; anything else is used verbatim.
func LevelProfile(level string) Localized {
	k := strings.ToLower(strings.TrimSpace(level))
	if c, ok := strings.CutPrefix(k, "cefr:"); ok {
		cefr := strings.ToUpper(strings.TrimSpace(c))
		if cefr == "A0" {
			return Localized{Key: k, Zh: "A0 入门", En: "CEFR A0 (starter)"}
		}
		return Localized{Key: k, Zh: "CEFR " + cefr, En: "CEFR " + cefr}
	}

	if strings.HasPrefix(k, "cn:") {
		parts := strings.Split(k, ":")
		switch {
		case len(parts) >= 2 && parts[1] == "k0":
			return Localized{Key: k, Zh: "幼儿启蒙", En: "kids (starter)"}
		case len(parts) >= 3 && parts[1] == "primary":
			return Localized{Key: k, Zh: fmt.Sprintf("小学%s年级", parts[2]), En: "primary grade " + parts[2]}
		case len(parts) >= 3 && parts[1] == "middle":
			return Localized{Key: k, Zh: fmt.Sprintf("初中%s年级", parts[2]), En: "middle school grade " + parts[2]}
		case len(parts) >= 3 && parts[1] == "high":
			return Localized{Key: k, Zh: fmt.Sprintf("高中%s年级", parts[2]), En: "high school grade " + parts[2]}
		case len(parts) >= 2 && parts[1] == "cet4":
			return Localized{Key: k, Zh: "大学英语四级", En: "CET-4"}
		case len(parts) >= 2 && parts[1] == "cet6":
			return Localized{Key: k, Zh: "大学英语六级", En: "CET-6"}
		}
		return Localized{Key: k, Zh: "国内标准", En: "CN level"}
	}

	if k == "" {
		return Localized{Key: "intermediate", Zh: "中级", En: "intermediate"}
	}
	return Localized{Key: k, Zh: level, En: level}
}

// FocusProfile picks what the commentary should concentrate on for the audience and level.
func FocusProfile(p Profile) Localized {
	level := strings.ToLower(strings.TrimSpace(p.EnglishLevel))

	if p.isChild() {
		beginner := strings.HasPrefix(level, "cn:k0") ||
			strings.HasPrefix(level, "cefr:a0") ||
			strings.HasPrefix(level, "cefr:a1") ||
			strings.HasPrefix(level, "cefr:a2") ||
			strings.HasPrefix(level, "cn:primary:1")
		if beginner {
			return Localized{
				Key: "child_beginner",
				Zh:  "重点：用很简单的中文讲清楚发生了什么；每次只点出1个关键英文词/短语。要像讲故事一样有趣：可以提一个小问题、让孩子猜一猜、或邀请跟读1次。",
				En:  "Focus: explain what is happening and the gist in very simple words; mention at most one key phrase.",
			}
		}
		return Localized{
			Key: "child",
			Zh:  "重点：鼓励语气，解释关键词和句子意思；避免逐句直译。可以加入小互动：找关键词、猜下一句、跟读短语。",
			En:  "Focus: encouraging tone; explain key words and meaning, optionally bilingual.",
		}
	}

	if strings.HasPrefix(level, "cefr:") && hasAnySuffix(level, "a0", "a1", "a2") {
		return Localized{
			Key: "cefr_basic",
			Zh:  "重点：更偏理解与释义，少讲术语；给出简短的英文片段并配中文解释。",
			En:  "Focus: comprehension-first; short quotes and plain explanation.",
		}
	}
	if strings.HasPrefix(level, "cefr:") && hasAnySuffix(level, "c1", "c2") {
		return Localized{
			Key: "cefr_advanced",
			Zh:  "重点：更偏细微语气、习惯用法、文化梗；减少直译。",
			En:  "Focus: nuance, idioms, cultural references; avoid basic translation.",
		}
	}
	if strings.HasPrefix(level, "cn:cet6") {
		return Localized{
			Key: "cet6",
			Zh:  "重点：挑高价值点（俚语/语气/反讽/隐含意思），少做逐句翻译。",
			En:  "Focus: high-value nuance; avoid line-by-line translation.",
		}
	}
	return Localized{
		Key: "default",
		Zh:  `重点：解释难点与关键词；必要时给出"英文片段 + 中文意思"。`,
		En:  "Focus: explain tricky points; use short quote + meaning when helpful.",
	}
}

// DirectionConstraints renders the selected directions as a prompt constraint.
// It is empty when no directions were chosen.
func DirectionConstraints(d *Directives) Localized {
	if d == nil || len(d.Directions) == 0 {
		return Localized{}
	}
	zh := make([]string, 0, len(d.Directions))
	en := make([]string, 0, len(d.Directions))
	for _, dir := range d.Directions {
		if labels, ok := directionLabels[dir]; ok {
			zh = append(zh, labels[0])
			en = append(en, labels[1])
			continue
		}
		zh = append(zh, dir)
		en = append(en, dir)
	}
	return Localized{
		Key: strings.Join(d.Directions, ","),
		Zh:  fmt.Sprintf("解说方向约束：本次解说必须围绕以下方向展开：%s。不要涉及其他无关方向。", strings.Join(zh, ", ")),
		En:  fmt.Sprintf("Direction constraint: Focus commentary on: %s. Do not cover unrelated topics.", strings.Join(en, ", ")),
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
