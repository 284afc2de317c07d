package narration

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	emojiRE   = regexp.MustCompile(`[\x{1F000}-\x{1FAFF}\x{2600}-\x{26FF}\x{2700}-\x{27BF}]+`)
	markupRE  = regexp.MustCompile("[`*_#{}\\[\\]|<>]+")
	pauseRE   = regexp.MustCompile(`\s*(?:=>|->|=|→|—|–|～|〜)\s*`)
	newlineRE = regexp.MustCompile(`\n+`)
	blankRE   = regexp.MustCompile(`[ \t]+`)
)

var charReplacer = strings.NewReplacer(
	"\u201c", "", "\u201d", "", "\u2018", "", "\u2019", "",
	`"`, "", "'", "",
	"（", "", "）", "", "【", "", "】", "", "《", "", "》", "",
	"\u00a0", " ",
	"\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "",
)

const (
	sentenceBoundaries = "。！？.!?"
	trailingStrip      = " ,.;:!?，。！？；："
	repeatablePunct    = ",.;:!?"
)

// Sanitizer turns externally produced narration text into plain, TTS-safe text.
// Sanitize is idempotent.
type Sanitizer struct {
	Lang string
}

func (s Sanitizer) lang() string {
	k := strings.ToLower(strings.TrimSpace(s.Lang))
	if k == "" {
		return "zh"
	}
	return k
}

// MaxLen is the rune cap applied to sanitized text.
func (s Sanitizer) MaxLen() int {
	if strings.HasPrefix(s.lang(), "zh") {
		return 512
	}
	return 1024
}

// pause is what arrow and dash tokens collapse into. CJK text is NFKC-folded to ASCII
// punctuation, so the CJK pause is a bare ASCII comma.
func (s Sanitizer) pause() string {
	k := s.lang()
	if strings.HasPrefix(k, "zh") || strings.HasPrefix(k, "ja") || strings.HasPrefix(k, "ko") {
		return ","
	}
	return ", "
}

func (s Sanitizer) Sanitize(text string) string {
	out := norm.NFKC.String(text)
	out = strings.ReplaceAll(out, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")
	out = emojiRE.ReplaceAllString(out, "")
	out = charReplacer.Replace(out)
	out = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		// Control, format, private-use, surrogate and unassigned code points.
		if !unicode.In(r, unicode.L, unicode.M, unicode.N, unicode.P, unicode.S, unicode.Z) {
			return -1
		}
		return r
	}, out)
	out = pauseRE.ReplaceAllString(out, s.pause())
	out = markupRE.ReplaceAllString(out, " ")
	out = newlineRE.ReplaceAllString(out, " ")
	out = blankRE.ReplaceAllString(out, " ")
	out = collapsePunctRuns(out)
	out = strings.TrimSpace(out)
	// Removing characters can leave combining sequences that now compose.
	out = norm.NFKC.String(out)
	return truncateAtBoundary(out, s.MaxLen())
}

// collapsePunctRuns shortens runs of three or more identical ASCII punctuation marks to two.
func collapsePunctRuns(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := rune(-1)
	run := 0
	for _, r := range s {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run > 2 && strings.ContainsRune(repeatablePunct, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func truncateAtBoundary(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	cut := -1
	for i := max - 1; i >= 0; i-- {
		if strings.ContainsRune(sentenceBoundaries, runes[i]) {
			cut = i
			break
		}
	}
	if cut >= int(float64(max)*0.6) {
		return strings.TrimSpace(string(runes[:cut+1]))
	}
	return strings.TrimRightFunc(string(runes[:max]), func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(trailingStrip, r)
	})
}
