package narration

import (
	"regexp"
	"strings"
	"unicode"
)

var englishWordRE = regexp.MustCompile(`[A-Za-z']+`)

// EstimateDuration approximates how long TTS will take to speak text, in seconds.
// Chinese narration is paced by character class; everything else by word count.
func EstimateDuration(lang, text string) float64 {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0
	}

	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(lang)), "zh") || strings.TrimSpace(lang) == "" {
		var cjk, latin, digits, punct int
		for _, r := range s {
			switch {
			case r >= '\u4e00' && r <= '\u9fff':
				cjk++
			case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
				latin++
			case unicode.IsDigit(r):
				digits++
			}
			if strings.ContainsRune("，。！？；：,.!?;:", r) {
				punct++
			}
		}
		d := float64(cjk)/6.3 + float64(latin)/18.0 + float64(digits)/6.0 + 0.10*float64(punct)
		return max(1.2, d)
	}

	words := len(englishWordRE.FindAllString(s, -1))
	punct := 0
	for _, r := range s {
		if strings.ContainsRune(",.!?;:", r) {
			punct++
		}
	}
	d := float64(words)/2.9 + 0.08*float64(punct)
	return max(1.0, d)
}
