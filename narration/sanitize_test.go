package narration

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		lang, in, want string
	}{
		{"en", "**Hello** \U0001F600 world!!!!", "Hello world!!"},
		{"en", "look -> here", "look, here"},
		{"zh", "看这里 -> 那里", "看这里,那里"},
		{"en", `He said "hi" to me`, "He said hi to me"},
		{"en", "line one\n\nline two", "line one line two"},
		{"en", "  \t ", ""},
		{"en", "zero\u200bwidth", "zerowidth"},
	}
	for _, tc := range cases {
		got := Sanitizer{Lang: tc.lang}.Sanitize(tc.in)
		if got != tc.want {
			t.Fatalf("Sanitize(%q, %s)=%q, want %q", tc.in, tc.lang, got, tc.want)
		}
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"**Bold** and `code` -> next",
		"“Quoted” text — with dashes… and ???",
		"中文（括号）【标题】 → 下一步！！！",
		"Tabs\tand\r\nnewlines",
	}
	for _, lang := range []string{"en", "zh"} {
		s := Sanitizer{Lang: lang}
		for _, in := range inputs {
			once := s.Sanitize(in)
			if twice := s.Sanitize(once); twice != once {
				t.Fatalf("lang=%s not idempotent: %q -> %q", lang, once, twice)
			}
		}
	}
}

func TestSanitize_Truncates(t *testing.T) {
	t.Parallel()

	s := Sanitizer{Lang: "zh"}
	got := s.Sanitize(strings.Repeat("很", 600))
	if n := utf8.RuneCountInString(got); n > s.MaxLen() {
		t.Fatalf("len=%d, want <= %d", n, s.MaxLen())
	}

	sentence := strings.Repeat("a", 90) + ". "
	long := strings.Repeat(sentence, 12)
	got = Sanitizer{Lang: "en"}.Sanitize(long)
	if !strings.HasSuffix(got, ".") {
		t.Fatalf("want cut at sentence boundary, got suffix %q", got[len(got)-5:])
	}
	if n := utf8.RuneCountInString(got); n > 1024 {
		t.Fatalf("len=%d, want <= 1024", n)
	}
}

func TestEstimateDuration(t *testing.T) {
	t.Parallel()

	if got := EstimateDuration("en", "   "); got != 0 {
		t.Fatalf("empty=%v, want 0", got)
	}
	if got := EstimateDuration("en", "Hi"); got != 1.0 {
		t.Fatalf("short en=%v, want 1.0 floor", got)
	}
	if got := EstimateDuration("zh", "你好"); got != 1.2 {
		t.Fatalf("short zh=%v, want 1.2 floor", got)
	}
	short := EstimateDuration("en", strings.Repeat("word ", 10))
	long := EstimateDuration("en", strings.Repeat("word ", 30))
	if !(long > short) {
		t.Fatalf("long=%v short=%v, want long > short", long, short)
	}
	if got := EstimateDuration("", strings.Repeat("字", 63)); got < 9.9 || got > 10.1 {
		t.Fatalf("zh default=%v, want ~10", got)
	}
}
