package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// Stats summarizes size and encoding properties of a document body.
type Stats struct {
	SizeBytes  int    `json:"size_bytes"`
	Chars      int    `json:"chars"`
	Words      int    `json:"words"`
	Sentences  int    `json:"sentences"`
	Paragraphs int    `json:"paragraphs"`
	Encoding   string `json:"encoding"`
}

// Analyze computes Stats for content.
func Analyze(content string) Stats {
	st := Stats{
		SizeBytes: len(content),
		Chars:     utf8.RuneCountInString(content),
		Words:     CountWords(content),
		Encoding:  DetectEncoding([]byte(content)),
	}
	for _, p := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(p) != "" {
			st.Paragraphs++
		}
	}
	for _, s := range Sentences(content) {
		if strings.TrimSpace(s) != "" {
			st.Sentences++
		}
	}
	return st
}

// CountWords counts every Han rune as one word and every other maximal
// letter/digit run as one word.
func CountWords(content string) int {
	n := 0
	inWord := false
	for _, r := range content {
		switch {
		case unicode.Is(unicode.Han, r):
			n++
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !inWord {
				n++
				inWord = true
			}
		default:
			inWord = false
		}
	}
	return n
}

// DetectEncoding names the encoding of content: "ascii" for 7-bit input,
// "utf-8" for valid UTF-8, otherwise the HTML5 sniffing result.
func DetectEncoding(content []byte) string {
	ascii := true
	for _, c := range content {
		if c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return "ascii"
	}
	if utf8.Valid(content) {
		return "utf-8"
	}
	_, name, _ := charset.DetermineEncoding(content, "")
	return name
}
