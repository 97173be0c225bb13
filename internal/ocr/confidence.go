package ocr

import (
	"regexp"
	"strings"
)

var (
	reEmailish = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)
	rePhoneish = regexp.MustCompile(`\+?\d[\d\s-]{7,}\d`)
	reURLish   = regexp.MustCompile(`(?i)\b(www\.|https?://)\S+`)
)

// naive heuristic confidence based on what a business card usually carries
func heuristicConfidence(txt string) float32 {
	score := float32(0.2) // base
	if reEmailish.MatchString(txt) {
		score += 0.25
	}
	if rePhoneish.MatchString(txt) {
		score += 0.25
	}
	if reURLish.MatchString(txt) {
		score += 0.1
	}
	lines := 0
	for _, ln := range strings.Split(txt, "\n") {
		if strings.TrimSpace(ln) != "" {
			lines++
		}
	}
	if lines >= 3 {
		score += 0.1
	} // name + company + at least one contact line
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// blendConfidence weighs the engine's own confidence higher when present.
func blendConfidence(engine, heuristic float32) float32 {
	conf := heuristic
	if engine > 0 {
		conf = 0.7*engine + 0.3*heuristic
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
