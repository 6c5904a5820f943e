package nlu

import (
	"regexp"
	"strconv"
)

const DefaultQuantity = 1

var (
	countWords = map[string]int{
		"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
		"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
		"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
		"pair": 2, "couple": 2, "few": 3, "several": 4, "bunch": 5, "dozen": 12,
	}

	countRe = regexp.MustCompile(`\b(half[- ]dozen|zero|one|two|three|four|five|six|seven|eight|nine|ten|` +
		`eleven|twelve|thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|twenty|` +
		`pair|couple|few|several|bunch|dozen)\b`)
	countedRe = regexp.MustCompile(`\b(\d+)\s+[a-z]`)
	articleRe = regexp.MustCompile(`\b(a|an)\b`)
	digitsRe  = regexp.MustCompile(`\b\d+\b`)
)

// ExtractQuantity finds the requested count in normalized text. Count words
// come first, then a number in front of a word ("3 cheeseburgers"), then
// articles, then any bare number; the default is one.
func ExtractQuantity(text string) int {
	if m := countRe.FindString(text); m != "" {
		if n, ok := countWords[m]; ok {
			return n
		}
		return 6 // half dozen
	}
	if m := countedRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	if articleRe.MatchString(text) {
		return 1
	}
	for _, m := range digitsRe.FindAllString(text, -1) {
		if n, err := strconv.Atoi(m); err == nil {
			return n
		}
	}
	return DefaultQuantity
}

var (
	modifierVocab = compile(
		// size
		`\bsmall\b`, `\bmedium\b`, `\blarge\b`, `\bextra large\b`, `\bxl\b`, `\bjumbo\b`,
		// temperature
		`\bhot\b`, `\bcold\b`, `\biced\b`, `\bfrozen\b`, `\bwarm\b`, `\broom temperature\b`,
		// dietary
		`\bno dairy\b`, `\blactose free\b`, `\bgluten free\b`, `\bvegan\b`, `\bvegetarian\b`,
		// preparation
		`\bwell done\b`, `\bmedium rare\b`, `\brare\b`, `\bcrispy\b`, `\bsoft\b`, `\bextra sauce\b`, `\bno sauce\b`,
	)

	negationRe = regexp.MustCompile(`\bno\s+(\w+)`)
	additionRe = regexp.MustCompile(`\bextra\s+(\w+)`)
)

// ExtractModifiers collects size, temperature, dietary and preparation
// modifiers plus free-form "no X" and "extra X" phrases, without duplicates.
func ExtractModifiers(text string) []string {
	var (
		out  []string
		seen = make(map[string]struct{})
	)
	add := func(m string) {
		if _, ok := seen[m]; ok {
			return
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}

	for _, re := range modifierVocab {
		if m := re.FindString(text); m != "" {
			add(m)
		}
	}
	for _, m := range negationRe.FindAllStringSubmatch(text, -1) {
		add("no " + m[1])
	}
	for _, m := range additionRe.FindAllStringSubmatch(text, -1) {
		add("extra " + m[1])
	}
	return out
}
