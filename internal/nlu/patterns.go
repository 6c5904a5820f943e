package nlu

import "regexp"

var intentPatterns = map[Intent][]*regexp.Regexp{
	Order: compile(
		`\b(i want|i would like|i'll have|give me|can i have|may i have|i need)\b`,
		`\b(order|get|take|bring me)\b`,
		`\b(one|two|three|four|five|a|an)\s+\w+`,
		`\b(let me have|how about)\b`,
	),
	Suggest: compile(
		`\b(suggest|recommend|what do you suggest|what's good|what's popular)\b`,
		`\b(what should i|help me choose|what's your recommendation)\b`,
		`\b(best|favorite|most popular|top)\b`,
		`\b(what's fresh|what's new|special)\b`,
	),
	Confirm: compile(
		`\b(yes|yeah|yep|yup|sure|okay|ok|correct|right|that's right)\b`,
		`\b(confirm|confirmed|sounds good|perfect|exactly)\b`,
		`\b(go ahead|proceed|that works)\b`,
	),
	Cancel: compile(
		`\b(no|nope|cancel|nevermind|never mind|change|remove|delete)\b`,
		`\b(wrong|mistake|different|not that|scratch that)\b`,
		`\b(take off|take out|remove from)\b`,
	),
	Info: compile(
		`\b(what is|what's|tell me about|info|information|describe)\b`,
		`\b(how much|price|cost|expensive|cheap)\b`,
		`\b(contain|ingredient|allerg|gluten|vegan|vegetarian)\b`,
		`\b(calories|nutrition|healthy)\b`,
	),
	Done: compile(
		`\b(that's all|that's it|done|finished|complete|nothing else)\b`,
		`\b(ready|checkout|pay|bill|total|finish)\b`,
		`\b(i'm done|all set|that'll be all)\b`,
	),
	Greeting: compile(
		`\b(hello|hi|hey|good morning|good afternoon|good evening)\b`,
		`\b(how are you|what's up)\b`,
	),
}

var greetingWords = regexp.MustCompile(`\b(hello|hi|hey)\b`)

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// hits counts every pattern occurrence for the intent.
func hits(intent Intent, text string) int {
	n := 0
	for _, re := range intentPatterns[intent] {
		n += len(re.FindAllStringIndex(text, -1))
	}
	return n
}

// patternsMatched counts the intent's patterns with at least one occurrence.
func patternsMatched(intent Intent, text string) int {
	n := 0
	for _, re := range intentPatterns[intent] {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}
