// Package nlu classifies transcribed utterances into ordering intents.
package nlu

import (
	log "log/slog"
	"sort"
	"strings"

	"waiter/internal/match"
)

const maxAlternatives = 3

type Entities struct {
	Items     []match.Candidate
	Quantity  int
	Modifiers []string
}

// ItemNames returns the mention names, best first.
func (e Entities) ItemNames() []string {
	out := make([]string, len(e.Items))
	for i, c := range e.Items {
		out[i] = c.Name
	}
	return out
}

// BestScore is the score of the top mention or zero.
func (e Entities) BestScore() float64 {
	if len(e.Items) == 0 {
		return 0
	}
	return e.Items[0].Score
}

type Alternative struct {
	Intent     Intent
	Confidence float64
}

type Result struct {
	Intent       Intent
	Entities     Entities
	Confidence   float64
	RawText      string
	Alternatives []Alternative
}

type Classifier struct {
	resolver *match.Resolver
	logger   *log.Logger
}

func NewClassifier(resolver *match.Resolver, logger *log.Logger) *Classifier {
	if resolver == nil {
		resolver = match.NewResolver(match.DefaultThreshold)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Classifier{resolver: resolver, logger: logger}
}

// Classify never fails; unusable input yields Unknown with zero confidence.
func (c *Classifier) Classify(text string, names []string) Result {
	res := Result{Intent: Unknown, RawText: text}

	norm := strings.ToLower(strings.TrimSpace(text))
	if norm == "" {
		return res
	}

	res.Intent = detect(norm)
	res.Entities = Entities{
		Items:     c.resolver.Match(norm, names),
		Quantity:  ExtractQuantity(norm),
		Modifiers: ExtractModifiers(norm),
	}
	res.Confidence = confidence(res.Intent, res.Entities, norm)
	res.Alternatives = alternatives(norm, res.Intent)

	c.logger.Info("Classified",
		"intent", res.Intent,
		"items", res.Entities.ItemNames(),
		"quantity", res.Entities.Quantity,
		"confidence", res.Confidence,
	)
	if len(res.Alternatives) > 0 {
		c.logger.Debug("Alternatives", "alts", res.Alternatives)
	}

	return res
}

func detect(text string) Intent {
	best, bestHits := Unknown, 0
	for _, intent := range priority {
		if n := hits(intent, text); n > bestHits {
			best, bestHits = intent, n
		}
	}
	if bestHits > 0 {
		return best
	}
	if greetingWords.MatchString(text) {
		return Greeting
	}
	return Unknown
}

func confidence(intent Intent, e Entities, text string) float64 {
	conf := 0.0
	if intent != Unknown {
		conf += 0.4
	}
	conf += 0.4 * e.BestScore()
	if e.Quantity > 0 {
		conf += 0.1
	}
	if len(e.Modifiers) > 0 {
		conf += 0.1
	}

	switch words := len(strings.Fields(text)); {
	case words < 3:
		conf -= 0.1
	case words <= 15:
		conf += 0.1
	}

	return min(1, max(0, conf))
}

func alternatives(text string, primary Intent) []Alternative {
	var out []Alternative
	for _, intent := range priority {
		if intent == primary {
			continue
		}
		if n := patternsMatched(intent, text); n > 0 {
			out = append(out, Alternative{Intent: intent, Confidence: min(0.8, 0.3*float64(n))})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > maxAlternatives {
		out = out[:maxAlternatives]
	}
	return out
}
