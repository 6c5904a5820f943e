package waiter

import (
	"context"
	"regexp"
	"strings"

	"waiter/internal/catalog"
	"waiter/internal/nlu"
	"waiter/internal/order"
)

const (
	popularCount = 3
	// preciseScore separates substring and all-words hits from fuzzy ones.
	preciseScore = 0.9
)

type handler func(c *Controller, ctx context.Context, res nlu.Result, menu *catalog.Catalog) (Outcome, error)

func (c *Controller) dispatchTable() map[nlu.Intent]handler {
	return map[nlu.Intent]handler{
		nlu.Order:    (*Controller).handleOrder,
		nlu.Suggest:  (*Controller).handleSuggest,
		nlu.Confirm:  (*Controller).handleConfirm,
		nlu.Cancel:   (*Controller).handleCancel,
		nlu.Info:     (*Controller).handleInfo,
		nlu.Done:     (*Controller).handleDone,
		nlu.Greeting: (*Controller).handleGreeting,
		nlu.Unknown:  (*Controller).handleUnknown,
	}
}

// precise keeps the substring and all-words matches, minus any name that is
// part of a longer matched name ("Burger" inside "Cheeseburger").
func precise(e nlu.Entities) []string {
	var names []string
	for _, it := range e.Items {
		if it.Score >= preciseScore {
			names = append(names, it.Name)
		}
	}

	out := names[:0:0]
	for _, n := range names {
		inner := false
		for _, other := range names {
			if other != n && strings.Contains(strings.ToLower(other), strings.ToLower(n)) {
				inner = true
				break
			}
		}
		if !inner {
			out = append(out, n)
		}
	}
	return out
}

var (
	infoCue  = regexp.MustCompile(`\b(?:what's in|what is in|what's|what is|tell me about|describe|how much is|how much are)\s+([a-z0-9][a-z0-9 '-]*)`)
	orderCue = regexp.MustCompile(`\b(?:i want|i would like|i'd like|i'll have|give me|can i have|may i have|i need|let me have|how about|bring me|order|get)\s+(?:to\s+(?:order|get|have)\s+)?([a-z0-9][a-z0-9 '-]*)`)

	fillers = map[string]bool{
		"a": true, "an": true, "the": true, "some": true, "of": true, "another": true,
		"couple": true, "few": true, "pair": true, "half": true, "dozen": true,
		"one": true, "two": true, "three": true, "four": true, "five": true, "six": true,
		"seven": true, "eight": true, "nine": true, "ten": true, "eleven": true, "twelve": true,
	}
	stops = map[string]bool{"and": true, "with": true, "please": true, "thanks": true, "too": true}
)

// spoken returns the item phrase that follows cue in text, without leading
// counts or articles.
func spoken(cue *regexp.Regexp, text string) string {
	m := cue.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return ""
	}

	words := strings.Fields(m[1])
	for len(words) > 0 && (fillers[words[0]] || isNumber(words[0])) {
		words = words[1:]
	}
	for i, w := range words {
		if stops[w] {
			words = words[:i]
			break
		}
	}
	return strings.Join(words, " ")
}

func isNumber(w string) bool {
	for _, r := range w {
		if r < '0' || r > '9' {
			return false
		}
	}
	return w != ""
}

// resolve maps the mentions in res onto catalog items. Fuzzy matches only
// stand when the phrase the customer said is itself found in the catalog;
// otherwise missing holds that phrase.
func resolve(res nlu.Result, menu *catalog.Catalog, cue *regexp.Regexp) (items []catalog.Item, missing string) {
	if names := precise(res.Entities); len(names) > 0 {
		for _, name := range names {
			item, err := menu.Search(name)
			if err != nil {
				return nil, name
			}
			items = append(items, item)
		}
		return items, ""
	}

	said := spoken(cue, res.RawText)
	if said == "" {
		return nil, ""
	}
	item, err := menu.Search(said)
	if err != nil {
		return nil, said
	}
	return []catalog.Item{item}, ""
}

func (c *Controller) handleOrder(ctx context.Context, res nlu.Result, menu *catalog.Catalog) (Outcome, error) {
	if len(res.Entities.Items) == 0 {
		return Miss, c.say(ctx, msgWhichItem)
	}
	qty := res.Entities.Quantity
	if qty < 1 {
		return Miss, c.say(ctx, msgHowMany)
	}

	items, missing := resolve(res, menu, orderCue)
	if len(items) == 0 {
		if missing == "" {
			return Miss, c.say(ctx, msgWhichItem)
		}
		return Miss, c.say(ctx, msgNotOnMenu(missing))
	}

	for _, item := range items {
		if err := c.Ledger.Add(item.Name, qty, item.Price, item.Category, res.Entities.Modifiers); err != nil {
			return Failure, err
		}
		if err := c.say(ctx, msgAdded(qty, item.Name, item.Price*order.Money(qty))); err != nil {
			return Failure, err
		}
	}
	return Success, nil
}

func (c *Controller) handleSuggest(ctx context.Context, _ nlu.Result, menu *catalog.Catalog) (Outcome, error) {
	popular := menu.Popular(popularCount)
	if len(popular) == 0 {
		return Success, c.say(ctx, msgMenuIntro)
	}
	return Success, c.say(ctx, msgPopular(popular))
}

func (c *Controller) handleConfirm(ctx context.Context, _ nlu.Result, _ *catalog.Catalog) (Outcome, error) {
	o := c.Ledger.Current()
	if c.cfg.SaveOnConfirm && o != nil && !o.Empty() {
		if _, err := c.saveOrder(ctx); err != nil {
			return Failure, err
		}
		c.Ledger.Start()
	}
	return Success, c.say(ctx, msgConfirmed)
}

func (c *Controller) handleCancel(ctx context.Context, _ nlu.Result, _ *catalog.Catalog) (Outcome, error) {
	return Success, c.say(ctx, msgCancelled)
}

func (c *Controller) handleInfo(ctx context.Context, res nlu.Result, menu *catalog.Catalog) (Outcome, error) {
	items, missing := resolve(res, menu, infoCue)
	if len(items) == 0 {
		if missing == "" {
			return Miss, c.say(ctx, msgWhichInfo)
		}
		return Success, c.say(ctx, msgNoInfo(missing))
	}

	for _, item := range items {
		if err := c.say(ctx, msgItemInfo(item)); err != nil {
			return Failure, err
		}
	}
	return Success, nil
}

func (c *Controller) handleDone(ctx context.Context, _ nlu.Result, _ *catalog.Catalog) (Outcome, error) {
	o := c.Ledger.Current()
	if o == nil || o.Empty() {
		return Miss, c.say(ctx, msgNothingOrdered)
	}
	if err := c.say(ctx, msgSummary(o)); err != nil {
		return Failure, err
	}
	return Success, c.say(ctx, msgConfirmPrompt)
}

func (c *Controller) handleGreeting(ctx context.Context, _ nlu.Result, _ *catalog.Catalog) (Outcome, error) {
	return Success, c.say(ctx, msgHello)
}

func (c *Controller) handleUnknown(ctx context.Context, _ nlu.Result, _ *catalog.Catalog) (Outcome, error) {
	return Miss, c.say(ctx, msgNotUnderstood)
}
