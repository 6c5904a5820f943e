package nlu

type Intent int

const (
	Unknown Intent = iota
	Order
	Suggest
	Confirm
	Cancel
	Info
	Done
	Greeting
)

// priority breaks score ties, first wins.
var priority = []Intent{Order, Suggest, Confirm, Cancel, Info, Done, Greeting}

func (i Intent) String() string {
	switch i {
	case Order:
		return "order"
	case Suggest:
		return "suggest"
	case Confirm:
		return "confirm"
	case Cancel:
		return "cancel"
	case Info:
		return "info"
	case Done:
		return "done"
	case Greeting:
		return "greeting"
	default:
		return "unknown"
	}
}
