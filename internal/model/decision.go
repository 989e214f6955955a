package model

// Decision is the strategy's directional call on a Market.
type Decision int

const (
	Hold Decision = iota
	Long
	CloseLong
	Short
	CloseShort
)

func (d Decision) String() string {
	switch d {
	case Long:
		return "long"
	case CloseLong:
		return "close_long"
	case Short:
		return "short"
	case CloseShort:
		return "close_short"
	default:
		return "hold"
	}
}

// IsEntry reports whether the decision opens a new Position.
func (d Decision) IsEntry() bool {
	return d == Long || d == Short
}

// IsExit reports whether the decision closes an existing Position.
func (d Decision) IsExit() bool {
	return d == CloseLong || d == CloseShort
}
