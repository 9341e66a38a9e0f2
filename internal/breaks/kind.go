package breaks

import "fmt"

// Kind identifies a break type. It is a closed enum so adding a kind is a
// compiler-checked change rather than a string comparison.
type Kind int

const (
	KindMicro Kind = iota // eye rest
	KindMacro             // stretch
	KindHydration         // water nudge
)

// Kinds lists every break kind in firing priority order: a due macro break
// outranks a due micro break, which outranks hydration.
var Kinds = [...]Kind{KindMacro, KindMicro, KindHydration}

func (k Kind) String() string {
	switch k {
	case KindMicro:
		return "micro"
	case KindMacro:
		return "macro"
	case KindHydration:
		return "hydration"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts a wire string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "micro":
		return KindMicro, nil
	case "macro":
		return KindMacro, nil
	case "hydration":
		return KindHydration, nil
	}
	return 0, fmt.Errorf("unknown break kind %q", s)
}

// Mode selects the clock basis for a timer.
type Mode string

const (
	// ModeActive advances only while the session is active and the user is
	// neither idle nor immersive.
	ModeActive Mode = "active"
	// ModeWallClock advances every tick while the session is active,
	// regardless of idle or immersive state.
	ModeWallClock Mode = "wall-clock"
)

// ParseMode converts a settings value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeActive, ModeWallClock:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown timer mode %q", s)
}
