package ports

// ActivityKind identifies a user interaction signal that counts as
// session-renewing activity.
type ActivityKind string

const (
	ActivityPointerDown ActivityKind = "pointerdown"
	ActivityPointerMove ActivityKind = "pointermove"
	ActivityKeyPress    ActivityKind = "keypress"
	ActivityScroll      ActivityKind = "scroll"
	ActivityTouchStart  ActivityKind = "touchstart"
	ActivityClick       ActivityKind = "click"

	// ActivityVisible marks the page becoming visible again (tab refocus).
	// Backgrounded clients may not deliver timer ticks reliably, so refocus
	// reschedules the deadline unconditionally rather than trusting elapsed
	// background time.
	ActivityVisible ActivityKind = "visible"
)

// QualifyingActivity is the full set of interaction signals the inactivity
// monitor subscribes to.
var QualifyingActivity = []ActivityKind{
	ActivityPointerDown,
	ActivityPointerMove,
	ActivityKeyPress,
	ActivityScroll,
	ActivityTouchStart,
	ActivityClick,
	ActivityVisible,
}

// KnownActivity reports whether k is one of the qualifying kinds.
func KnownActivity(k ActivityKind) bool {
	for _, q := range QualifyingActivity {
		if k == q {
			return true
		}
	}
	return false
}

// ActivitySource delivers interaction signals to subscribers. Handlers are
// invoked synchronously in delivery order so a reschedule always happens
// before any later signal is observed.
type ActivitySource interface {
	// Subscribe registers a handler for the given kinds and returns an
	// unsubscribe function.
	Subscribe(kinds []ActivityKind, handler func(ActivityKind)) func()
}
