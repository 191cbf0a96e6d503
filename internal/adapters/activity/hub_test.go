package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gestia/sessiond/internal/ports"
)

func TestHub_ReportDeliversToMatchingKinds(t *testing.T) {
	h := NewHub()

	var got []ports.ActivityKind
	unsubscribe := h.Subscribe(
		[]ports.ActivityKind{ports.ActivityClick, ports.ActivityScroll},
		func(k ports.ActivityKind) { got = append(got, k) },
	)
	defer unsubscribe()

	h.Report(ports.ActivityClick)
	h.Report(ports.ActivityKeyPress) // not subscribed
	h.Report(ports.ActivityScroll)

	assert.Equal(t, []ports.ActivityKind{ports.ActivityClick, ports.ActivityScroll}, got)
}

func TestHub_ReportDropsUnknownKinds(t *testing.T) {
	h := NewHub()

	called := false
	unsubscribe := h.Subscribe(ports.QualifyingActivity, func(ports.ActivityKind) { called = true })
	defer unsubscribe()

	h.Report(ports.ActivityKind("made-up"))
	assert.False(t, called)
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()

	count := 0
	unsubscribe := h.Subscribe([]ports.ActivityKind{ports.ActivityClick}, func(ports.ActivityKind) { count++ })

	h.Report(ports.ActivityClick)
	unsubscribe()
	h.Report(ports.ActivityClick)

	assert.Equal(t, 1, count)
}

func TestHub_SynchronousDeliveryOrder(t *testing.T) {
	h := NewHub()

	var order []string
	u1 := h.Subscribe([]ports.ActivityKind{ports.ActivityVisible}, func(ports.ActivityKind) { order = append(order, "first") })
	defer u1()
	u2 := h.Subscribe([]ports.ActivityKind{ports.ActivityVisible}, func(ports.ActivityKind) { order = append(order, "second") })
	defer u2()

	h.Report(ports.ActivityVisible)

	// Report returns only after every handler ran.
	assert.Len(t, order, 2)
}
