package detect

import (
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/dokzlo13/duskd/internal/event"
)

func sleepSignal(entering interface{}) *dbus.Signal {
	return &dbus.Signal{
		Path: login1Path,
		Name: prepareForSleep,
		Body: []interface{}{entering},
	}
}

func TestSleepSignalRoundTrip(t *testing.T) {
	var tr SleepTracker
	d := event.NewDispatcherWithSize(4)
	defer d.Close()
	w := NewSleepWatcher(&tr, d)

	w.handle(sleepSignal(true))
	if !tr.Sleeping() {
		t.Fatal("tracker not sleeping after PrepareForSleep(true)")
	}
	select {
	case ev := <-d.Events():
		t.Fatalf("unexpected %v event on suspend", ev.Kind)
	default:
	}

	w.handle(sleepSignal(false))
	if tr.Sleeping() {
		t.Fatal("tracker still sleeping after PrepareForSleep(false)")
	}
	select {
	case ev := <-d.Events():
		if ev.Kind != event.KindSleepResuming {
			t.Errorf("event = %v, want %v", ev.Kind, event.KindSleepResuming)
		}
	default:
		t.Error("no event emitted on resume")
	}
}

func TestSleepSignalIgnoresForeign(t *testing.T) {
	var tr SleepTracker
	d := event.NewDispatcherWithSize(4)
	defer d.Close()
	w := NewSleepWatcher(&tr, d)

	w.handle(&dbus.Signal{Name: "org.freedesktop.login1.Manager.SessionNew", Body: []interface{}{true}})
	w.handle(&dbus.Signal{Name: prepareForSleep})
	w.handle(sleepSignal("yes"))

	if tr.Sleeping() {
		t.Error("foreign signals flipped the tracker")
	}
	select {
	case ev := <-d.Events():
		t.Errorf("foreign signals emitted %v event", ev.Kind)
	default:
	}
}
