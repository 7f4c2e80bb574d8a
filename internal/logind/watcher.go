package logind

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/bnema/lockhinter/internal/logging"
)

const nameOwnerChanged = "org.freedesktop.DBus.NameOwnerChanged"

// Event reports a change in logind's availability on the bus. Manager is nil
// when the name has no owner.
type Event struct {
	Manager SessionManager
}

// Watcher tracks ownership of the logind bus name and turns it into Events.
// The first event reflects the state at subscription time; later events
// follow NameOwnerChanged in arrival order. Consumers that only need the
// initial state read a single event and never look again.
type Watcher struct {
	bus     *dbus.Conn
	log     zerolog.Logger
	events  chan Event
	signals chan *dbus.Signal
	stop    chan struct{}
	done    chan struct{}
}

// Watch subscribes to ownership changes of the logind name on bus and primes
// the event channel with the current owner (or an absence event when the name
// is unowned).
func Watch(ctx context.Context, bus *dbus.Conn) (*Watcher, error) {
	w := &Watcher{
		bus:     bus,
		log:     *logging.FromContext(ctx),
		events:  make(chan Event, 4),
		signals: make(chan *dbus.Signal, 16),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	if err := bus.AddMatchSignal(matchOptions()...); err != nil {
		return nil, fmt.Errorf("failed to watch the %s name: %w", BusName, err)
	}
	bus.Signal(w.signals)

	// Read the current owner before the dispatcher starts so the priming
	// event is always delivered first.
	owner, err := NameOwner(bus)
	if err != nil {
		w.log.Debug().Err(err).Msg("logind has no owner on the bus")
		w.emit(Event{})
	} else {
		w.log.Debug().Str("owner", owner).Msg("logind is on the bus")
		w.emit(Event{Manager: NewConn(bus, owner)})
	}

	go w.dispatch()

	return w, nil
}

// Events returns the channel availability events are delivered on.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops the dispatcher, waits for it to exit, and removes the signal
// subscription. Call exactly once, after the last event has been consumed.
func (w *Watcher) Close() error {
	close(w.stop)
	<-w.done

	w.bus.RemoveSignal(w.signals)
	if err := w.bus.RemoveMatchSignal(matchOptions()...); err != nil {
		return fmt.Errorf("failed to stop watching the %s name: %w", BusName, err)
	}

	return nil
}

func (w *Watcher) dispatch() {
	defer close(w.done)

	for {
		select {
		case <-w.stop:
			return
		case sig := <-w.signals:
			if sig == nil {
				// Seems to happen on connection close
				return
			}
			w.handleSignal(sig)
		}
	}
}

func (w *Watcher) handleSignal(sig *dbus.Signal) {
	if sig.Name != nameOwnerChanged || len(sig.Body) != 3 {
		return
	}

	name, ok := sig.Body[0].(string)
	if !ok || name != BusName {
		return
	}
	newOwner, ok := sig.Body[2].(string)
	if !ok {
		return
	}

	if newOwner == "" {
		w.log.Debug().Msg("logind vanished from the bus")
		w.emit(Event{})
		return
	}

	w.log.Debug().Str("owner", newOwner).Msg("logind appeared on the bus")
	w.emit(Event{Manager: NewConn(w.bus, newOwner)})
}

// emit never blocks; once the buffer is full further events are dropped, as
// consumers only ever act on the first one.
func (w *Watcher) emit(ev Event) {
	select {
	case w.events <- ev:
	default:
	}
}

func matchOptions() []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchSender("org.freedesktop.DBus"),
		dbus.WithMatchObjectPath("/org/freedesktop/DBus"),
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, BusName),
	}
}
