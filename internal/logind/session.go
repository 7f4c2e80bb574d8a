// Package logind talks to systemd-logind over the D-Bus system bus.
package logind

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// BusName is the well-known bus name owned by systemd-logind.
const BusName = "org.freedesktop.login1"

const (
	managerPath      = dbus.ObjectPath("/org/freedesktop/login1")
	managerInterface = "org.freedesktop.login1.Manager"
	sessionInterface = "org.freedesktop.login1.Session"
	propertiesIface  = "org.freedesktop.DBus.Properties"
)

// SessionManager is the slice of logind the supervisor drives. *Conn
// implements it against the real bus; tests substitute fakes.
type SessionManager interface {
	SessionByPID(pid int) (dbus.ObjectPath, error)
	SessionState(session dbus.ObjectPath) (SessionState, error)
	SetLockedHint(session dbus.ObjectPath, locked bool) error
}

// Compile-time interface check.
var _ SessionManager = (*Conn)(nil)

// SessionState is a point-in-time snapshot of a logind session. It is never
// cached; callers re-read when they need fresh values.
type SessionState struct {
	State      string
	LockedHint bool
}

// Conn addresses logind through an existing system bus connection. All calls
// go to the unique name that owned org.freedesktop.login1 when the Conn was
// created, so a restarted logind yields call errors rather than silently
// talking to a different instance.
type Conn struct {
	bus   *dbus.Conn
	owner string
}

// NewConn wraps a bus connection and the unique name of the logind owner.
func NewConn(bus *dbus.Conn, owner string) *Conn {
	return &Conn{bus: bus, owner: owner}
}

// Owner returns the unique bus name this Conn addresses.
func (c *Conn) Owner() string {
	return c.owner
}

// NameOwner returns the unique name currently owning the logind bus name.
func NameOwner(bus *dbus.Conn) (string, error) {
	var owner string
	err := bus.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, BusName).Store(&owner)
	if err != nil {
		return "", fmt.Errorf("failed to get the %s owner: %w", BusName, err)
	}
	return owner, nil
}

// SessionByPID resolves the session a process belongs to.
func (c *Conn) SessionByPID(pid int) (dbus.ObjectPath, error) {
	call := c.bus.Object(c.owner, managerPath).
		Call(managerInterface+".GetSessionByPID", 0, uint32(pid))
	if call.Err != nil {
		return "", fmt.Errorf("GetSessionByPID(%d): %w", pid, call.Err)
	}

	var session dbus.ObjectPath
	if err := call.Store(&session); err != nil {
		return "", fmt.Errorf("unexpected GetSessionByPID reply: %w", err)
	}

	return session, nil
}

// SessionState reads the session's State and LockedHint properties in one
// GetAll round trip.
func (c *Conn) SessionState(session dbus.ObjectPath) (SessionState, error) {
	call := c.bus.Object(c.owner, session).
		Call(propertiesIface+".GetAll", 0, sessionInterface)
	if call.Err != nil {
		return SessionState{}, fmt.Errorf("GetAll on %s: %w", session, call.Err)
	}

	var props map[string]dbus.Variant
	if err := call.Store(&props); err != nil {
		return SessionState{}, fmt.Errorf("unexpected GetAll reply: %w", err)
	}

	return sessionStateFromProps(props)
}

func sessionStateFromProps(props map[string]dbus.Variant) (SessionState, error) {
	stateVariant, ok := props["State"]
	if !ok {
		return SessionState{}, &PropertyMissingError{Key: "State"}
	}
	state, ok := stateVariant.Value().(string)
	if !ok {
		return SessionState{}, &TypeError{Name: "State", Want: "string", Got: fmt.Sprintf("%T", stateVariant.Value())}
	}

	lockedVariant, ok := props["LockedHint"]
	if !ok {
		return SessionState{}, &PropertyMissingError{Key: "LockedHint"}
	}
	locked, ok := lockedVariant.Value().(bool)
	if !ok {
		return SessionState{}, &TypeError{Name: "LockedHint", Want: "bool", Got: fmt.Sprintf("%T", lockedVariant.Value())}
	}

	return SessionState{State: state, LockedHint: locked}, nil
}

// SetLockedHint sets or clears the session's LockedHint property.
func (c *Conn) SetLockedHint(session dbus.ObjectPath, locked bool) error {
	err := c.bus.Object(c.owner, session).
		Call(sessionInterface+".SetLockedHint", 0, locked).Err
	if err != nil {
		return fmt.Errorf("could not set locked hint to %t: %w", locked, err)
	}

	return nil
}
