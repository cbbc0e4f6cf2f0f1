// Package power blanks the surface before system standby and restores it
// after wakeup. Many boards cut USB power during sleep, which wipes every
// LED on the APC; systemd-logind tells us when that is about to happen.
package power

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	logindService   = "org.freedesktop.login1"
	logindPath      = "/org/freedesktop/login1"
	logindInterface = "org.freedesktop.login1.Manager"
	sleepSignal     = logindInterface + ".PrepareForSleep"
)

// Monitor watches systemd-logind's PrepareForSleep signal over the system
// bus. While running it holds a delay inhibitor lock, so logind waits for
// BeforeSleep to finish before actually suspending the machine.
type Monitor struct {
	// BeforeSleep runs when the system is about to suspend.
	BeforeSleep func()
	// AfterWake runs when the system comes back up.
	AfterWake func()

	conn    *dbus.Conn
	signals chan *dbus.Signal
	done    chan struct{}

	mu   sync.Mutex
	lock *os.File
}

// Start connects to the system bus, subscribes to sleep notifications and
// takes the inhibitor lock. Fails on systems without logind; the caller
// treats that as "no standby support" rather than a fatal error.
func (m *Monitor) Start() error {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}

	err = conn.AddMatchSignal(
		dbus.WithMatchObjectPath(logindPath),
		dbus.WithMatchInterface(logindInterface),
		dbus.WithMatchMember("PrepareForSleep"),
	)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to PrepareForSleep: %w", err)
	}

	m.conn = conn
	if err := m.takeLock(); err != nil {
		conn.Close()
		return err
	}

	m.signals = make(chan *dbus.Signal, 8)
	m.done = make(chan struct{})
	conn.Signal(m.signals)
	go m.watch()
	return nil
}

// Stop releases the inhibitor lock and disconnects from the bus.
func (m *Monitor) Stop() {
	if m.conn == nil {
		return
	}
	m.conn.Close()
	<-m.done
	m.releaseLock()
}

func (m *Monitor) watch() {
	defer close(m.done)
	for sig := range m.signals {
		if sig.Name != sleepSignal || len(sig.Body) != 1 {
			continue
		}
		sleeping, ok := sig.Body[0].(bool)
		if !ok {
			continue
		}
		if sleeping {
			if m.BeforeSleep != nil {
				m.BeforeSleep()
			}
			// Releasing the lock lets logind proceed with the suspend.
			m.releaseLock()
		} else {
			if m.AfterWake != nil {
				m.AfterWake()
			}
			if err := m.takeLock(); err != nil {
				log.Printf("power: %v", err)
			}
		}
	}
}

// takeLock acquires a delay inhibitor; logind hands it over as a file
// descriptor that is released by closing it.
func (m *Monitor) takeLock() error {
	var fd dbus.UnixFD
	obj := m.conn.Object(logindService, logindPath)
	err := obj.Call(logindInterface+".Inhibit", 0,
		"sleep", "gopher-apc", "Blanking APC mini before suspend", "delay").Store(&fd)
	if err != nil {
		return fmt.Errorf("failed to take sleep inhibitor: %w", err)
	}

	m.mu.Lock()
	m.lock = os.NewFile(uintptr(fd), "logind-inhibitor")
	m.mu.Unlock()
	return nil
}

func (m *Monitor) releaseLock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lock != nil {
		m.lock.Close()
		m.lock = nil
	}
}
