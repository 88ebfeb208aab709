// Package save implements debounced persistence of cartridge battery RAM
// (and, for MBC3 carts, RTC state): the emulation thread marks the
// cartridge dirty on every RAM write, and a background flusher writes the
// file out at most once per flush interval rather than on every write.
package save

import (
	"os"
	"sync"
	"time"

	"gobound/internal/debug"
)

// Source is whatever holds the battery-backed state - in practice the
// cartridge - that the manager checks for dirtiness and reads for
// flushing.
type Source interface {
	Dirty() bool
	ClearDirty()
	RAM() []uint8
}

// RTCSource is optionally implemented by sources that also carry a
// real-time clock; the manager then persists the clock anchor to a
// companion .rtc file on every flush.
type RTCSource interface {
	HasRTC() bool
	RTCBase(now time.Time) time.Time
}

// Manager debounces writes to a save file: the source marks itself dirty
// on every CPU write to cartridge RAM, while the actual file write only
// happens on the flush interval (when dirty) or on an explicit Flush/Stop.
type Manager struct {
	path     string
	source   Source
	interval time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped bool

	logger *debug.Logger
}

// NewManager creates a manager that flushes src to path every interval
// while dirty. Call Start to begin the background flusher.
func NewManager(path string, src Source, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Manager{path: path, source: src, interval: interval, stopCh: make(chan struct{})}
}

func (m *Manager) SetLogger(logger *debug.Logger) { m.logger = logger }

// Start runs the debounced flush loop until Stop is called. Intended to
// run in its own goroutine.
func (m *Manager) Start() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := m.Flush(); err != nil {
				m.logf("save flush failed: %v", err)
			}
		case <-m.stopCh:
			return
		}
	}
}

// Stop halts the background loop and performs one final, unconditional
// flush - shutdown persistence is best-effort but never skipped for lack
// of a dirty flag.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	m.mu.Unlock()
	close(m.stopCh)
	return m.flush(true)
}

// Flush writes the source's RAM to disk if (and only if) it's dirty.
func (m *Manager) Flush() error { return m.flush(false) }

func (m *Manager) flush(force bool) error {
	if m.path == "" || (!force && !m.source.Dirty()) {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data := m.source.RAM()
	if len(data) > 0 {
		if err := os.WriteFile(m.path, data, 0o644); err != nil {
			return err
		}
		m.logf("wrote %d bytes of battery RAM to %s", len(data), m.path)
	}
	m.source.ClearDirty()

	if rs, ok := m.source.(RTCSource); ok && rs.HasRTC() {
		if err := WriteRTC(RTCPath(m.path), rs.RTCBase(time.Now())); err != nil {
			return err
		}
		m.logf("wrote RTC anchor to %s", RTCPath(m.path))
	}
	return nil
}

// Load reads a previously saved RAM image into dst, ignoring a missing
// file (a fresh cartridge has no save yet).
func Load(path string, dst []uint8) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	copy(dst, data)
	return nil
}

func (m *Manager) logf(format string, args ...interface{}) {
	if m.logger != nil && m.logger.IsComponentEnabled(debug.ComponentSave) {
		m.logger.Logf(debug.ComponentSave, debug.LogLevelInfo, format, args...)
	}
}
