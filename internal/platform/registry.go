// internal/platform/registry.go
package platform

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Config is handed to a transport driver when it is opened.
type Config struct {
	// AppID is the platform application the session is scoped to.
	AppID uint32

	// Game is the title advertised in lobby metadata; drivers may use
	// it to pre-filter lobby listings server-side.
	Game string
}

// ErrNoDriver is returned by OpenTransport when the named driver was
// never registered (i.e. not linked into the binary).
var ErrNoDriver = errors.New("platform: no such transport driver")

var (
	driversMu sync.Mutex
	drivers   = make(map[string]func(Config) (Transport, error))
)

// RegisterTransport makes a transport driver available under the given
// name, typically from the driver package's init. Registering the same
// name twice panics, mirroring database/sql.
func RegisterTransport(name string, open func(Config) (Transport, error)) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if open == nil {
		panic("platform: RegisterTransport with nil opener")
	}
	if _, dup := drivers[name]; dup {
		panic("platform: RegisterTransport called twice for driver " + name)
	}
	drivers[name] = open
}

// OpenTransport opens the named transport driver.
func OpenTransport(name string, cfg Config) (Transport, error) {
	driversMu.Lock()
	open, ok := drivers[name]
	driversMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrNoDriver, name, driverNames())
	}
	return open(cfg)
}

func driverNames() []string {
	driversMu.Lock()
	defer driversMu.Unlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
