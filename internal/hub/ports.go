package hub

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

// portAllocator assigns TCP ports to workers that omit an explicit port and
// keeps assignments stable across reloads and daemon restarts. Access is
// guarded by Hub.mu; this type has no lock of its own.
type portAllocator struct {
	startingPort int
	byName       map[string]int // persisted assignment per worker name
	inUse        map[int]string // port -> owning worker, for active specs
	path         string         // JSON persistence file; empty disables
}

func newPortAllocator(startingPort int, path string) *portAllocator {
	a := &portAllocator{
		startingPort: startingPort,
		byName:       make(map[string]int),
		inUse:        make(map[int]string),
		path:         path,
	}
	a.load()
	return a
}

// resolve returns the port for a worker, reserving it in the in-use set.
// Explicit ports fail with PortConflict when another worker holds them.
// Implicit ports reuse the persisted assignment when still free, otherwise
// the lowest unused port >= startingPort.
func (a *portAllocator) resolve(name string, explicit int) (int, error) {
	if explicit != 0 {
		if owner, taken := a.inUse[explicit]; taken && owner != name {
			return 0, ErrPortConflict(name, explicit, owner)
		}
		a.assign(name, explicit)
		return explicit, nil
	}
	if prior, ok := a.byName[name]; ok {
		owner, taken := a.inUse[prior]
		if !taken || owner == name {
			a.assign(name, prior)
			return prior, nil
		}
		// Persisted port now collides with an explicit claim elsewhere;
		// fall through to a fresh allocation.
	}
	port := a.startingPort
	for {
		if _, taken := a.inUse[port]; !taken {
			break
		}
		port++
	}
	a.assign(name, port)
	return port, nil
}

func (a *portAllocator) assign(name string, port int) {
	if old, ok := a.byName[name]; ok && old != port {
		if a.inUse[old] == name {
			delete(a.inUse, old)
		}
	}
	a.byName[name] = port
	a.inUse[port] = name
	a.save()
}

// release forgets a worker's reservation entirely. Called only when the
// worker leaves the configuration; a transient stop keeps the port.
func (a *portAllocator) release(name string) {
	if port, ok := a.byName[name]; ok {
		if a.inUse[port] == name {
			delete(a.inUse, port)
		}
		delete(a.byName, name)
		a.save()
	}
}

// ownerOf returns the worker currently holding a port, if any.
func (a *portAllocator) ownerOf(port int) (string, bool) {
	owner, ok := a.inUse[port]
	return owner, ok
}

// assigned returns the persisted port for a name, if any.
func (a *portAllocator) assigned(name string) (int, bool) {
	p, ok := a.byName[name]
	return p, ok
}

// names returns all workers with persisted assignments, sorted for
// deterministic iteration.
func (a *portAllocator) names() []string {
	out := make([]string, 0, len(a.byName))
	for n := range a.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (a *portAllocator) load() {
	if a.path == "" {
		return
	}
	f, err := os.Open(a.path)
	if err != nil {
		return
	}
	defer f.Close()
	var data map[string]int
	if err := json.NewDecoder(f).Decode(&data); err == nil {
		a.byName = data
	}
}

func (a *portAllocator) save() {
	if a.path == "" {
		return
	}
	b, err := json.MarshalIndent(a.byName, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(a.path), 0o755)
	_ = os.WriteFile(a.path, b, 0o644)
}
