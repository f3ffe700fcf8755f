package hub

import "fmt"

// Error kinds surfaced through the control API. Each error type carries a
// stable kind identifier so callers can match without string parsing.

type notFoundError struct{ name string }

func (e notFoundError) Error() string { return fmt.Sprintf("unknown worker %q", e.name) }

// ErrNotFound reports that no configured worker has the given name.
func ErrNotFound(name string) error { return notFoundError{name: name} }

// IsNotFound reports whether err names a missing worker.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

type alreadyRunningError struct{ name string }

func (e alreadyRunningError) Error() string {
	return fmt.Sprintf("worker %q is already running", e.name)
}

func ErrAlreadyRunning(name string) error { return alreadyRunningError{name: name} }

func IsAlreadyRunning(err error) bool {
	_, ok := err.(alreadyRunningError)
	return ok
}

type notRunningError struct{ name string }

func (e notRunningError) Error() string { return fmt.Sprintf("worker %q is not running", e.name) }

func ErrNotRunning(name string) error { return notRunningError{name: name} }

func IsNotRunning(err error) bool {
	_, ok := err.(notRunningError)
	return ok
}

type notJITError struct{ name string }

func (e notJITError) Error() string { return fmt.Sprintf("worker %q is not jit_enabled", e.name) }

func ErrNotJIT(name string) error { return notJITError{name: name} }

func IsNotJIT(err error) bool {
	_, ok := err.(notJITError)
	return ok
}

type portConflictError struct {
	name  string
	port  int
	owner string
}

func (e portConflictError) Error() string {
	return fmt.Sprintf("worker %q: port %d already reserved by %q", e.name, e.port, e.owner)
}

func ErrPortConflict(name string, port int, owner string) error {
	return portConflictError{name: name, port: port, owner: owner}
}

func IsPortConflict(err error) bool {
	_, ok := err.(portConflictError)
	return ok
}

type spawnFailedError struct {
	name string
	msg  string
}

func (e spawnFailedError) Error() string {
	return fmt.Sprintf("worker %q failed to start: %s", e.name, e.msg)
}

func ErrSpawnFailed(name, msg string) error { return spawnFailedError{name: name, msg: msg} }

func IsSpawnFailed(err error) bool {
	_, ok := err.(spawnFailedError)
	return ok
}

// groupCapacityError is returned when a group is at max_loaded and no
// eviction could resolve it. It is never silently swallowed: callers either
// evict or surface this.
type groupCapacityError struct {
	name  string
	group string
}

func (e groupCapacityError) Error() string {
	return fmt.Sprintf("group %q is at capacity, cannot admit %q", e.group, e.name)
}

func ErrGroupCapacity(name, group string) error {
	return groupCapacityError{name: name, group: group}
}

func IsGroupCapacity(err error) bool {
	_, ok := err.(groupCapacityError)
	return ok
}

type configInvalidError struct{ msg string }

func (e configInvalidError) Error() string { return "invalid config: " + e.msg }

func ErrConfigInvalid(msg string) error { return configInvalidError{msg: msg} }

func IsConfigInvalid(err error) bool {
	_, ok := err.(configInvalidError)
	return ok
}

// Kind returns the stable identifier for a hub error, or "internal" when
// the error is not one of the taxonomy kinds.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsNotFound(err):
		return "not_found"
	case IsAlreadyRunning(err):
		return "already_running"
	case IsNotRunning(err):
		return "not_running"
	case IsNotJIT(err):
		return "not_jit"
	case IsPortConflict(err):
		return "port_conflict"
	case IsSpawnFailed(err):
		return "spawn_failed"
	case IsGroupCapacity(err):
		return "group_capacity"
	case IsConfigInvalid(err):
		return "config_invalid"
	default:
		return "internal"
	}
}
