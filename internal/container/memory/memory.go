// Package memory provides an in-memory reference implementation of the
// interfaces in internal/container, standing in for the real container
// manager, cgroups, and kernel namespaces the way a no-op controller
// stands in for real hardware. It backs the router's unit and scenario
// tests without requiring root, real namespaces, or a kernel.
package memory

import (
	"sort"

	"github.com/cntrmgr/ueventd/internal/container"
)

// containerRecord holds the registry fields for one fake container.
type containerRecord struct {
	uuid      string
	name      string
	state     container.State
	pid       int
	rootdir   string
	hasUserns bool
}

// Registry is an in-memory container.Registry.
type Registry struct {
	order []container.Ref
	byRef map[container.Ref]*containerRecord
	c0    container.Ref
}

// NewRegistry creates an empty fake registry.
func NewRegistry() *Registry {
	return &Registry{byRef: make(map[container.Ref]*containerRecord)}
}

// Add registers a fake container under ref. The first container added
// becomes C0 unless SetC0 is called explicitly.
func (r *Registry) Add(ref container.Ref, uuid, name string, state container.State, pid int, rootdir string, hasUserns bool) {
	r.byRef[ref] = &containerRecord{
		uuid:      uuid,
		name:      name,
		state:     state,
		pid:       pid,
		rootdir:   rootdir,
		hasUserns: hasUserns,
	}
	r.order = append(r.order, ref)
	if r.c0 == "" {
		r.c0 = ref
	}
}

// SetC0 overrides which registered container is treated as c0.
func (r *Registry) SetC0(ref container.Ref) {
	r.c0 = ref
}

// SetState mutates a registered container's lifecycle state, used by tests
// to exercise the NIC and device-node liveness checks.
func (r *Registry) SetState(ref container.Ref, state container.State) {
	if rec, ok := r.byRef[ref]; ok {
		rec.state = state
	}
}

func (r *Registry) ByUUID(uuid string) (container.Ref, bool) {
	for _, ref := range r.order {
		if r.byRef[ref].uuid == uuid {
			return ref, true
		}
	}
	return "", false
}

func (r *Registry) ByIndex(idx int) (container.Ref, bool) {
	if idx < 0 || idx >= len(r.order) {
		return "", false
	}
	return r.order[idx], true
}

func (r *Registry) Count() int {
	return len(r.order)
}

func (r *Registry) C0() (container.Ref, bool) {
	if r.c0 == "" {
		return "", false
	}
	return r.c0, true
}

func (r *Registry) State(c container.Ref) container.State {
	if rec, ok := r.byRef[c]; ok {
		return rec.state
	}
	return container.StateStopped
}

func (r *Registry) PID(c container.Ref) int {
	if rec, ok := r.byRef[c]; ok {
		return rec.pid
	}
	return 0
}

func (r *Registry) RootDir(c container.Ref) string {
	if rec, ok := r.byRef[c]; ok {
		return rec.rootdir
	}
	return ""
}

func (r *Registry) HasUserns(c container.Ref) bool {
	if rec, ok := r.byRef[c]; ok {
		return rec.hasUserns
	}
	return false
}

func (r *Registry) Name(c container.Ref) string {
	if rec, ok := r.byRef[c]; ok {
		return rec.name
	}
	return ""
}

func (r *Registry) UUID(c container.Ref) string {
	if rec, ok := r.byRef[c]; ok {
		return rec.uuid
	}
	return ""
}

// NetAttacher is an in-memory container.NetAttacher recording each
// attached interface per container.
type NetAttacher struct {
	attached map[container.Ref][]container.PnetCfg
	// FailFor, when non-empty, makes AttachIface fail for that container,
	// for exercising the NIC mover's abort-on-failure path.
	FailFor container.Ref
}

// NewNetAttacher creates an empty fake interface attacher.
func NewNetAttacher() *NetAttacher {
	return &NetAttacher{attached: make(map[container.Ref][]container.PnetCfg)}
}

func (n *NetAttacher) AttachIface(c container.Ref, pnet container.PnetCfg) error {
	if n.FailFor != "" && n.FailFor == c {
		return errAttachFailed
	}
	n.attached[c] = append(n.attached[c], pnet)
	return nil
}

// Attached returns the pnet configs attached to a container, in call
// order.
func (n *NetAttacher) Attached(c container.Ref) []container.PnetCfg {
	return n.attached[c]
}

var errAttachFailed = attachError("memory: attach failed")

type attachError string

func (e attachError) Error() string { return string(e) }

// deviceKey identifies a cgroup device policy entry.
type deviceKey struct {
	container container.Ref
	major     int
	minor     int
}

// DevicePolicy is an in-memory container.DevicePolicy that just records
// allow/deny calls and the current allow set.
type DevicePolicy struct {
	allowed map[deviceKey]bool
	Calls   []string
}

// NewDevicePolicy creates an empty fake device policy.
func NewDevicePolicy() *DevicePolicy {
	return &DevicePolicy{allowed: make(map[deviceKey]bool)}
}

func (d *DevicePolicy) Allow(c container.Ref, major, minor int, assign bool) error {
	d.allowed[deviceKey{c, major, minor}] = true
	d.Calls = append(d.Calls, "allow")
	_ = assign
	return nil
}

func (d *DevicePolicy) Deny(c container.Ref, major, minor int) error {
	delete(d.allowed, deviceKey{c, major, minor})
	d.Calls = append(d.Calls, "deny")
	return nil
}

func (d *DevicePolicy) IsAllowed(c container.Ref, major, minor int) bool {
	return d.allowed[deviceKey{c, major, minor}]
}

// IDShifter is a no-op container.IDShifter recording its calls.
type IDShifter struct {
	Shifted []string
}

func (s *IDShifter) Shift(_ container.Ref, path string, _ bool) error {
	s.Shifted = append(s.Shifted, path)
	return nil
}

// TokenManager is an in-memory container.TokenManager. Devpaths present in
// Tokens are treated as tokens; everything else reports ErrNotAToken.
type TokenManager struct {
	Tokens  map[string]bool // devpath -> is a token
	Attach_ []string
	Detach_ []string
}

// NewTokenManager creates a fake token manager with the given devpaths
// pre-registered as tokens.
func NewTokenManager(tokenDevpaths ...string) *TokenManager {
	tokens := make(map[string]bool)
	for _, d := range tokenDevpaths {
		tokens[d] = true
	}
	return &TokenManager{Tokens: tokens}
}

func (t *TokenManager) Attach(serial, devpath string) error {
	t.Attach_ = append(t.Attach_, serial+"@"+devpath)
	if t.Tokens[devpath] {
		return nil
	}
	return container.ErrNotAToken
}

func (t *TokenManager) Detach(devpath string) error {
	t.Detach_ = append(t.Detach_, devpath)
	if t.Tokens[devpath] {
		delete(t.Tokens, devpath)
		return nil
	}
	return container.ErrNotAToken
}

// PhysNetRegistry is an in-memory container.PhysNetRegistry.
type PhysNetRegistry struct {
	names map[string]struct{}
}

// NewPhysNetRegistry creates an empty fake physical-NIC registry.
func NewPhysNetRegistry() *PhysNetRegistry {
	return &PhysNetRegistry{names: make(map[string]struct{})}
}

func (p *PhysNetRegistry) Add(name string) {
	p.names[name] = struct{}{}
}

func (p *PhysNetRegistry) Remove(name string) bool {
	if _, ok := p.names[name]; !ok {
		return false
	}
	delete(p.names, name)
	return true
}

func (p *PhysNetRegistry) List() []string {
	out := make([]string, 0, len(p.names))
	for name := range p.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
