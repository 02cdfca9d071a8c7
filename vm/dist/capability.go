package dist

import (
	"fmt"
	"sort"

	"github.com/chazu/nex/vm"
)

// CapabilityPolicy controls which host names a received object may call.
// A nil AllowedCapabilities means "allow all".
type CapabilityPolicy struct {
	AllowedCapabilities map[string]bool // nil = allow all
	DeniedCapabilities  map[string]bool
}

// NewPermissivePolicy creates a policy that allows all capabilities.
func NewPermissivePolicy() *CapabilityPolicy {
	return &CapabilityPolicy{}
}

// NewRestrictedPolicy creates a policy that only allows the specified
// builtin and extension names.
func NewRestrictedPolicy(allowed []string) *CapabilityPolicy {
	m := make(map[string]bool, len(allowed))
	for _, c := range allowed {
		m[c] = true
	}
	return &CapabilityPolicy{AllowedCapabilities: m}
}

// Deny adds a capability to the deny list.
func (p *CapabilityPolicy) Deny(name string) {
	if p.DeniedCapabilities == nil {
		p.DeniedCapabilities = make(map[string]bool)
	}
	p.DeniedCapabilities[name] = true
}

// Check verifies that every name the manifest declares is allowed.
func (p *CapabilityPolicy) Check(manifest *Manifest) error {
	if manifest == nil {
		return nil
	}
	for _, name := range manifest.names() {
		if p.DeniedCapabilities[name] {
			return fmt.Errorf("dist: capability %q is explicitly denied", name)
		}
		if p.AllowedCapabilities != nil && !p.AllowedCapabilities[name] {
			return fmt.Errorf("dist: capability %q is not allowed", name)
		}
	}
	return nil
}

// Missing lists the declared names the bridge cannot serve, sorted.
func (m *Manifest) Missing(b *vm.Bridge) []string {
	if m == nil {
		return nil
	}
	var missing []string
	for _, name := range m.Builtins {
		if _, ok := b.Builtins[name]; !ok {
			missing = append(missing, name)
		}
	}
	for _, name := range m.Extensions {
		if _, ok := b.Extensions[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Require fails with ErrMissingCapability when the bridge cannot serve
// every declared name.
func (m *Manifest) Require(b *vm.Bridge) error {
	if missing := m.Missing(b); len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingCapability, missing)
	}
	return nil
}

func (m *Manifest) names() []string {
	return append(append([]string(nil), m.Builtins...), m.Extensions...)
}
