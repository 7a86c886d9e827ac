// Package component provides naming and registry helpers shared by interfaces, modes,
// states and controllers.
package component

import "github.com/google/uuid"

// Named is implemented by every managed component.
type Named interface {
	Name() string
}

// Identity holds a component name. Embed it to satisfy Named.
type Identity struct {
	name string
}

// NewIdentity returns an identity with the given name, or a random UUID when name is empty.
func NewIdentity(name string) Identity {
	if name == "" {
		name = uuid.NewString()
	}
	return Identity{name: name}
}

// Name returns the component name.
func (i Identity) Name() string {
	return i.name
}
