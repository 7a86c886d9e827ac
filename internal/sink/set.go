package sink

// Set is an immutable, ordered snapshot of subscribed sinks.
type Set struct {
	sinks  []Sink
	byName map[string]Sink
}

// NewSet snapshots sinks in the given order. Later duplicates replace earlier ones by name
// but keep the earlier position.
func NewSet(sinks ...Sink) *Set {
	s := &Set{byName: make(map[string]Sink, len(sinks))}
	for _, sk := range sinks {
		if _, exists := s.byName[sk.Name()]; exists {
			for i := range s.sinks {
				if s.sinks[i].Name() == sk.Name() {
					s.sinks[i] = sk
				}
			}
		} else {
			s.sinks = append(s.sinks, sk)
		}
		s.byName[sk.Name()] = sk
	}
	return s
}

// List returns the sinks in order. The slice must not be modified.
func (s *Set) List() []Sink {
	if s == nil {
		return nil
	}
	return s.sinks
}

// Get looks up a sink by name.
func (s *Set) Get(name string) (Sink, bool) {
	if s == nil {
		return nil, false
	}
	sk, ok := s.byName[name]
	return sk, ok
}

// Len returns the number of sinks.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.sinks)
}

// Names returns sink names in order.
func (s *Set) Names() []string {
	names := make([]string, 0, s.Len())
	for _, sk := range s.List() {
		names = append(names, sk.Name())
	}
	return names
}

// TotalSize sums the fixed buffer sizes. Unconstrained sinks count as zero.
func TotalSize(sinks ...Sink) int {
	total := 0
	for _, sk := range sinks {
		if size, ok := sk.BufferSize(); ok {
			total += size
		}
	}
	return total
}
