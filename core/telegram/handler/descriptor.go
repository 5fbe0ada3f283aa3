package handler

// Filter is one trigger condition of a message handler.
type Filter func(ev *Event) bool

// Descriptor is a declared handler before compilation.
type Descriptor struct {
	Kind Kind
	// Name identifies the handler in logs.
	Name string

	Command string
	Aliases []string
	Unique  string
	Filters []Filter

	Target   Target
	Pipeline Pipeline
	// Index is the declaration position within the bot definition.
	Index int

	Description string
	Hidden      bool
	AdminOnly   bool
}

// Matches reports whether every filter accepts ev. Filters run in
// declaration order and stop at the first rejection.
func (d *Descriptor) Matches(ev *Event) bool {
	for _, f := range d.Filters {
		if !f(ev) {
			return false
		}
	}
	return true
}

// Option adjusts a descriptor at declaration time.
type Option func(*Descriptor)

// WithGates adds handler-level gates.
func WithGates(gates ...Gate) Option {
	return func(d *Descriptor) { d.Pipeline.Gates = append(d.Pipeline.Gates, gates...) }
}

// WithTransforms appends handler-level transforms.
func WithTransforms(ts ...Transform) Option {
	return func(d *Descriptor) { d.Pipeline.Transforms = append(d.Pipeline.Transforms, ts...) }
}

// Describe sets the command menu description.
func Describe(text string) Option { return func(d *Descriptor) { d.Description = text } }

// Alias adds alternative command names.
func Alias(names ...string) Option {
	return func(d *Descriptor) { d.Aliases = append(d.Aliases, names...) }
}

// Hidden keeps the command out of the menu.
func Hidden() Option { return func(d *Descriptor) { d.Hidden = true } }

// AdminOnly marks the command as admin-only in the menu listing.
func AdminOnly() Option { return func(d *Descriptor) { d.AdminOnly = true } }

// Named overrides the log name.
func Named(name string) Option { return func(d *Descriptor) { d.Name = name } }
