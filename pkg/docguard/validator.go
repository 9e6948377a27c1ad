package docguard

// Hooks bundles the per-operation callbacks of a validator. A nil hook
// means the validator does not participate in that operation.
type Hooks struct {
	OnInsert Hook
	OnPatch  Hook
}

// NewValidator builds a named validator plugin. The name must be unique
// within a table's chain; config is an opaque value the hooks can read
// back through the validator.
func NewValidator(name string, config interface{}, hooks Hooks) Validator {
	return Validator{
		Name:     name,
		Config:   config,
		OnInsert: hooks.OnInsert,
		OnPatch:  hooks.OnPatch,
	}
}
