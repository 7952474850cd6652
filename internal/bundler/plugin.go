package bundler

// Plugin extends a compiler. Apply runs once, when the compiler is created
// and before any compilation starts; plugins register their taps there.
type Plugin interface {
	Name() string
	Apply(c *Compiler) error
}

// PluginFunc adapts a function to the Plugin interface.
type PluginFunc struct {
	PluginName string
	Fn         func(c *Compiler) error
}

func (p PluginFunc) Name() string { return p.PluginName }

func (p PluginFunc) Apply(c *Compiler) error { return p.Fn(c) }
