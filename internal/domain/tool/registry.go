package tool

import "sort"

// Registry maps tool names to plugins. Both the parent (for requirement
// lookup) and the worker (for execution) build the same builtin
// registry, so a name admitted by the guard always resolves on the
// worker side.
type Registry struct {
	plugins map[string]Plugin
}

// NewRegistry builds a registry over the given plugins.
func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{plugins: make(map[string]Plugin, len(plugins))}
	for _, p := range plugins {
		r.plugins[p.Name()] = p
	}
	return r
}

// Builtin returns the registry of the four builtin file tools.
func Builtin() *Registry {
	return NewRegistry(
		&FileRead{},
		&FileWrite{},
		&FileList{},
		&FileReadBatch{},
	)
}

// Get returns the named plugin, nil when unknown.
func (r *Registry) Get(name string) Plugin {
	return r.plugins[name]
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// readFamily lists the tools that read files. Only these may honor the
// guard's quarantine signal; anything else treats it as a denial.
var readFamily = map[string]struct{}{
	NameFileRead:      {},
	NameFileList:      {},
	NameFileReadBatch: {},
}

// IsReadFamily reports whether the tool belongs to the file-read family.
func IsReadFamily(name string) bool {
	_, ok := readFamily[name]
	return ok
}

// IsWriteFamily reports whether the tool writes files.
func IsWriteFamily(name string) bool {
	return name == NameFileWrite
}

// PathArgs extracts every path-typed argument of a call: the "path"
// string and each member of the "paths" list. Used for authoritative
// path validation against grant scopes.
func PathArgs(args map[string]any) []string {
	var out []string
	if p := stringArg(args, "path"); p != "" {
		out = append(out, p)
	}
	out = append(out, stringsArg(args, "paths")...)
	return out
}
