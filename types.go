package qjsbuild

import "log/slog"

// Platform identifies the target being built for, which may differ from the
// platform running the build.
type Platform struct {
	OS   string // target operating system (linux, macos, windows, wasi, ...)
	Arch string // target architecture (x86_64, aarch64, wasm32, ...)
	Env  string // target ABI/environment (gnu, musl, msvc, ...), may be empty
}

// IsWASI reports whether the target needs the wasi-sdk toolchain.
func (p Platform) IsWASI() bool {
	return p.OS == "wasi"
}

// Triple returns the target triple used to key bundled bindings and passed to
// clang as --target. WASI targets collapse to the short two-part form; every
// other target uses the conventional arch-unknown-os[-env] spelling.
func (p Platform) Triple() string {
	if p.IsWASI() {
		arch := p.Arch
		if arch == "" {
			arch = "wasm32"
		}
		return arch + "-wasi"
	}
	triple := p.Arch + "-unknown-" + p.OS
	if p.Env != "" {
		triple += "-" + p.Env
	}
	return triple
}

// Define is a single preprocessor definition. A nil Value produces a bare
// -DNAME; a non-nil Value produces -DNAME=VALUE.
type Define struct {
	Name  string
	Value *string
}

// DefineSet is an ordered collection of preprocessor definitions. Names are
// unique; insertion order is preserved only so compiler invocations are
// reproducible.
type DefineSet struct {
	defines []Define
	index   map[string]int
}

// Add inserts a definition, replacing the value of an existing name in place.
// Re-adding a name never duplicates it, which keeps resolver rules idempotent.
func (s *DefineSet) Add(name string, value *string) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[name]; ok {
		s.defines[i].Value = value
		return
	}
	s.index[name] = len(s.defines)
	s.defines = append(s.defines, Define{Name: name, Value: value})
}

// Has reports whether a name is defined.
func (s *DefineSet) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Value returns the value for name. The bool is false when the name is not
// defined; a defined name with a nil value returns ("", true).
func (s *DefineSet) Value(name string) (string, bool) {
	i, ok := s.index[name]
	if !ok {
		return "", false
	}
	if s.defines[i].Value == nil {
		return "", true
	}
	return *s.defines[i].Value, true
}

// List returns the definitions in insertion order. The returned slice is a
// copy and can be modified without affecting the set.
func (s *DefineSet) List() []Define {
	return append([]Define{}, s.defines...)
}

// Len returns the number of definitions.
func (s *DefineSet) Len() int {
	return len(s.defines)
}

// FeatureSet is the set of enabled feature toggles, keyed by feature name
// (dash-separated, e.g. "dump-bytecode").
type FeatureSet map[string]bool

// Enabled reports whether a feature toggle is set.
func (f FeatureSet) Enabled(name string) bool {
	return f[name]
}

// BuildConfig controls one pipeline invocation.
//
// Directory fields default relative to the working directory and mirror the
// repository layout: the vendored tree in quickjs/, patch files in patches/,
// bundled per-triple bindings in bindings/. OutDir is where every per-build
// artifact lands and is the only directory the pipeline writes to, except for
// the bundled bindings store when the update-bindings feature is on.
type BuildConfig struct {
	// Target platform
	Platform Platform
	// Explicit triple override; empty means Platform.Triple()
	TargetTriple string

	// Enabled feature toggles
	Features FeatureSet

	// Source paths
	SourceDir   string // vendored QuickJS tree (default "quickjs")
	PatchesDir  string // unified-diff patches (default "patches")
	BindingsDir string // bundled per-triple binding files (default "bindings")
	OutDir      string // build output directory (required)

	// Toolchain
	WASISDKPath string // pre-installed wasi-sdk override, empty to provision
	CC          string // C compiler override (ignored when a toolchain handle is in play)
	AR          string // archiver override
	CFlags      []string

	// Logging; nil means slog.Default()
	Logger *slog.Logger
}

// Triple returns the effective target triple for this configuration.
func (c *BuildConfig) Triple() string {
	if c.TargetTriple != "" {
		return c.TargetTriple
	}
	return c.Platform.Triple()
}

func (c *BuildConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Resolved is the deterministic output of the Configuration Resolver: the
// full define set and ordered patch list implied by a platform and feature
// combination. Identical inputs always produce identical Resolved values.
type Resolved struct {
	Platform Platform
	Features FeatureSet
	Defines  DefineSet
	Patches  []string
}

// Result describes a completed pipeline invocation.
type Result struct {
	Success   bool     // true when every stage completed
	Library   string   // path to the static library archive
	Bindings  string   // path to the binding artifact
	StagedDir string   // staged+patched source tree (same as OutDir)
	Output    []string // lines of output collected from external tools
	Warnings  []string // non-fatal degradations (e.g. missing bundled bindings)
	Error     error    // first fatal error, nil on success
}
