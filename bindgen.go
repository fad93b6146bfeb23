package qjsbuild

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// bindingArtifact is the declaration file every invocation writes into the
// output directory. Exactly one is produced per run, in one of three shapes:
// freshly generated, copied from the bundled store, or a placeholder.
const bindingArtifact = "bindings.go"

// Symbol filters applied by the live generator. The allowlists follow the
// QuickJS naming scheme; the blocklists remove the platform FILE handle
// (opaque, never crossed the FFI boundary safely) and one function whose
// signature is unstable across QuickJS builds.
var (
	allowTypePatterns = []string{`^JS`}
	allowFuncPatterns = []string{`^js`, `^JS`, `^__JS`}
	allowVarPatterns  = []string{`^JS`}

	blockedTypes = map[string]bool{"FILE": true}
	blockedFuncs = map[string]bool{"JS_DumpMemoryUsage": true}
)

// BindingSource produces the binding artifact for a resolved target. The two
// implementations share this contract so the rest of the pipeline does not
// care whether declarations were introspected live or looked up from the
// bundled per-triple store.
type BindingSource interface {
	// Name identifies the source in logs and errors.
	Name() string

	// Generate writes the binding artifact into cfg.OutDir and returns its
	// path, plus any non-fatal warnings raised along the way.
	Generate(ctx context.Context, cfg *BuildConfig, resolved *Resolved, handle *ToolchainHandle) (string, []string, error)
}

// SelectBindingSource picks the strategy for cfg: live introspection when
// the bindgen feature is enabled, bundled lookup otherwise.
func SelectBindingSource(cfg *BuildConfig) BindingSource {
	if cfg.Features.Enabled("bindgen") {
		return &LiveBindingSource{logger: cfg.logger()}
	}
	return &BundledBindingSource{logger: cfg.logger()}
}

// BundledBindingSource selects a precomputed declaration file from the
// per-triple store. When none is bundled for the target it degrades to a
// placeholder artifact and a warning instead of failing: downstream
// consumers still get a well-defined file to depend on.
type BundledBindingSource struct {
	logger *slog.Logger
}

// Name implements BindingSource.
func (s *BundledBindingSource) Name() string { return "bundled" }

// Generate implements BindingSource.
func (s *BundledBindingSource) Generate(_ context.Context, cfg *BuildConfig, _ *Resolved, _ *ToolchainHandle) (string, []string, error) {
	triple := cfg.Triple()
	dest := filepath.Join(cfg.OutDir, bindingArtifact)
	bundled := filepath.Join(cfg.BindingsDir, triple+".go")

	if fileExists(bundled) {
		if err := copyFile(bundled, dest); err != nil {
			return "", nil, fmt.Errorf("unable to copy bundled bindings for %s: %w", triple, err)
		}
		return dest, nil, nil
	}

	warning := fmt.Sprintf("no precomputed bindings are bundled for target %q; enable the bindgen feature to generate them", triple)
	s.logger.Warn("bundled bindings missing", "target", triple)

	if err := os.WriteFile(dest, placeholderBindings(triple), 0o644); err != nil {
		return "", nil, fmt.Errorf("unable to write placeholder bindings: %w", err)
	}
	return dest, []string{warning}, nil
}

// placeholderBindings is the degenerate artifact for a target with neither
// live generation nor bundled declarations: just the resolved target name.
func placeholderBindings(triple string) []byte {
	return fmt.Appendf(nil, `// Code generated by quickjs-build-go. DO NOT EDIT.
//
// Placeholder artifact: no precomputed declarations were available for this
// target when the pipeline ran without live binding generation.

package bindings

// Target is the triple this artifact was produced for.
const Target = %q
`, triple)
}

// LiveBindingSource introspects the staged binding-surface header with the
// C toolchain and emits typed cgo declarations for every allowlisted symbol.
// With the update-bindings feature it also copies the fresh artifact back
// into the bundled store, the pipeline's only write outside the output
// directory.
type LiveBindingSource struct {
	// Clang overrides the introspection compiler. Empty means the
	// provisioned toolchain's clang when cross-compiling, plain clang
	// otherwise.
	Clang string

	logger *slog.Logger
}

// Name implements BindingSource.
func (s *LiveBindingSource) Name() string { return "live" }

// Generate implements BindingSource.
func (s *LiveBindingSource) Generate(ctx context.Context, cfg *BuildConfig, resolved *Resolved, handle *ToolchainHandle) (string, []string, error) {
	triple := cfg.Triple()
	s.logger.Info("generating bindings", "target", triple)

	clang := s.Clang
	if clang == "" {
		if handle != nil {
			clang = handle.CC
		} else {
			clang = "clang"
		}
	}

	unit, err := introspectHeader(ctx, clang, cfg.OutDir, introspectArgs(triple, resolved, handle))
	if err != nil {
		return "", nil, err
	}

	decls := filterDeclarations(unit)
	source, err := renderBindings(triple, decls)
	if err != nil {
		return "", nil, err
	}

	dest := filepath.Join(cfg.OutDir, bindingArtifact)
	if err := os.WriteFile(dest, source, 0o644); err != nil {
		return "", nil, fmt.Errorf("unable to write bindings: %w", err)
	}

	if cfg.Features.Enabled("update-bindings") {
		if err := os.MkdirAll(cfg.BindingsDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("unable to create bundled bindings store: %w", err)
		}
		if err := copyFile(dest, filepath.Join(cfg.BindingsDir, triple+".go")); err != nil {
			return "", nil, fmt.Errorf("unable to update bundled bindings for %s: %w", triple, err)
		}
		s.logger.Info("updated bundled bindings", "target", triple)
	}

	return dest, nil, nil
}

// introspectArgs assembles the clang arguments for header introspection: the
// target triple, every resolved define, the toolchain sysroot when
// cross-compiling, and the wasi visibility relaxation.
func introspectArgs(triple string, resolved *Resolved, handle *ToolchainHandle) []string {
	args := []string{"-xc", "-fsyntax-only", "-Xclang", "-ast-dump=json", "--target=" + triple}

	for _, d := range resolved.Defines.List() {
		if d.Value != nil {
			args = append(args, fmt.Sprintf("-D%s=%s", d.Name, *d.Value))
		} else {
			args = append(args, "-D"+d.Name)
		}
	}

	if handle != nil {
		args = append(args, "--sysroot="+handle.Sysroot)
	}
	if resolved.Platform.IsWASI() {
		args = append(args, "-fvisibility=default")
	}

	args = append(args, bindingHeader)
	return args
}
