package qjsbuild

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBindingSource(t *testing.T) {
	cfg := &BuildConfig{Features: FeatureSet{}}
	assert.Equal(t, "bundled", SelectBindingSource(cfg).Name())

	cfg.Features["bindgen"] = true
	assert.Equal(t, "live", SelectBindingSource(cfg).Name())
}

func TestBundledFallbackWritesPlaceholder(t *testing.T) {
	cfg := &BuildConfig{
		Platform:    Platform{OS: "linux", Arch: "riscv64", Env: "gnu"},
		Features:    FeatureSet{},
		BindingsDir: t.TempDir(), // empty store
		OutDir:      t.TempDir(),
	}
	resolved := Resolve(cfg)

	source := &BundledBindingSource{logger: slog.Default()}
	path, warnings, err := source.Generate(context.Background(), cfg, &resolved, nil)
	require.NoError(t, err, "a missing bundled file degrades, it does not fail")

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "riscv64-unknown-linux-gnu")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `const Target = "riscv64-unknown-linux-gnu"`)
	assert.Contains(t, string(data), "package bindings")
}

func TestBundledFallbackIsIdempotent(t *testing.T) {
	cfg := &BuildConfig{
		Platform:    Platform{OS: "linux", Arch: "riscv64", Env: "gnu"},
		Features:    FeatureSet{},
		BindingsDir: t.TempDir(),
		OutDir:      t.TempDir(),
	}
	resolved := Resolve(cfg)
	source := &BundledBindingSource{logger: slog.Default()}

	path, _, err := source.Generate(context.Background(), cfg, &resolved, nil)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	path, _, err = source.Generate(context.Background(), cfg, &resolved, nil)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second, "reruns produce byte-identical artifacts")
}

func TestBundledLookupCopiesStoreFile(t *testing.T) {
	bindingsDir := t.TempDir()
	bundled := "// bundled declarations for x86_64-unknown-linux-gnu\npackage bindings\n"
	require.NoError(t, os.WriteFile(
		filepath.Join(bindingsDir, "x86_64-unknown-linux-gnu.go"), []byte(bundled), 0o644))

	cfg := &BuildConfig{
		Platform:    Platform{OS: "linux", Arch: "x86_64", Env: "gnu"},
		Features:    FeatureSet{},
		BindingsDir: bindingsDir,
		OutDir:      t.TempDir(),
	}
	resolved := Resolve(cfg)

	source := &BundledBindingSource{logger: slog.Default()}
	path, warnings, err := source.Generate(context.Background(), cfg, &resolved, nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, filepath.Join(cfg.OutDir, bindingArtifact), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, bundled, string(data))
}

func TestIntrospectArgs(t *testing.T) {
	cfg := &BuildConfig{
		Platform: Platform{OS: "wasi", Arch: "wasm32"},
		Features: FeatureSet{},
	}
	resolved := Resolve(cfg)
	handle := &ToolchainHandle{Sysroot: "/sdk/share/wasi-sysroot"}

	args := introspectArgs("wasm32-wasi", &resolved, handle)

	assert.Equal(t, []string{"-xc", "-fsyntax-only", "-Xclang", "-ast-dump=json"}, args[:4])
	assert.Contains(t, args, "--target=wasm32-wasi")
	assert.Contains(t, args, "-D_GNU_SOURCE")
	assert.Contains(t, args, `-DCONFIG_VERSION="2020-01-19"`)
	assert.Contains(t, args, "-DEMSCRIPTEN=1")
	assert.Contains(t, args, "--sysroot=/sdk/share/wasi-sysroot")
	assert.Contains(t, args, "-fvisibility=default")
	assert.Equal(t, bindingHeader, args[len(args)-1], "the binding-surface header is the introspection entry point")
}

func TestIntrospectArgsNative(t *testing.T) {
	cfg := &BuildConfig{
		Platform: Platform{OS: "linux", Arch: "x86_64", Env: "gnu"},
		Features: FeatureSet{},
	}
	resolved := Resolve(cfg)

	args := introspectArgs("x86_64-unknown-linux-gnu", &resolved, nil)
	assert.NotContains(t, args, "-fvisibility=default")
	for _, arg := range args {
		assert.False(t, len(arg) > 10 && arg[:10] == "--sysroot=", "no sysroot without a toolchain handle")
	}
}

// Live generation against real clang, skipped when unavailable.
func TestLiveGenerateAndPersist(t *testing.T) {
	requireTool(t, "clang")

	outDir := t.TempDir()
	header := `
typedef struct JSRuntime JSRuntime;
typedef unsigned int JSAtom;

typedef struct JSMemoryUsage {
    long long malloc_size;
} JSMemoryUsage;

enum {
    JS_TAG_FIRST = -11,
    JS_TAG_INT = 0,
};

JSRuntime *JS_NewRuntime(void);
void JS_FreeRuntime(JSRuntime *rt);
unsigned long JS_ComputeMemoryUsage(JSRuntime *rt, JSMemoryUsage *s);
void JS_DumpMemoryUsage(JSRuntime *rt);
int internal_helper(int x);
`
	require.NoError(t, os.WriteFile(filepath.Join(outDir, bindingHeader), []byte(header), 0o644))

	cfg := &BuildConfig{
		Platform:    Platform{OS: "linux", Arch: "x86_64", Env: "gnu"},
		Features:    FeatureSet{"bindgen": true, "update-bindings": true},
		BindingsDir: t.TempDir(),
		OutDir:      outDir,
	}
	resolved := Resolve(cfg)

	source := &LiveBindingSource{logger: slog.Default()}
	path, warnings, err := source.Generate(context.Background(), cfg, &resolved, nil)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	generated := string(data)

	assert.Contains(t, generated, "type JSRuntime = C.JSRuntime")
	assert.Contains(t, generated, "type JSAtom = C.JSAtom")
	assert.Contains(t, generated, "JS_TAG_INT = C.JS_TAG_INT")
	assert.Contains(t, generated, "func JS_NewRuntime() *C.JSRuntime")
	assert.Contains(t, generated, "func JS_FreeRuntime(p0 *C.JSRuntime)")
	assert.NotContains(t, generated, "JS_DumpMemoryUsage", "blocked function must not appear")
	assert.NotContains(t, generated, "internal_helper", "non-allowlisted symbols must not appear")
	assert.Contains(t, generated, `const Target = "x86_64-unknown-linux-gnu"`)

	// update-bindings copied the artifact into the bundled store
	persisted, err := os.ReadFile(filepath.Join(cfg.BindingsDir, "x86_64-unknown-linux-gnu.go"))
	require.NoError(t, err)
	assert.Equal(t, data, persisted)
}
