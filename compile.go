package qjsbuild

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// libraryName is the static archive every invocation produces.
const libraryName = "libquickjs.a"

// noisyWarnings are disabled for the vendored tree without silencing
// anything else. Unknown -Wno- options are ignored by both clang and gcc
// unless another diagnostic fires, so the list is safe to pass everywhere.
var noisyWarnings = []string{
	"-Wno-implicit-const-int-float-conversion",
}

// Compiler drives the native C compiler and archiver over the staged tree,
// producing one static library. Warnings are not fatal; a failed compile is,
// with the compiler's diagnostics forwarded verbatim.
type Compiler struct {
	cfg    *BuildConfig
	handle *ToolchainHandle // nil unless cross-compiling

	logger *slog.Logger
	run    commandRunner
}

// NewCompiler returns a Compiler for cfg. handle may be nil when the host
// toolchain is the target toolchain.
func NewCompiler(cfg *BuildConfig, handle *ToolchainHandle) *Compiler {
	return &Compiler{
		cfg:    cfg,
		handle: handle,
		logger: cfg.logger(),
		run:    runCommand,
	}
}

// cc returns the compiler to invoke: a provisioned toolchain always wins,
// then the CC override, then the system default.
func (c *Compiler) cc() string {
	if c.handle != nil {
		return c.handle.CC
	}
	if c.cfg.CC != "" {
		return c.cfg.CC
	}
	return "cc"
}

// ar returns the archiver, with the same precedence as cc.
func (c *Compiler) ar() string {
	if c.handle != nil {
		return c.handle.AR
	}
	if c.cfg.AR != "" {
		return c.cfg.AR
	}
	return "ar"
}

// compileFlags builds the per-file compiler arguments from the resolved
// define set, in insertion order so invocations are reproducible.
func compileFlags(resolved *Resolved, handle *ToolchainHandle, extra []string) []string {
	var flags []string
	flags = append(flags, noisyWarnings...)

	for _, d := range resolved.Defines.List() {
		if d.Value != nil {
			flags = append(flags, fmt.Sprintf("-D%s=%s", d.Name, *d.Value))
		} else {
			flags = append(flags, "-D"+d.Name)
		}
	}

	if handle != nil {
		flags = append(flags, "--sysroot="+handle.Sysroot)
	}

	flags = append(flags, extra...)
	return flags
}

// Compile builds every staged source file into the static library and
// returns its path plus the collected tool output. Warnings land in the
// output lines without failing the build.
func (c *Compiler) Compile(ctx context.Context, resolved *Resolved) (string, []string, error) {
	flags := compileFlags(resolved, c.handle, c.cfg.CFlags)

	var collected []string
	var objects []string
	for _, src := range stagedSources {
		obj := strings.TrimSuffix(src, filepath.Ext(src)) + ".o"
		args := append([]string{"-c", "-o", obj, src}, flags...)

		c.logger.Info("compiling", "source", src)
		output, err := c.run(ctx, c.cfg.OutDir, c.cc(), args...)
		collected = append(collected, outputLines(output)...)
		if err != nil {
			return "", collected, toolError(c.cc()+" "+src, outputLines(output), err)
		}
		objects = append(objects, obj)
	}

	args := append([]string{"crs", libraryName}, objects...)
	output, err := c.run(ctx, c.cfg.OutDir, c.ar(), args...)
	collected = append(collected, outputLines(output)...)
	if err != nil {
		return "", collected, toolError(c.ar(), outputLines(output), err)
	}

	return filepath.Join(c.cfg.OutDir, libraryName), collected, nil
}
