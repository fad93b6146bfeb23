package qjsbuild

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Files staged from the vendored tree. Headers are consumed by introspection
// and the compiler's include path; sources become the static library.
var stagedHeaders = []string{
	"libbf.h",
	"libregexp-opcode.h",
	"libregexp.h",
	"libunicode-table.h",
	"libunicode.h",
	"list.h",
	"quickjs-atom.h",
	"quickjs-opcode.h",
	"quickjs.h",
	"cutils.h",
}

var stagedSources = []string{
	"libregexp.c",
	"libunicode.c",
	"cutils.c",
	"quickjs.c",
	"libbf.c",
}

// bindingHeader is the synthesized binding-surface header: the single entry
// point the binding generator introspects. It lives at the repository root,
// next to the vendored tree, not inside it.
const bindingHeader = "quickjs.bind.h"

// Stager copies the vendored sources into the build output directory and
// applies the resolved patch list against the copy.
//
// Staging recopies every file unconditionally before patching, so each run
// patches a pristine tree. That makes the stage-then-patch sequence
// idempotent across reruns without needing a forgiving patch mode.
type Stager struct {
	// Source is the vendored QuickJS tree.
	Source billy.Filesystem
	// Root holds the binding-surface header, which sits beside the vendored
	// tree rather than inside it.
	Root billy.Filesystem
	// Out is the build output directory the tree is staged into.
	Out billy.Filesystem

	// OutDir is the on-disk path of Out, used as the working directory for
	// the external patch tool.
	OutDir string

	logger *slog.Logger
}

// NewStager builds a Stager over the real filesystem for cfg. The binding
// surface header is read from the parent of SourceDir, so a relocated
// vendored tree carries its header along.
func NewStager(cfg *BuildConfig) *Stager {
	return &Stager{
		Source: osfs.New(cfg.SourceDir),
		Root:   osfs.New(filepath.Dir(cfg.SourceDir)),
		Out:    osfs.New(cfg.OutDir),
		OutDir: cfg.OutDir,
		logger: cfg.logger(),
	}
}

// Stage copies every staged header and source, plus the binding-surface
// header, into the output directory. An unreadable vendored file aborts with
// a remediation hint: the vendored tree is fetched separately and an empty
// one is the most common cause.
func (s *Stager) Stage() error {
	for _, name := range append(append([]string{}, stagedSources...), stagedHeaders...) {
		if err := copyBetween(s.Source, s.Out, name); err != nil {
			return fmt.Errorf("unable to stage %s: %w; initialize the vendored quickjs tree first (git submodule update --init)", name, err)
		}
	}
	if err := copyBetween(s.Root, s.Out, bindingHeader); err != nil {
		return fmt.Errorf("unable to stage %s: %w", bindingHeader, err)
	}
	return nil
}

// Apply runs the external patch tool over the staged tree for each patch in
// order, returning collected tool output. Order matters: later patches are
// diffs against the tree the earlier ones produced. Any non-zero exit is
// fatal.
func (s *Stager) Apply(ctx context.Context, patchesDir string, patches []string) ([]string, error) {
	var collected []string
	for _, name := range patches {
		s.logger.Info("applying patch", "patch", name)

		content, err := os.ReadFile(filepath.Join(patchesDir, name))
		if err != nil {
			return collected, fmt.Errorf("unable to read patch %s: %w", name, err)
		}

		cmd := exec.CommandContext(ctx, "patch", "-p1", "-f")
		cmd.Dir = s.OutDir
		cmd.Stdin = bytes.NewReader(content)

		output, err := cmd.CombinedOutput()
		collected = append(collected, outputLines(output)...)
		if err != nil {
			return collected, toolError("patch "+name, outputLines(output), err)
		}
	}
	return collected, nil
}

// copyBetween copies one file between two filesystems, preserving nothing
// but content; staged files are plain sources and headers.
func copyBetween(src, dst billy.Filesystem, name string) error {
	data, err := util.ReadFile(src, name)
	if err != nil {
		return err
	}
	return util.WriteFile(dst, name, data, 0o644)
}
