package qjsbuild

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// Stage is one phase of the build pipeline. Stages run in registration
// order, sequentially, and communicate through the shared pipelineState; the
// first failure aborts the run.
type Stage interface {
	// Name identifies the stage in logs and error messages.
	Name() string

	// Run executes the stage, reading and writing the shared state.
	Run(ctx context.Context, state *pipelineState) error
}

// pipelineState carries everything stages hand to each other. It replaces
// process-wide mutation: the provisioner writes the toolchain handle here
// and the binding generator and compiler read it as an explicit input.
type pipelineState struct {
	cfg      *BuildConfig
	resolved *Resolved

	handle   *ToolchainHandle // nil unless cross-compiling
	bindings string
	library  string

	output   []string
	warnings []string
}

// Pipeline runs the full build: provision toolchain, stage and patch
// sources, produce the binding artifact, compile the static library.
//
// A Pipeline is single-use and single-threaded. Concurrent invocations
// sharing an output directory or the toolchain cache must be serialized by
// the caller.
type Pipeline struct {
	cfg    *BuildConfig
	stages []Stage
	logger *slog.Logger
}

// NewPipeline creates a pipeline with the standard stages registered in
// dependency order:
//
//  1. toolchain - provision the wasi-sdk when the target needs it
//  2. staging   - copy the vendored tree and apply patches
//  3. bindings  - generate or select the binding artifact
//  4. compile   - build the static library
//
// The binding stage runs before compilation because it only needs the staged
// headers, so a binding failure is reported without paying for a compile.
func NewPipeline(cfg *BuildConfig) *Pipeline {
	applyDefaults(cfg)

	p := &Pipeline{cfg: cfg, logger: cfg.logger()}
	p.Register(&toolchainStage{})
	p.Register(&stagingStage{})
	p.Register(&bindingStage{})
	p.Register(&compileStage{})
	return p
}

func applyDefaults(cfg *BuildConfig) {
	if cfg.SourceDir == "" {
		cfg.SourceDir = "quickjs"
	}
	if cfg.PatchesDir == "" {
		cfg.PatchesDir = "patches"
	}
	if cfg.BindingsDir == "" {
		cfg.BindingsDir = "bindings"
	}
	if cfg.Features == nil {
		cfg.Features = FeatureSet{}
	}
}

// Register appends a stage. Stages run in registration order; register
// custom stages before calling Run.
func (p *Pipeline) Register(stage Stage) {
	p.stages = append(p.stages, stage)
}

// Run executes every stage in order and returns the invocation result.
//
// The result is returned even on failure, with partial output and Success
// set to false; the error is the same one carried in Result.Error. There is
// no retry anywhere: a transient failure is handled by rerunning the whole
// pipeline, which restages sources and reuses the warm toolchain cache.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	state := &pipelineState{cfg: p.cfg}

	fail := func(err error) (*Result, error) {
		return &Result{
			Success:  false,
			Output:   state.output,
			Warnings: uniqueStrings(state.warnings),
			Error:    err,
		}, err
	}

	if p.cfg.OutDir == "" {
		return fail(fmt.Errorf("no build output directory configured"))
	}

	resolved := Resolve(p.cfg)
	state.resolved = &resolved

	if err := CheckRequiredTools(requiredTools(p.cfg)); err != nil {
		return fail(err)
	}

	if err := os.MkdirAll(p.cfg.OutDir, 0o755); err != nil {
		return fail(fmt.Errorf("create build output directory: %w", err))
	}

	for _, stage := range p.stages {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(ctxErr)
		}

		p.logger.Info("running stage", "stage", stage.Name(), "target", p.cfg.Triple())
		if err := stage.Run(ctx, state); err != nil {
			return fail(fmt.Errorf("%s stage: %w", stage.Name(), err))
		}
	}

	// The result reports each distinct warning once.
	return &Result{
		Success:   true,
		Library:   state.library,
		Bindings:  state.bindings,
		StagedDir: p.cfg.OutDir,
		Output:    state.output,
		Warnings:  uniqueStrings(state.warnings),
	}, nil
}

// toolchainStage provisions the cross-compilation toolchain for targets that
// need one. Native targets pass straight through with a nil handle.
type toolchainStage struct{}

func (s *toolchainStage) Name() string { return "toolchain" }

func (s *toolchainStage) Run(ctx context.Context, state *pipelineState) error {
	if !state.cfg.Platform.IsWASI() {
		return nil
	}

	provisioner := NewProvisioner(state.cfg.logger())
	handle, err := provisioner.Provision(ctx, state.cfg, runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return err
	}
	state.handle = handle
	return nil
}

// stagingStage recreates the staged tree from the vendored sources and
// applies the resolved patch list in order.
type stagingStage struct{}

func (s *stagingStage) Name() string { return "staging" }

func (s *stagingStage) Run(ctx context.Context, state *pipelineState) error {
	stager := NewStager(state.cfg)
	if err := stager.Stage(); err != nil {
		return err
	}
	output, err := stager.Apply(ctx, state.cfg.PatchesDir, state.resolved.Patches)
	state.output = append(state.output, output...)
	return err
}

// bindingStage produces exactly one binding artifact via the configured
// BindingSource strategy.
type bindingStage struct{}

func (s *bindingStage) Name() string { return "bindings" }

func (s *bindingStage) Run(ctx context.Context, state *pipelineState) error {
	source := SelectBindingSource(state.cfg)

	path, warnings, err := source.Generate(ctx, state.cfg, state.resolved, state.handle)
	if err != nil {
		return err
	}
	state.bindings = path
	state.warnings = append(state.warnings, warnings...)
	return nil
}

// compileStage builds the staged sources into the static library.
type compileStage struct{}

func (s *compileStage) Name() string { return "compile" }

func (s *compileStage) Run(ctx context.Context, state *pipelineState) error {
	compiler := NewCompiler(state.cfg, state.handle)

	library, output, err := compiler.Compile(ctx, state.resolved)
	state.output = append(state.output, output...)
	if err != nil {
		return err
	}
	state.library = library
	return nil
}
