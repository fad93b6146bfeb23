// Package qjsbuild prepares the vendored QuickJS source tree for linking and
// produces the cgo declarations a managed caller needs to drive it.
//
// This package is a build-time orchestrator, not a runtime component. One
// invocation resolves a platform/feature configuration, provisions a
// cross-compilation toolchain if the target needs one, stages and patches the
// vendored sources, generates (or selects a precomputed) binding artifact, and
// compiles everything into a static library.
//
// # Pipeline
//
// The five phases run once, synchronously, in order:
//
//	Resolver       ConfigFromEnv + Resolve
//	Provisioner    Provisioner.Provision (wasi targets only)
//	Staging        copy vendored tree, apply patches
//	Bindings       BindingSource (live clang introspection or bundled lookup)
//	Compiler       compile staged sources into libquickjs.a
//
// # Basic Usage
//
// Build from the ambient environment:
//
//	cfg, err := qjsbuild.ConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := qjsbuild.NewPipeline(cfg).Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Library, result.Bindings)
//
// # Environment
//
// The target platform comes from QJS_TARGET_OS, QJS_TARGET_ARCH and
// QJS_TARGET_ENV; artifacts land in QJS_OUT_DIR. Feature toggles are one
// boolean env var each (QJS_FEATURE_EXPORTS, QJS_FEATURE_BINDGEN, ...).
// WASI_SDK points at a pre-installed toolchain and suppresses provisioning.
// CC, AR and CFLAGS are honored when not cross-compiling.
//
// # External Tools
//
// The pipeline shells out to exactly four classes of tool: curl (toolchain
// fetch), tar (toolchain extraction), patch (source patching), and the C
// toolchain (clang for header introspection, cc/ar for compilation). A
// non-zero exit from any of them aborts the pipeline with the tool's
// diagnostic output forwarded verbatim.
//
// # Concurrency
//
// Everything is single-threaded and sequential. The toolchain cache and the
// bundled bindings store are shared on-disk state with no locking; the caller
// is responsible for serializing invocations per output directory.
package qjsbuild
