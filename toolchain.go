package qjsbuild

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/adrg/xdg"
)

// wasi-sdk release pinned by this pipeline. Bumping it invalidates the cache
// key, so old and new toolchains never mix.
const (
	wasiSDKVersionMajor = 20
	wasiSDKVersionMinor = 0
)

// ToolchainHandle locates the pieces of a provisioned cross-compilation
// toolchain. The paths are guaranteed to exist on disk once Provision
// returns. The directory behind a handle persists across invocations; this
// pipeline never tears it down.
type ToolchainHandle struct {
	Root    string // toolchain root directory
	CC      string // C compiler (clang)
	AR      string // archiver
	Sysroot string // system headers and libraries for the target
}

// commandRunner executes an external command in dir and returns its combined
// output. Provisioning goes through this indirection so tests can count and
// fake the fetch/extract calls.
type commandRunner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Provisioner downloads and caches the wasi-sdk toolchain for targets that
// cannot be built with the host toolchain.
//
// The cache lives under the user cache directory, keyed by the pinned sdk
// version, and is shared filesystem state: concurrent provisioning into the
// same cache directory is the caller's problem to serialize.
type Provisioner struct {
	// CacheDir overrides the default per-user cache location. Mostly for tests.
	CacheDir string

	logger *slog.Logger
	run    commandRunner
}

// NewProvisioner returns a Provisioner logging to logger (nil means
// slog.Default()).
func NewProvisioner(logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{logger: logger, run: runCommand}
}

// archiveSuffix maps the host platform to the wasi-sdk release archive
// variant. Tuples outside this table cannot provision a toolchain.
func archiveSuffix(hostOS, hostArch string) (string, error) {
	switch {
	case hostOS == "linux" && (hostArch == "386" || hostArch == "amd64"):
		return "linux", nil
	case hostOS == "darwin" && (hostArch == "amd64" || hostArch == "arm64"):
		return "macos", nil
	case hostOS == "windows" && hostArch == "386":
		return "mingw-x86", nil
	case hostOS == "windows" && hostArch == "amd64":
		return "mingw", nil
	default:
		return "", fmt.Errorf("unsupported host platform (%s, %s): no wasi-sdk archive is published for it", hostOS, hostArch)
	}
}

func (p *Provisioner) cacheDir() string {
	if p.CacheDir != "" {
		return p.CacheDir
	}
	return filepath.Join(xdg.CacheHome, "quickjs-build",
		fmt.Sprintf("wasi-sdk-%d.%d", wasiSDKVersionMajor, wasiSDKVersionMinor))
}

// handleFor builds a ToolchainHandle for a wasi-sdk rooted at root, verifying
// that every referenced path exists. A missing path after provisioning means
// the downloaded archive had an unexpected layout, which is a configuration
// error rather than something to retry.
func handleFor(root string) (*ToolchainHandle, error) {
	handle := &ToolchainHandle{
		Root:    root,
		CC:      filepath.Join(root, "bin", "clang"),
		AR:      filepath.Join(root, "bin", "ar"),
		Sysroot: filepath.Join(root, "share", "wasi-sysroot"),
	}
	for _, path := range []string{handle.CC, handle.AR, handle.Sysroot} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("wasi-sdk at %s has unexpected layout: missing %s", root, path)
		}
	}
	return handle, nil
}

// Provision returns a usable toolchain for cfg, downloading and extracting
// the wasi-sdk into the cache if it is not already there.
//
// An explicit WASISDKPath override bypasses the cache entirely: it must point
// at an installed sdk and is used as-is. Otherwise the cache is warm when the
// linker binary already exists, in which case neither curl nor tar runs.
func (p *Provisioner) Provision(ctx context.Context, cfg *BuildConfig, hostOS, hostArch string) (*ToolchainHandle, error) {
	if cfg.WASISDKPath != "" {
		if _, err := os.Stat(cfg.WASISDKPath); err != nil {
			return nil, fmt.Errorf("wasi-sdk not installed at specified path %s: %w", cfg.WASISDKPath, err)
		}
		return handleFor(cfg.WASISDKPath)
	}

	sdkDir := p.cacheDir()
	if err := os.MkdirAll(sdkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create toolchain cache %s: %w", sdkDir, err)
	}

	archivePath := filepath.Join(sdkDir,
		fmt.Sprintf("wasi-sdk-%d-%d.tar.gz", wasiSDKVersionMajor, wasiSDKVersionMinor))
	linker := filepath.Join(sdkDir, "bin", "wasm-ld")

	if !fileExists(linker) {
		if !fileExists(archivePath) {
			suffix, err := archiveSuffix(hostOS, hostArch)
			if err != nil {
				return nil, err
			}
			uri := fmt.Sprintf(
				"https://github.com/WebAssembly/wasi-sdk/releases/download/wasi-sdk-%d/wasi-sdk-%d.%d-%s.tar.gz",
				wasiSDKVersionMajor, wasiSDKVersionMajor, wasiSDKVersionMinor, suffix)

			p.logger.Info("downloading wasi-sdk", "uri", uri, "dest", archivePath)
			output, err := p.run(ctx, sdkDir, "curl", "--location", "-o", archivePath, uri)
			if err != nil {
				return nil, toolError("curl", outputLines(output), err)
			}
		}

		p.logger.Info("extracting wasi-sdk", "archive", archivePath)
		output, err := p.run(ctx, sdkDir, "tar", "-zxf", archivePath, "--strip-components", "1")
		if err != nil {
			return nil, toolError("tar", outputLines(output), err)
		}
	}

	return handleFor(sdkDir)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
