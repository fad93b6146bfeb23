//go:build mage

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"

	qjsbuild "github.com/contriboss/quickjs-build-go"
)

func config() (*qjsbuild.BuildConfig, error) {
	cfg, err := qjsbuild.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if mg.Verbose() {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return cfg, nil
}

// Build runs the full pipeline for the target described by the environment.
func Build(ctx context.Context) error {
	cfg, err := config()
	if err != nil {
		return err
	}

	result, err := qjsbuild.NewPipeline(cfg).Run(ctx)
	if err != nil {
		return err
	}
	for _, warning := range result.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", warning)
	}
	fmt.Println(result.Library)
	fmt.Println(result.Bindings)
	return nil
}

// Bindings regenerates the bindings for the current target and persists them
// into the bundled per-triple store.
func Bindings(ctx context.Context) error {
	cfg, err := config()
	if err != nil {
		return err
	}
	cfg.Features["bindgen"] = true
	cfg.Features["update-bindings"] = true

	result, err := qjsbuild.NewPipeline(cfg).Run(ctx)
	if err != nil {
		return err
	}
	fmt.Println(result.Bindings)
	return nil
}

// Clean removes the build output directory. The toolchain cache is left
// alone; it is shared across checkouts.
func Clean() error {
	outDir := os.Getenv("QJS_OUT_DIR")
	if outDir == "" {
		return fmt.Errorf("QJS_OUT_DIR is not set")
	}
	return sh.Rm(outDir)
}
