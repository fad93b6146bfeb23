package qjsbuild

import (
	"fmt"
	"os/exec"
	"strings"
)

// ToolRequirement describes an external tool dependency of the pipeline.
//
// Requirements can name alternatives: any one of the alternative binaries
// satisfies the requirement. Optional tools are checked but never fail the
// preflight.
type ToolRequirement struct {
	// Name is the primary tool binary name (e.g. "patch", "curl").
	Name string

	// Alternatives are binaries that can satisfy this requirement instead.
	// Example: []string{"clang", "gcc"}
	Alternatives []string

	// Optional tools are still checked but don't fail the preflight.
	Optional bool

	// Purpose is a human-readable description used in error messages.
	Purpose string
}

// requiredTools lists the external tools one pipeline invocation will shell
// out to, given the resolved configuration. curl and tar only matter when a
// toolchain will actually be provisioned.
func requiredTools(cfg *BuildConfig) []ToolRequirement {
	tools := []ToolRequirement{
		{Name: "patch", Purpose: "unified-diff patch application"},
	}

	if cfg.Platform.IsWASI() && cfg.WASISDKPath == "" {
		tools = append(tools,
			ToolRequirement{Name: "curl", Purpose: "toolchain archive download"},
			ToolRequirement{Name: "tar", Purpose: "toolchain archive extraction"},
		)
	}

	// The provisioned toolchain carries its own compiler, so the host
	// compiler only matters for native targets.
	if !cfg.Platform.IsWASI() {
		cc := cfg.CC
		if cc == "" {
			cc = "cc"
		}
		tools = append(tools, ToolRequirement{
			Name:         cc,
			Alternatives: []string{"clang", "gcc"},
			Purpose:      "C compiler",
		})
		ar := cfg.AR
		if ar == "" {
			ar = "ar"
		}
		tools = append(tools, ToolRequirement{Name: ar, Purpose: "static library archiver"})
	}

	if cfg.Features.Enabled("bindgen") && !cfg.Platform.IsWASI() {
		tools = append(tools, ToolRequirement{Name: "clang", Purpose: "header introspection"})
	}

	return tools
}

// CheckToolAvailable checks if a tool is available in the system PATH.
func CheckToolAvailable(tool string) error {
	if _, err := exec.LookPath(tool); err != nil {
		return fmt.Errorf("%s not found in PATH", tool)
	}
	return nil
}

// CheckRequiredTools verifies all required tools are available, trying each
// alternative in order. All missing required tools are reported in a single
// error so the user fixes them in one pass.
func CheckRequiredTools(requirements []ToolRequirement) error {
	var missingTools []string

	for _, req := range requirements {
		found := CheckToolAvailable(req.Name) == nil

		if !found {
			for _, alt := range req.Alternatives {
				if CheckToolAvailable(alt) == nil {
					found = true
					break
				}
			}
		}

		if !found && !req.Optional {
			if req.Purpose != "" {
				missingTools = append(missingTools, fmt.Sprintf("%s (%s)", req.Name, req.Purpose))
			} else {
				missingTools = append(missingTools, req.Name)
			}
		}
	}

	if len(missingTools) == 0 {
		return nil
	}

	if len(missingTools) == 1 {
		return fmt.Errorf("%s not found in PATH", missingTools[0])
	}

	return fmt.Errorf("missing required tools: %s", strings.Join(missingTools, ", "))
}
