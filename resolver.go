package qjsbuild

import (
	"fmt"
	"os"
	"strings"
)

// Feature toggle names recognized by the resolver. Each maps 1:1 to an
// environment boolean QJS_FEATURE_<UPPER_SNAKE>.
var featureNames = []string{
	"exports",
	"bindgen",
	"update-bindings",
	"dump-bytecode",
	"dump-gc",
	"dump-gc-free",
	"dump-free",
	"dump-leaks",
	"dump-mem",
	"dump-objects",
	"dump-atoms",
	"dump-shapes",
	"dump-module-resolve",
	"dump-promise",
	"dump-read-object",
}

// basePatches are applied for every configuration, in this order. The order
// is load-bearing: each patch is a diff against the tree produced by the
// previous ones.
var basePatches = []string{
	"error_column_number.patch",
	"get_function_proto.patch",
	"check_stack_overflow.patch",
	"infinity_handling.patch",
}

const quickjsVersion = "2020-01-19"

// conditionalRule maps a predicate over (platform, features) to its define
// and patch deltas. Rules are evaluated once each, in declaration order, but
// the outcome is order-independent: define insertion and patch append are
// idempotent per rule.
type conditionalRule struct {
	when    func(Platform, FeatureSet) bool
	defines []Define
	patches []string
}

func strptr(s string) *string { return &s }

var conditionalRules = []conditionalRule{
	{
		when: func(p Platform, _ FeatureSet) bool {
			return p.OS == "windows" && p.Env == "msvc"
		},
		patches: []string{"basic_msvc_compat.patch"},
	},
	{
		when: func(_ Platform, f FeatureSet) bool {
			return f.Enabled("exports")
		},
		defines: []Define{{Name: "CONFIG_MODULE_EXPORTS"}},
		patches: []string{"read_module_exports.patch"},
	},
	{
		// wasi has no FE_DOWNWARD/FE_UPWARD and the emscripten ifdefs in the
		// vendored tree already cover the rest of its quirks.
		when: func(p Platform, _ FeatureSet) bool {
			return p.IsWASI()
		},
		defines: []Define{
			{Name: "EMSCRIPTEN", Value: strptr("1")},
			{Name: "FE_DOWNWARD", Value: strptr("0")},
			{Name: "FE_UPWARD", Value: strptr("0")},
		},
	},
}

// FeatureEnvVar returns the environment variable that toggles a feature,
// e.g. "dump-gc-free" -> "QJS_FEATURE_DUMP_GC_FREE".
func FeatureEnvVar(feature string) string {
	return "QJS_FEATURE_" + featureToDefine(feature)
}

// featureToDefine converts a feature name into its preprocessor spelling.
func featureToDefine(feature string) string {
	return strings.ToUpper(strings.ReplaceAll(feature, "-", "_"))
}

// ConfigFromEnv builds a BuildConfig from the ambient environment.
//
// QJS_TARGET_OS, QJS_TARGET_ARCH and QJS_OUT_DIR are required; a missing one
// is an environment-integrity error and the caller should treat it as fatal.
// Identical environments always produce identical configurations.
func ConfigFromEnv() (*BuildConfig, error) {
	targetOS := os.Getenv("QJS_TARGET_OS")
	if targetOS == "" {
		return nil, fmt.Errorf("QJS_TARGET_OS is not set; the target platform must be described in the environment")
	}
	targetArch := os.Getenv("QJS_TARGET_ARCH")
	if targetArch == "" {
		return nil, fmt.Errorf("QJS_TARGET_ARCH is not set; the target platform must be described in the environment")
	}
	outDir := os.Getenv("QJS_OUT_DIR")
	if outDir == "" {
		return nil, fmt.Errorf("QJS_OUT_DIR is not set; the build output directory must be described in the environment")
	}

	features := FeatureSet{}
	for _, name := range featureNames {
		if envBool(os.Getenv(FeatureEnvVar(name))) {
			features[name] = true
		}
	}

	cfg := &BuildConfig{
		Platform: Platform{
			OS:   targetOS,
			Arch: targetArch,
			Env:  os.Getenv("QJS_TARGET_ENV"),
		},
		TargetTriple: os.Getenv("QJS_TARGET_TRIPLE"),
		Features:     features,
		SourceDir:    "quickjs",
		PatchesDir:   "patches",
		BindingsDir:  "bindings",
		OutDir:       outDir,
		WASISDKPath:  os.Getenv("WASI_SDK"),
		CC:           os.Getenv("CC"),
		AR:           os.Getenv("AR"),
	}
	if flags := os.Getenv("CFLAGS"); flags != "" {
		cfg.CFlags = strings.Fields(flags)
	}
	return cfg, nil
}

// envBool interprets a feature toggle value. Presence enables the feature
// unless the value is an explicit off spelling.
func envBool(value string) bool {
	switch strings.ToLower(value) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

// Resolve derives the define set and ordered patch list for a configuration.
// It is a pure function of (Platform, Features): no environment reads, no
// filesystem access.
func Resolve(cfg *BuildConfig) Resolved {
	r := Resolved{
		Platform: cfg.Platform,
		Features: cfg.Features,
	}

	r.Defines.Add("_GNU_SOURCE", nil)
	r.Defines.Add("CONFIG_VERSION", strptr(`"`+quickjsVersion+`"`))
	r.Defines.Add("CONFIG_BIGNUM", nil)

	r.Patches = append(r.Patches, basePatches...)

	for _, rule := range conditionalRules {
		if !rule.when(cfg.Platform, cfg.Features) {
			continue
		}
		for _, d := range rule.defines {
			r.Defines.Add(d.Name, d.Value)
		}
		r.Patches = append(r.Patches, rule.patches...)
	}

	// Diagnostic dump toggles map straight to their defines; they never
	// carry patches.
	for _, name := range featureNames {
		if strings.HasPrefix(name, "dump-") && cfg.Features.Enabled(name) {
			r.Defines.Add(featureToDefine(name), nil)
		}
	}

	return r
}
