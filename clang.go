package qjsbuild

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// astNode is the slice of clang's -ast-dump=json schema this pipeline needs.
// Unknown fields are ignored, which keeps the parser stable across clang
// releases.
type astNode struct {
	Kind         string    `json:"kind"`
	Name         string    `json:"name"`
	Type         *astType  `json:"type"`
	Inner        []astNode `json:"inner"`
	IsImplicit   bool      `json:"isImplicit"`
	Variadic     bool      `json:"variadic"`
	StorageClass string    `json:"storageClass"`
	TagUsed      string    `json:"tagUsed"`
}

type astType struct {
	QualType string `json:"qualType"`
}

// declarations is the filtered symbol surface extracted from the binding
// header: everything the emitted artifact declares.
type declarations struct {
	Typedefs  []string   // typedef names, emitted as cgo type aliases
	FuncTypes []string   // typedefs of function types, cgo cannot alias these
	Records   []string   // struct/union tags with no typedef of the same name
	EnumConst []string   // enum constant names
	Funcs     []funcDecl // function declarations
	Vars      []string   // extern variable names
}

type funcDecl struct {
	Name     string
	QualType string // e.g. "JSValue (JSContext *, JSValueConst, int)"
	Variadic bool
}

// introspectHeader runs the compiler's JSON AST dump over the staged binding
// header and parses the translation unit. Diagnostics go to stderr and are
// forwarded verbatim on failure; the AST arrives on stdout.
func introspectHeader(ctx context.Context, clang, dir string, args []string) (*astNode, error) {
	cmd := exec.CommandContext(ctx, clang, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, toolError(clang, outputLines(stderr.Bytes()), err)
	}

	var unit astNode
	if err := json.Unmarshal(stdout.Bytes(), &unit); err != nil {
		return nil, fmt.Errorf("unable to parse %s AST output: %w", clang, err)
	}
	if unit.Kind != "TranslationUnitDecl" {
		return nil, fmt.Errorf("unexpected AST root %q from %s", unit.Kind, clang)
	}
	return &unit, nil
}

// filterDeclarations walks the translation unit and keeps every declaration
// matching the allowlist patterns, minus the blocked opaque type and the
// blocked unstable function. Duplicate declarations (headers are full of
// forward declarations) collapse to one entry, first occurrence wins.
func filterDeclarations(unit *astNode) *declarations {
	decls := &declarations{}

	seenTypedefs := make(map[string]bool)
	seenRecords := make(map[string]bool)
	seenFuncs := make(map[string]bool)
	seenConsts := make(map[string]bool)
	seenVars := make(map[string]bool)

	for _, node := range unit.Inner {
		if node.IsImplicit {
			continue
		}

		switch node.Kind {
		case "TypedefDecl":
			if blockedTypes[node.Name] || seenTypedefs[node.Name] {
				continue
			}
			if MatchesPattern(node.Name, allowTypePatterns...) {
				seenTypedefs[node.Name] = true
				if node.Type != nil && strings.Contains(node.Type.QualType, "(") {
					decls.FuncTypes = append(decls.FuncTypes, node.Name)
				} else {
					decls.Typedefs = append(decls.Typedefs, node.Name)
				}
			}

		case "RecordDecl":
			if node.Name == "" || blockedTypes[node.Name] || seenRecords[node.Name] {
				continue
			}
			if MatchesPattern(node.Name, allowTypePatterns...) {
				seenRecords[node.Name] = true
				decls.Records = append(decls.Records, node.Name)
			}

		case "EnumDecl":
			for _, c := range node.Inner {
				if c.Kind != "EnumConstantDecl" || seenConsts[c.Name] {
					continue
				}
				if MatchesPattern(c.Name, allowTypePatterns...) {
					seenConsts[c.Name] = true
					decls.EnumConst = append(decls.EnumConst, c.Name)
				}
			}

		case "FunctionDecl":
			if blockedFuncs[node.Name] || seenFuncs[node.Name] || node.Type == nil {
				continue
			}
			if MatchesPattern(node.Name, allowFuncPatterns...) {
				seenFuncs[node.Name] = true
				decls.Funcs = append(decls.Funcs, funcDecl{
					Name:     node.Name,
					QualType: node.Type.QualType,
					Variadic: node.Variadic,
				})
			}

		case "VarDecl":
			if node.StorageClass != "extern" || seenVars[node.Name] {
				continue
			}
			if MatchesPattern(node.Name, allowVarPatterns...) {
				seenVars[node.Name] = true
				decls.Vars = append(decls.Vars, node.Name)
			}
		}
	}

	// A record whose tag matches an emitted typedef would collide; in C
	// they are the same type anyway, so the typedef alias wins.
	records := decls.Records[:0]
	for _, name := range decls.Records {
		if !seenTypedefs[name] {
			records = append(records, name)
		}
	}
	decls.Records = records

	return decls
}
