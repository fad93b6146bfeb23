package qjsbuild

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// cgoBuiltins maps C builtin and fixed-width type spellings to their cgo
// names. Every entry keeps its exact C width: size_t stays C.size_t and is
// never collapsed into int or uintptr, so a declaration compiled for a
// 32-bit target cannot silently widen on a 64-bit one.
var cgoBuiltins = map[string]string{
	"char":               "C.char",
	"signed char":        "C.schar",
	"unsigned char":      "C.uchar",
	"short":              "C.short",
	"unsigned short":     "C.ushort",
	"int":                "C.int",
	"unsigned int":       "C.uint",
	"long":               "C.long",
	"unsigned long":      "C.ulong",
	"long long":          "C.longlong",
	"unsigned long long": "C.ulonglong",
	"float":              "C.float",
	"double":             "C.double",
	"_Bool":              "C.bool",
	"int8_t":             "C.int8_t",
	"uint8_t":            "C.uint8_t",
	"int16_t":            "C.int16_t",
	"uint16_t":           "C.uint16_t",
	"int32_t":            "C.int32_t",
	"uint32_t":           "C.uint32_t",
	"int64_t":            "C.int64_t",
	"uint64_t":           "C.uint64_t",
	"intptr_t":           "C.intptr_t",
	"uintptr_t":          "C.uintptr_t",
	"size_t":             "C.size_t",
	"ssize_t":            "C.ssize_t",
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// errUnmappable marks a C type the emitter cannot express as a cgo type
// (function pointers without a typedef name, arrays, anonymous aggregates).
type errUnmappable struct {
	ctype string
}

func (e *errUnmappable) Error() string {
	return fmt.Sprintf("unmappable C type %q", e.ctype)
}

// cgoType translates one C type spelling from a clang qualType into its cgo
// equivalent. void maps to unsafe.Pointer only behind a pointer; a bare void
// is valid solely as a return type and is handled by the caller.
func cgoType(ctype string) (string, error) {
	t := strings.TrimSpace(ctype)
	t = strings.TrimPrefix(t, "const ")
	t = strings.TrimPrefix(t, "volatile ")
	t = strings.TrimSuffix(t, " const")

	if strings.ContainsAny(t, "([") {
		// Function or array type. Pointer-to-named-typedef callbacks are
		// handled below because their qualType is just "Name *".
		return "", &errUnmappable{ctype}
	}

	if strings.HasSuffix(t, "*") {
		inner := strings.TrimSpace(strings.TrimSuffix(t, "*"))
		if strings.TrimPrefix(inner, "const ") == "void" {
			return "unsafe.Pointer", nil
		}
		mapped, err := cgoType(inner)
		if err != nil {
			return "", err
		}
		return "*" + mapped, nil
	}

	if mapped, ok := cgoBuiltins[t]; ok {
		return mapped, nil
	}
	if tag, found := strings.CutPrefix(t, "struct "); found && identRe.MatchString(tag) {
		return "C.struct_" + tag, nil
	}
	if tag, found := strings.CutPrefix(t, "union "); found && identRe.MatchString(tag) {
		return "C.union_" + tag, nil
	}
	if tag, found := strings.CutPrefix(t, "enum "); found && identRe.MatchString(tag) {
		return "C.enum_" + tag, nil
	}
	if identRe.MatchString(t) {
		// Named typedef (JSValue, JSCFunction, ...).
		return "C." + t, nil
	}
	return "", &errUnmappable{ctype}
}

// splitFuncType breaks a clang function qualType like
// "JSValue (JSContext *, JSValueConst, int)" into its return type and
// parameter type list. Parameters nested inside function-pointer parens stay
// intact.
func splitFuncType(qualType string) (ret string, params []string, err error) {
	open := strings.Index(qualType, "(")
	if open < 0 || !strings.HasSuffix(qualType, ")") {
		return "", nil, fmt.Errorf("not a function type: %q", qualType)
	}
	ret = strings.TrimSpace(qualType[:open])
	inner := qualType[open+1 : len(qualType)-1]

	depth := 0
	start := 0
	for i, r := range inner {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				params = append(params, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(inner[start:]); rest != "" {
		params = append(params, rest)
	}

	if len(params) == 1 && params[0] == "void" {
		params = nil
	}
	return ret, params, nil
}

// renderBindings emits the generated cgo declaration file for a target: type
// aliases, enum constants, extern variables, and one callable wrapper per
// mappable function. Symbols the mapper cannot express are recorded as
// comment notes rather than dropped silently.
func renderBindings(triple string, decls *declarations) ([]byte, error) {
	var body bytes.Buffer
	needsUnsafe := false

	for _, name := range decls.Typedefs {
		fmt.Fprintf(&body, "type %s = C.%s\n", name, name)
	}
	if len(decls.Typedefs) > 0 {
		body.WriteString("\n")
	}

	for _, name := range decls.Records {
		fmt.Fprintf(&body, "type %s = C.struct_%s\n", name, name)
	}
	if len(decls.Records) > 0 {
		body.WriteString("\n")
	}

	if len(decls.EnumConst) > 0 {
		body.WriteString("const (\n")
		for _, name := range decls.EnumConst {
			fmt.Fprintf(&body, "\t%s = C.%s\n", name, name)
		}
		body.WriteString(")\n\n")
	}

	for _, name := range decls.Vars {
		fmt.Fprintf(&body, "var %s = C.%s\n", name, name)
	}
	if len(decls.Vars) > 0 {
		body.WriteString("\n")
	}

	var notes []string
	for _, name := range decls.FuncTypes {
		notes = append(notes, fmt.Sprintf("%s: function type, use behind a C pointer", name))
	}
	for _, fn := range decls.Funcs {
		if fn.Variadic || strings.Contains(fn.QualType, "...") {
			notes = append(notes, fmt.Sprintf("%s: skipped (variadic)", fn.Name))
			continue
		}

		ret, params, err := splitFuncType(fn.QualType)
		if err != nil {
			notes = append(notes, fmt.Sprintf("%s: skipped (%v)", fn.Name, err))
			continue
		}

		var goParams, callArgs []string
		mappable := true
		for i, p := range params {
			mapped, err := cgoType(p)
			if err != nil {
				notes = append(notes, fmt.Sprintf("%s: skipped (%v)", fn.Name, err))
				mappable = false
				break
			}
			if strings.Contains(mapped, "unsafe.Pointer") {
				needsUnsafe = true
			}
			arg := fmt.Sprintf("p%d", i)
			goParams = append(goParams, arg+" "+mapped)
			callArgs = append(callArgs, arg)
		}
		if !mappable {
			continue
		}

		call := fmt.Sprintf("C.%s(%s)", fn.Name, strings.Join(callArgs, ", "))
		if ret == "void" {
			fmt.Fprintf(&body, "func %s(%s) {\n\t%s\n}\n\n", fn.Name, strings.Join(goParams, ", "), call)
			continue
		}

		retType, err := cgoType(ret)
		if err != nil {
			notes = append(notes, fmt.Sprintf("%s: skipped (%v)", fn.Name, err))
			continue
		}
		if strings.Contains(retType, "unsafe.Pointer") {
			needsUnsafe = true
		}
		fmt.Fprintf(&body, "func %s(%s) %s {\n\treturn %s\n}\n\n", fn.Name, strings.Join(goParams, ", "), retType, call)
	}

	var out bytes.Buffer
	out.WriteString("// Code generated by quickjs-build-go. DO NOT EDIT.\n\npackage bindings\n\n")
	out.WriteString("/*\n#cgo CFLAGS: -I${SRCDIR}\n#include \"quickjs.bind.h\"\n*/\nimport \"C\"\n\n")
	if needsUnsafe {
		out.WriteString("import \"unsafe\"\n\n")
	}
	fmt.Fprintf(&out, "// Target is the triple these declarations were generated for.\nconst Target = %q\n\n", triple)
	if len(notes) > 0 {
		out.WriteString("// Declarations outside the cgo-expressible surface:\n")
		for _, note := range notes {
			fmt.Fprintf(&out, "//\t%s\n", note)
		}
		out.WriteString("\n")
	}
	out.Write(bytes.TrimRight(body.Bytes(), "\n"))
	out.WriteString("\n")

	return out.Bytes(), nil
}
