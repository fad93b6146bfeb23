package qjsbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typed(qualType string) *astType {
	return &astType{QualType: qualType}
}

func TestFilterDeclarations(t *testing.T) {
	unit := &astNode{
		Kind: "TranslationUnitDecl",
		Inner: []astNode{
			{Kind: "TypedefDecl", Name: "__int128_t", IsImplicit: true, Type: typed("__int128")},
			{Kind: "RecordDecl", Name: "JSRuntime", TagUsed: "struct"},
			{Kind: "TypedefDecl", Name: "JSRuntime", Type: typed("struct JSRuntime")},
			{Kind: "RecordDecl", Name: "JSGCObjectHeader", TagUsed: "struct"},
			{Kind: "TypedefDecl", Name: "JSAtom", Type: typed("uint32_t")},
			{Kind: "TypedefDecl", Name: "JSCFunction", Type: typed("JSValue (JSContext *, JSValueConst, int, JSValueConst *)")},
			{Kind: "TypedefDecl", Name: "FILE", Type: typed("struct _IO_FILE")},
			{Kind: "RecordDecl", Name: "timespec", TagUsed: "struct"},
			{Kind: "EnumDecl", Inner: []astNode{
				{Kind: "EnumConstantDecl", Name: "JS_TAG_INT"},
				{Kind: "EnumConstantDecl", Name: "JS_TAG_BOOL"},
				{Kind: "EnumConstantDecl", Name: "OTHER_CONSTANT"},
			}},
			{Kind: "FunctionDecl", Name: "JS_NewRuntime", Type: typed("JSRuntime *(void)")},
			{Kind: "FunctionDecl", Name: "JS_NewRuntime", Type: typed("JSRuntime *(void)")},
			{Kind: "FunctionDecl", Name: "js_string_memcmp", Type: typed("int (const void *, const void *, size_t)")},
			{Kind: "FunctionDecl", Name: "__JS_FreeValue", Type: typed("void (JSContext *, JSValue)")},
			{Kind: "FunctionDecl", Name: "JS_DumpMemoryUsage", Type: typed("void (JSRuntime *)")},
			{Kind: "FunctionDecl", Name: "printf", Type: typed("int (const char *, ...)"), Variadic: true},
			{Kind: "VarDecl", Name: "JS_ATOM_NULL", StorageClass: "extern", Type: typed("JSAtom")},
			{Kind: "VarDecl", Name: "local_state", Type: typed("int")},
		},
	}

	decls := filterDeclarations(unit)

	assert.Equal(t, []string{"JSRuntime", "JSAtom"}, decls.Typedefs)
	assert.Equal(t, []string{"JSCFunction"}, decls.FuncTypes)
	assert.Equal(t, []string{"JSGCObjectHeader"}, decls.Records,
		"records collapse into typedefs of the same name; unrelated tags are ignored")
	assert.Equal(t, []string{"JS_TAG_INT", "JS_TAG_BOOL"}, decls.EnumConst)

	require.Len(t, decls.Funcs, 3, "duplicates collapse, blocked and foreign functions drop")
	assert.Equal(t, "JS_NewRuntime", decls.Funcs[0].Name)
	assert.Equal(t, "js_string_memcmp", decls.Funcs[1].Name)
	assert.Equal(t, "__JS_FreeValue", decls.Funcs[2].Name)

	assert.Equal(t, []string{"JS_ATOM_NULL"}, decls.Vars)
}

func TestFilterDeclarationsBlocksOpaqueFile(t *testing.T) {
	unit := &astNode{
		Kind: "TranslationUnitDecl",
		Inner: []astNode{
			{Kind: "TypedefDecl", Name: "FILE", Type: typed("struct _IO_FILE")},
			{Kind: "RecordDecl", Name: "FILE"},
		},
	}

	decls := filterDeclarations(unit)
	assert.Empty(t, decls.Typedefs)
	assert.Empty(t, decls.Records)
}
