package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasicFile(t *testing.T) {
	src := `
# a comment
@properties {
	feature_default "shaders" true;
}

@install {
	if modloader fabric {
		addon "mod" url "https://example.com/${MINECRAFT_VERSION}/sodium.jar";
	}
	if not side client {
		finish;
	}
}
`
	f, err := Parse(src)
	require.Nil(t, err)
	require.Len(t, f.Routines, 2)
	assert.Equal(t, "properties", f.Routines[0].Name)
	assert.Equal(t, "install", f.Routines[1].Name)

	installInstrs := f.Routines[1].Instrs
	require.Len(t, installInstrs, 2)

	ifInstr, ok := installInstrs[0].(*IfInstr)
	require.True(t, ok)
	prim, ok := ifInstr.Cond.(*PrimCond)
	require.True(t, ok)
	assert.Equal(t, "modloader", prim.Kind)
}

func TestParseKeyValArgs(t *testing.T) {
	src := `@install { require "fabric-api" (optional=true); }`
	f, err := Parse(src)
	require.Nil(t, err)
	instr := f.Routines[0].Instrs[0].(*SimpleInstr)
	assert.Equal(t, "require", instr.Name)
	v, ok := instr.KeyVals["optional"].(*IdentArg)
	require.True(t, ok)
	assert.Equal(t, "true", v.Value)
}

func TestParseStringEscapesAndSubstitution(t *testing.T) {
	src := `@meta { name "Say \"hi\" to ${MINECRAFT_VERSION}"; }`
	f, err := Parse(src)
	require.Nil(t, err)
	instr := f.Routines[0].Instrs[0].(*SimpleInstr)
	str := instr.Args[0].(*StringArg)
	require.Len(t, str.Parts, 2)
	assert.Equal(t, `Say "hi" to `, str.Parts[0].Literal)
	assert.Equal(t, "MINECRAFT_VERSION", str.Parts[1].VarName)
}

func TestParseSelfCallRejected(t *testing.T) {
	src := `@foo { call foo; }`
	_, err := Parse(src)
	require.NotNil(t, err)
}

func TestParseCallCycleRejected(t *testing.T) {
	src := `
@a { call b; }
@b { call a; }
`
	_, err := Parse(src)
	require.NotNil(t, err)
}

func TestParseUnterminatedStringFails(t *testing.T) {
	src := `@a { notice "oops; }`
	_, err := Parse(src)
	require.NotNil(t, err)
}

func TestParseSemicolonInsideParensNotTerminator(t *testing.T) {
	// A ';' inside a quoted value of a () block does not end the
	// instruction, and commas between pairs are not terminators either.
	src := `@install { addon "mod" (a="x;y",b=y); }`
	f, err := Parse(src)
	require.Nil(t, err)
	instr := f.Routines[0].Instrs[0].(*SimpleInstr)
	assert.Len(t, instr.KeyVals, 2)
}
