package diag

import "fmt"

type Code uint16

// Code ranges follow the pipeline stages. 1xxx is the C front end, 2xxx the
// type model, 3xxx layout probing, 4xxx emission, 5xxx output assembly.
// Per-symbol codes are collected in a Bag; fatal conditions travel as plain
// errors and never reach a Bag.
const (
	UnknownCode Code = 0

	// Front end (Declaration Source)
	SrcInfo       Code = 1000
	SrcParse      Code = 1001 // header failed to parse under the given flags
	SrcSkippedDef Code = 1002 // function definition in a header, not bindable

	// Type model
	ModelInfo           Code = 2000
	ModelUndefinedType  Code = 2001 // referenced type never defined in any input
	ModelTypedefCycle   Code = 2002
	ModelAnonNoSpelling Code = 2003 // anonymous aggregate with no way to name it in C
	ModelBitfieldHost   Code = 2004

	// Layout probing
	ProbeInfo     Code = 3000
	ProbeCompile  Code = 3001 // probe program failed to compile
	ProbeExec     Code = 3002 // probe compiled but failed to run
	ProbeTimeout  Code = 3003
	ProbeParse    Code = 3004 // probe output not in the expected format
	ProbeDepends  Code = 3005 // type unresolved because a dependency failed
	ProbeCacheHit Code = 3006

	// Emission
	EmitInfo        Code = 4000
	EmitNoRule      Code = 4001 // no mapping rule matches a required type
	EmitUnavailable Code = 4002 // declaration downgraded to an unavailable stub
	EmitVariadic    Code = 4003 // variadic wrapper requires pre-marshaled args
	EmitGlobalVar   Code = 4004

	// Output assembly
	AsmInfo      Code = 5000
	AsmDuplicate Code = 5001 // same symbol identity requested twice in a module
)

func (c Code) String() string {
	return fmt.Sprintf("FFI%04d", uint16(c))
}
