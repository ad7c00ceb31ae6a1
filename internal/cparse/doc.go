// Package cparse adapts the external C front end (modernc.org/cc/v3) into
// the raw declaration tree the rest of the pipeline consumes.
//
// The adapter is deliberately narrow: it turns (header paths, preprocessor
// flags) into plain-data RawDecl/RawType values and nothing downstream ever
// imports cc. C grammar, preprocessing and constant evaluation stay inside
// the front end; this package only reshapes its output.
package cparse
