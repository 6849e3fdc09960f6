// Package isoerr defines the error kinds shared across the image build
// engine. spec.md describes these as "outcomes, not types" returned as
// signed codes; here they are sentinel errors any package can wrap with
// fmt.Errorf("...: %w", isoerr.X) and callers can test with errors.Is.
package isoerr

import "errors"

var (
	// ErrPrecondition covers a null argument, a wrong argument value, or a
	// non-repeatable stream where repeatability is required.
	ErrPrecondition = errors.New("isoimage: precondition violated")

	// ErrResource covers out-of-memory, I/O errors, and a source file
	// that disappeared mid-build; an oversized file is ErrFileTooBig.
	ErrResource = errors.New("isoimage: resource error")

	// ErrInvariant signals a bug: duplicate sibling name, a node already
	// added, a node that is not a child of the parent it claims, or a
	// failed internal assertion.
	ErrInvariant = errors.New("isoimage: invariant violated")

	// ErrFormat covers a malformed PVD, unsupported Rock Ridge revision,
	// a damaged SUSP structure, a charset conversion failure, an invalid
	// El Torito boot image, or an inconsistent boot catalog.
	ErrFormat = errors.New("isoimage: format error")

	// ErrPolicy is returned when a client callback cancels an operation.
	ErrPolicy = errors.New("isoimage: cancelled by policy")

	// ErrNotFound is the conventional "end of iterator" / "no such node"
	// outcome — not fatal, just empty.
	ErrNotFound = errors.New("isoimage: not found")

	// ErrFileTooBig means a file stream declares a size above
	// 2^32-1 bytes, the ECMA-119 extent-size ceiling.
	ErrFileTooBig = errors.New("isoimage: file too big for a 32-bit extent")
)

// MaxFileSize is the largest byte count a single extent can address,
// fixed at 2^32-1 per spec.md §9 (resolving the ambiguity between the
// two historical code paths in the original implementation).
const MaxFileSize = 1<<32 - 1
