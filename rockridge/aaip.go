package rockridge

// entryAA wraps a pre-encoded AAIP attribute blob (as attached by
// fsimport.AAStringKey) in a single "AA" SUSP entry. AAIP itself
// defines a chained "AL" continuation scheme identical in shape to
// NM/CONTINUE; this implementation carries the blob as one entry
// (moved whole to the Continuation Area, like NM/SL, when it doesn't
// fit inline)
// rather than reproducing AAIP's own internal chaining, since
// fsimport already hands us the attribute set pre-serialized as one
// string.
func entryAA(blob string) []byte {
	return susp([2]byte{'A', 'A'}, []byte(blob))
}
