// Package pipeline implements the writer-pipeline driver of spec.md
// §4.4: an ordered sequence of Writers run through three explicit
// passes (block assignment, volume-descriptor emission, data
// emission), feeding a bounded ring buffer whose consumer is the
// external sink. It generalizes the teacher's single-purpose
// ISOBuilder.Build (which hardcodes exactly the ECMA-119+Joliet
// sequence) into a driver any Writer can plug into.
package pipeline

import (
	"fmt"
	"sync"

	"github.com/go-iso9660/isoimage/node"
)

// BlockSize is the fixed logical block size every writer in this
// module assumes (ECMA-119 §6.1.2: 2048 bytes).
const BlockSize = 2048

// SystemAreaBlocks is the reserved, writer-opaque area at the start of
// every session (ECMA-119 §6.2.1).
const SystemAreaBlocks = 16

// Context is the shared, cross-writer state threaded through all three
// passes. Rather than growing one struct with a field per writer's
// published facts (path table LBAs, root extent size, boot catalog
// sector...), writers publish values under a string key and later
// passes — their own or another writer's — look them up, the same
// "opaque keyed extension" shape node.Node uses for xinfo (spec.md
// §9). This lets Writers added later (Rock Ridge continuation, El
// Torito) hand facts to ECMA-119/Joliet without those packages
// depending on every future writer's concrete type.
type Context struct {
	Image      *node.Image
	Appendable bool
	MSBlock    uint32 // LBA of the prior session's readable boundary; 0 if not appendable

	mu        sync.Mutex
	curBlock  uint32
	published map[string]interface{}
}

// NewContext starts the cursor after the system area, or after the
// prior session's boundary (+16) in appendable mode (spec.md §4.4
// "Multi-session (appendable) mode").
func NewContext(img *node.Image, appendable bool, msBlock uint32) *Context {
	start := uint32(SystemAreaBlocks)
	if appendable {
		start = msBlock + SystemAreaBlocks
	}
	return &Context{
		Image:      img,
		Appendable: appendable,
		MSBlock:    msBlock,
		curBlock:   start,
		published:  make(map[string]interface{}),
	}
}

// ReserveBlocks advances the shared cursor by n blocks and returns the
// first block of the reserved run. Pass-1 only; single-threaded by
// contract (the driver runs ReserveExtents for each writer in order).
func (c *Context) ReserveBlocks(n uint32) uint32 {
	start := c.curBlock
	c.curBlock += n
	return start
}

// CurBlock reports the cursor's current position.
func (c *Context) CurBlock() uint32 { return c.curBlock }

// Publish records a cross-writer fact under key.
func (c *Context) Publish(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published[key] = value
}

// Lookup retrieves a fact published by an earlier-run writer.
func (c *Context) Lookup(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.published[key]
	return v, ok
}

// MustLookup is Lookup for facts a later pass cannot proceed without.
func (c *Context) MustLookup(key string) (interface{}, error) {
	v, ok := c.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("pipeline: context has no published value for %q", key)
	}
	return v, nil
}
