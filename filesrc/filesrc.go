// Package filesrc implements the deduplicated file-content registry
// of spec.md §3 "FileSrc": one record per distinct (fs_id, dev_id,
// ino_id) identity triple, shared by every logical File node whose
// stream resolves to the same on-disk content.
package filesrc

import (
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/go-iso9660/isoimage/isoerr"
	"github.com/go-iso9660/isoimage/stream"
)

// FileSrc is the deduplicated content record (spec.md §3). Block is
// zero until Registry.AssignBlocks runs in writer pass 1.
type FileSrc struct {
	Identity   stream.Identity
	Content    stream.Stream
	PrevImg    bool // imported from a previous session; excluded from new-data assignment
	SortWeight int32
	Block      uint32
}

// Registry deduplicates FileSrc records by identity triple, created or
// looked up exactly once per identity via singleflight so concurrent
// importers racing on the same file never produce two records (spec.md
// §8 invariant "A FileSrc is in the registry at most once per identity
// triple").
type Registry struct {
	mu      sync.Mutex
	byIdent map[stream.Identity]*FileSrc
	group   singleflight.Group
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{byIdent: make(map[stream.Identity]*FileSrc)}
}

// GetOrCreate returns the FileSrc for content's identity, creating one
// on first sight. sortWeight and prevImg are only applied on creation;
// a later call for the same identity with different values is ignored,
// since a dedup key is defined to carry exactly one record.
func (r *Registry) GetOrCreate(content stream.Stream, sortWeight int32, prevImg bool) (*FileSrc, error) {
	id := content.Identity()
	key := fmt.Sprintf("%d:%d:%d", id.FSID, id.DevID, id.InoID)

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		r.mu.Lock()
		if existing, ok := r.byIdent[id]; ok {
			r.mu.Unlock()
			return existing, nil
		}
		r.mu.Unlock()

		if !content.IsRepeatable() {
			return nil, fmt.Errorf("%w: file content stream for identity %+v is not repeatable", isoerr.ErrPrecondition, id)
		}
		if content.Size() > isoerr.MaxFileSize {
			return nil, fmt.Errorf("%w: file content stream for identity %+v is %d bytes", isoerr.ErrFileTooBig, id, content.Size())
		}
		fs := &FileSrc{Identity: id, Content: content, PrevImg: prevImg, SortWeight: sortWeight}

		r.mu.Lock()
		r.byIdent[id] = fs
		r.mu.Unlock()
		return fs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*FileSrc), nil
}

// Len returns the number of distinct FileSrc records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byIdent)
}

// All returns every FileSrc in the registry, in unspecified order.
func (r *Registry) All() []*FileSrc {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*FileSrc, 0, len(r.byIdent))
	for _, fs := range r.byIdent {
		out = append(out, fs)
	}
	return out
}

// SortedForAssignment returns the records to place in the new data
// region, sorted by SortWeight descending and then by identity for a
// deterministic tie-break, excluding PrevImg records when
// excludePrevImg is set (spec.md §4.4 pass 1: "sorts its deduplicated
// file set (by sort_weight desc, then by identity, excluding files
// flagged prev_img when in appendable mode)").
func (r *Registry) SortedForAssignment(excludePrevImg bool) []*FileSrc {
	all := r.All()
	out := make([]*FileSrc, 0, len(all))
	for _, fs := range all {
		if excludePrevImg && fs.PrevImg {
			continue
		}
		out = append(out, fs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortWeight != out[j].SortWeight {
			return out[i].SortWeight > out[j].SortWeight
		}
		return identityLess(out[i].Identity, out[j].Identity)
	})
	return out
}

func identityLess(a, b stream.Identity) bool {
	if a.FSID != b.FSID {
		return a.FSID < b.FSID
	}
	if a.DevID != b.DevID {
		return a.DevID < b.DevID
	}
	return a.InoID < b.InoID
}

// AssignBlocks stamps an absolute starting block into each record
// returned by SortedForAssignment(excludePrevImg), advancing a cursor
// that begins at startBlock, and returns the first free block after
// the assignment (writer pass 1 "compute_data_blocks").
func AssignBlocks(records []*FileSrc, startBlock uint32, blockSize int64) uint32 {
	cur := startBlock
	for _, fs := range records {
		fs.Block = cur
		size := fs.Content.Size()
		if size == 0 {
			continue // a zero-byte file's directory record carries no extent of its own
		}
		blocks := (size + blockSize - 1) / blockSize
		cur += uint32(blocks)
	}
	return cur
}
