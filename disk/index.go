package disk

import (
	"fmt"
	"io"

	"github.com/hupe1980/diskgraph/internal/rw"
)

// Index is a handle to a persisted graph artifact: the parsed header
// plus the shared immutable byte image. It is cheap to share; all
// per-goroutine state lives in Views.
type Index struct {
	r         io.ReaderAt
	common    *CommonHeader
	infos     []featureInfo
	headerEnd int64 // absolute offset of record 0

	recordSize   int64
	featOff      map[FeatureID]int64 // record-relative payload offsets
	neighborsOff int64               // record-relative offset of the neighbor count

	inline *inlineVectorsInfo
	lvq    *lvqInfo
	fused  *fusedADCInfo
}

// OpenIndex parses the artifact header found at base within r. The
// byte image behind r must be immutable for the life of the Index;
// typically it is a memory mapping or a pread-backed blob.
func OpenIndex(r io.ReaderAt, base int64) (*Index, error) {
	common, infos, headerEnd, err := parseHeader(rw.NewReader(r), base)
	if err != nil {
		return nil, err
	}

	ix := &Index{
		r:         r,
		common:    common,
		infos:     infos,
		headerEnd: headerEnd,
		featOff:   make(map[FeatureID]int64, len(infos)),
	}

	off := int64(4) // leading sanity ordinal
	for _, info := range infos {
		ix.featOff[info.id()] = off
		off += int64(info.inlineSize())

		switch f := info.(type) {
		case *inlineVectorsInfo:
			ix.inline = f
		case *lvqInfo:
			ix.lvq = f
		case *fusedADCInfo:
			ix.fused = f
		}
	}
	ix.neighborsOff = off
	ix.recordSize = off + 4 + 4*int64(common.MaxDegree)

	return ix, nil
}

// Size returns the node count N.
func (ix *Index) Size() int {
	return ix.common.Size
}

// Dimension returns the vector dimensionality D.
func (ix *Index) Dimension() int {
	return ix.common.Dimension
}

// MaxDegree returns the fixed neighbor bound M.
func (ix *Index) MaxDegree() int {
	return ix.common.MaxDegree
}

// EntryNode returns the search entry ordinal.
func (ix *Index) EntryNode() int {
	return ix.common.EntryNode
}

// Version returns the artifact format version.
func (ix *Index) Version() int {
	return ix.common.Version
}

// Features returns the enabled feature kinds in ascending bitshift
// order.
func (ix *Index) Features() []FeatureID {
	ids := make([]FeatureID, len(ix.infos))
	for i, info := range ix.infos {
		ids[i] = info.id()
	}
	return ids
}

// RecordSize returns the constant per-node record stride in bytes.
func (ix *Index) RecordSize() int64 {
	return ix.recordSize
}

// recordOffset returns the absolute offset of node k's record.
func (ix *Index) recordOffset(k int) int64 {
	return ix.headerEnd + int64(k)*ix.recordSize
}

// checkNode validates a node ordinal.
func (ix *Index) checkNode(k int) error {
	if k < 0 || k >= ix.common.Size {
		return fmt.Errorf("disk: node %d outside [0, %d)", k, ix.common.Size)
	}
	return nil
}

// View creates an independent read cursor over the artifact. Views are
// single-goroutine resources; create one per worker.
func (ix *Index) View() *View {
	return &View{
		ix:        ix,
		r:         rw.NewReader(ix.r),
		neighbors: make([]int32, ix.common.MaxDegree),
	}
}
