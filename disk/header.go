package disk

import (
	"fmt"

	"github.com/hupe1980/diskgraph/internal/rw"
)

const (
	// MagicV1 identifies current-version artifacts ("ODGI"). Version-0
	// artifacts predate the magic and are detected by its absence.
	MagicV1 uint32 = 0x4F444749

	// CurrentVersion is the artifact version emitted by writers.
	CurrentVersion = 1
)

// CommonHeader holds the graph-global fields shared by every artifact
// version.
type CommonHeader struct {
	Version   int
	Size      int // N: node count
	Dimension int // D: vector dimensionality, 0 if no vector feature
	EntryNode int
	MaxDegree int // M: fixed neighbor bound
}

// featureInfo is the read-side representation of a parsed feature
// header block.
type featureInfo interface {
	id() FeatureID
	inlineSize() int
}

// writeHeader emits the full artifact header: common fields, feature
// bitmask, and per-feature header blocks in ascending bitshift order.
func writeHeader(w *rw.Writer, common CommonHeader, features []Feature) error {
	if err := w.WriteU32(MagicV1); err != nil {
		return err
	}
	if err := w.WriteU32(CurrentVersion); err != nil {
		return err
	}
	for _, v := range []int32{
		int32(common.Size),
		int32(common.Dimension),
		int32(common.EntryNode),
		int32(common.MaxDegree),
	} {
		if err := w.WriteI32(v); err != nil {
			return err
		}
	}

	ids := make([]FeatureID, len(features))
	for i, f := range features {
		ids[i] = f.ID()
	}
	if err := w.WriteI32(SerializeFeatureSet(ids)); err != nil {
		return err
	}

	for _, f := range features {
		before := w.BytesWritten()
		if err := f.WriteHeader(w); err != nil {
			return err
		}
		if got := w.BytesWritten() - before; got != int64(f.HeaderSize()) {
			return fmt.Errorf("%w: feature %v header wrote %d bytes, declared %d", ErrPrecondition, f.ID(), got, f.HeaderSize())
		}
	}

	return nil
}

// parseHeader reads the header at base, probing the leading word to
// distinguish current artifacts from version-0 ones (which omit magic
// and version and imply INLINE_VECTORS only). It returns the common
// header, the parsed feature infos in ascending bitshift order, and
// the offset one past the header.
func parseHeader(r *rw.Reader, base int64) (*CommonHeader, []featureInfo, int64, error) {
	r.Seek(base)
	probe, err := r.ReadU32()
	if err != nil {
		return nil, nil, 0, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}

	common := &CommonHeader{}
	var ids []FeatureID

	if probe == MagicV1 {
		version, err := r.ReadU32()
		if err != nil {
			return nil, nil, 0, fmt.Errorf("%w: header: %v", ErrFormat, err)
		}
		if version > CurrentVersion {
			return nil, nil, 0, fmt.Errorf("%w: %d (current %d)", ErrInvalidVersion, version, CurrentVersion)
		}
		common.Version = int(version)

		fields := make([]int32, 5)
		if err := r.ReadI32Into(fields); err != nil {
			return nil, nil, 0, fmt.Errorf("%w: header: %v", ErrFormat, err)
		}
		common.Size = int(fields[0])
		common.Dimension = int(fields[1])
		common.EntryNode = int(fields[2])
		common.MaxDegree = int(fields[3])

		ids, err = DeserializeFeatureSet(fields[4])
		if err != nil {
			return nil, nil, 0, err
		}
	} else {
		// No magic: a version-0 artifact starting with N.
		common.Version = 0
		common.Size = int(int32(probe))

		fields := make([]int32, 3)
		if err := r.ReadI32Into(fields); err != nil {
			return nil, nil, 0, fmt.Errorf("%w: header: %v", ErrFormat, err)
		}
		common.Dimension = int(fields[0])
		common.EntryNode = int(fields[1])
		common.MaxDegree = int(fields[2])

		ids = []FeatureID{FeatureInlineVectors}
	}

	if err := validateCommon(common); err != nil {
		return nil, nil, 0, err
	}

	infos := make([]featureInfo, 0, len(ids))
	if common.Version == 0 {
		infos = append(infos, newInlineVectorsInfoV0(common.Dimension))
	} else {
		for _, id := range ids {
			var (
				info featureInfo
				err  error
			)
			switch id {
			case FeatureInlineVectors:
				info, err = loadInlineVectors(common, r)
			case FeatureFusedADC:
				info, err = loadFusedADC(common, r)
			case FeatureLVQ:
				info, err = loadLVQ(common, r)
			default:
				err = fmt.Errorf("%w: no loader for feature %v", ErrFormat, id)
			}
			if err != nil {
				return nil, nil, 0, err
			}
			infos = append(infos, info)
		}
	}

	if err := validateFeatureSet(ids); err != nil {
		return nil, nil, 0, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	return common, infos, r.Position(), nil
}

func validateCommon(common *CommonHeader) error {
	if common.Size < 0 {
		return fmt.Errorf("%w: negative node count %d", ErrFormat, common.Size)
	}
	if common.Dimension < 0 {
		return fmt.Errorf("%w: negative dimension %d", ErrFormat, common.Dimension)
	}
	if common.MaxDegree <= 0 {
		return fmt.Errorf("%w: max degree %d", ErrFormat, common.MaxDegree)
	}
	if common.Size > 0 && (common.EntryNode < 0 || common.EntryNode >= common.Size) {
		return fmt.Errorf("%w: entry node %d outside [0, %d)", ErrFormat, common.EntryNode, common.Size)
	}
	return nil
}

// validateFeatureSet enforces the cross-feature rule: FUSED_ADC is an
// approximate source and needs an exact one next to it.
func validateFeatureSet(ids []FeatureID) error {
	var fused, exact bool
	for _, id := range ids {
		switch id {
		case FeatureFusedADC:
			fused = true
		case FeatureInlineVectors, FeatureLVQ:
			exact = true
		}
	}
	if fused && !exact {
		return fmt.Errorf("fused ADC requires an exact score source")
	}
	return nil
}
