package serialization

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/born-ml/kindle/internal/tensor"
)

// Version is the kindle version recorded in file headers.
const Version = "0.3.0"

// Writer writes state dicts in .kndl format.
//
// Data goes to a temporary file next to the destination; Close renames it
// into place.
type Writer struct {
	file    *os.File
	path    string
	written bool
	closed  bool
}

// NewWriter creates a new .kndl file writer.
func NewWriter(path string) (*Writer, error) {
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file")
	}
	return &Writer{file: file, path: path}, nil
}

// WriteStateDict writes state with the given header.
//
// Header.Tensors, FormatVersion, KindleVersion and CreatedAt are filled in
// by the writer. Tensors are stored in name order.
func (w *Writer) WriteStateDict(state map[string]*tensor.Tensor, header Header) error {
	if w.closed {
		return ErrClosed
	}

	header.FormatVersion = FormatVersion
	header.KindleVersion = Version
	header.CreatedAt = time.Now().UTC()
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	// Calculate tensor offsets and encode data
	var offset int64
	header.Tensors = make([]TensorMeta, 0, len(names))
	var data []byte
	for _, name := range names {
		t := state[name]
		size := int64(len(t.Data()) * 8)
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat64,
			Shape:  []int(t.Shape().Clone()),
			Offset: offset,
			Size:   size,
		})
		offset += size
		for _, v := range t.Data() {
			data = binary.LittleEndian.AppendUint64(data, math.Float64bits(v))
		}
	}

	if err := ValidateHeader(&header, int64(len(data)), ValidationStrict); err != nil {
		return errors.Wrap(err, "invalid state dict")
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return errors.Wrap(err, "failed to marshal header")
	}
	checksum := ComputeChecksum(data)

	fixedHeader := make([]byte, FixedHeaderSize)
	copy(fixedHeader[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixedHeader[4:8], uint32(FormatVersion))
	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.CheckpointMeta != nil && header.CheckpointMeta.HasOptimizer {
		flags |= FlagHasOptimizer
	}
	binary.LittleEndian.PutUint32(fixedHeader[8:12], flags)
	binary.LittleEndian.PutUint64(fixedHeader[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixedHeader[24:32], uint64(len(data)))
	copy(fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.file.Write(fixedHeader); err != nil {
		return errors.Wrap(err, "failed to write fixed header")
	}
	if _, err := w.file.Write(headerJSON); err != nil {
		return errors.Wrap(err, "failed to write header JSON")
	}

	padding := alignedOffset(int64(len(headerJSON))) - int64(FixedHeaderSize) - int64(len(headerJSON))
	if padding > 0 {
		if _, err := w.file.Write(make([]byte, padding)); err != nil {
			return errors.Wrap(err, "failed to write padding")
		}
	}

	if _, err := w.file.Write(data); err != nil {
		return errors.Wrap(err, "failed to write tensor data")
	}
	w.written = true
	return nil
}

// Close flushes the file and moves it into place. If nothing was written
// the temporary file is discarded.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	tmp := w.file.Name()
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		_ = os.Remove(tmp)
		return errors.Wrap(err, "failed to sync file")
	}
	if err := w.file.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "failed to close file")
	}
	if !w.written {
		return os.Remove(tmp)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "failed to move file into place")
	}
	return nil
}

// Save writes state to path in one call.
func Save(path string, state map[string]*tensor.Tensor, header Header) error {
	w, err := NewWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteStateDict(state, header); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
