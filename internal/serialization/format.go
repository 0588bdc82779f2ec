package serialization

import (
	"time"
)

// Format constants.
const (
	MagicBytes      = "KNDL"
	FormatVersion   = 1    // v1: fixed header with SHA-256 checksum
	HeaderAlignment = 64   // Align tensor data to 64 bytes
	FixedHeaderSize = 64   // fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// DTypeFloat64 is the only tensor dtype written by kindle.
const DTypeFloat64 = "float64"

// Flags for the .kndl format.
const (
	FlagHasOptimizer uint32 = 1 << 0 // bit 0: optimizer state included
	FlagHasMetadata  uint32 = 1 << 1 // bit 1: custom metadata included
)

// Tensor name prefixes used inside a trainer checkpoint.
const (
	ModelPrefix     = "model."
	OptimizerPrefix = "optim."
)

// Header represents the JSON header in a .kndl file.
type Header struct {
	FormatVersion  int               `json:"format_version"`       // Version of the .kndl format
	KindleVersion  string            `json:"kindle_version"`       // Version of kindle that created this file
	ModelType      string            `json:"model_type"`           // Type of model (e.g., "Model", "Sequential")
	CreatedAt      time.Time         `json:"created_at"`           // When the file was created
	Tensors        []TensorMeta      `json:"tensors"`              // Tensor metadata
	Metadata       map[string]string `json:"metadata"`             // Custom metadata
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"` // Training state (optional)
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	Epoch         int                `json:"epoch"`             // Last completed epoch (0-based)
	Step          int64              `json:"step"`              // Global batch index
	RunID         string             `json:"run_id"`            // Trainer run id
	OptimizerType string             `json:"optimizer_type"`    // "adam", "sgd" or empty
	HasOptimizer  bool               `json:"has_optimizer"`     // Whether optim.* tensors are present
	Metrics       map[string]float64 `json:"metrics,omitempty"` // Validation metrics at save time
}

// TensorMeta describes a tensor in the .kndl file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "model.0.weight")
	DType  string `json:"dtype"`  // Data type (always "float64")
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section (bytes from start of tensor data)
	Size   int64  `json:"size"`   // Size in bytes
}

// alignedOffset returns the start of the data section for a header of the
// given JSON size.
func alignedOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-(pos%HeaderAlignment))%HeaderAlignment
}
