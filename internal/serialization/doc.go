// Package serialization provides the native .kndl checkpoint format.
//
// A .kndl file stores a flat map of named float64 tensors (model weights and,
// optionally, optimizer state) plus JSON metadata describing the training
// run that produced it:
//
//	Format Structure:
//	  [64 bytes: fixed header]
//	    0x00-0x03  Magic "KNDL"
//	    0x04-0x07  Version (uint32 LE)
//	    0x08-0x0B  Flags (uint32 LE)
//	    0x0C-0x0F  Reserved
//	    0x10-0x17  Header size (uint64 LE)
//	    0x18-0x1F  Data size (uint64 LE)
//	    0x20-0x3F  SHA-256 of the data section
//	  [Header: JSON metadata]
//	  [Padding to a 64-byte boundary]
//	  [Tensor data: little-endian float64, sorted by tensor name]
//
// Example usage:
//
//	// Save
//	w, err := serialization.NewWriter("out/trainer.kndl")
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	err = w.WriteStateDict(state, serialization.Header{ModelType: "Model"})
//
//	// Load
//	r, err := serialization.NewReader("out/trainer.kndl")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//	state, err := r.StateDict()
package serialization
