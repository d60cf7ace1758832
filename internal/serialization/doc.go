// Package serialization writes encoder weights in the SafeTensors format and
// validates tensor headers read back from disk.
//
// SafeTensors layout:
//
//	[8 bytes: header size N (uint64 LE)]
//	[N bytes: JSON header {"name": {"dtype", "shape", "data_offsets"}, "__metadata__": {...}}]
//	[tensor data: raw little-endian bytes]
//
// Files written here carry a "sha256" metadata entry covering the data
// section, which readers may verify with ValidateChecksum.
//
// Example usage:
//
//	state := encoder.StateDict()
//	if err := serialization.WriteSafeTensors("encoder.safetensors", state, map[string]string{
//	    "format": "patchformer",
//	}); err != nil {
//	    log.Fatal(err)
//	}
package serialization
