package serialization

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrChecksumMismatch = errors.New("checksum mismatch: file may be corrupted")
	ErrHeaderTooLarge   = errors.New("header exceeds maximum size")
)

// ValidationError reports a malformed header entry. Type is a stable
// machine-readable tag such as "offset_overlap"; Tensor2 is set only for
// errors involving two tensors.
type ValidationError struct {
	Type    string
	Tensor  string
	Tensor2 string
	Details string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Type)
	switch {
	case e.Tensor2 != "":
		fmt.Fprintf(&b, ": tensors %q and %q", e.Tensor, e.Tensor2)
	case e.Tensor != "":
		fmt.Fprintf(&b, ": tensor %q", e.Tensor)
	}
	b.WriteString(": ")
	b.WriteString(e.Details)
	return b.String()
}
