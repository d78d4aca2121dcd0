package media

import (
	"errors"
	"fmt"
)

// ErrOversize is matched by every *OversizeError.
var ErrOversize = errors.New("file too large")

// OversizeError reports a file rejected by the size policy.
type OversizeError struct {
	Size  int64
	Limit int64
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("file is %s, the limit is %s", humanBytes(e.Size), humanBytes(e.Limit))
}

func (e *OversizeError) Is(target error) bool { return target == ErrOversize }

// Policy limits what may be uploaded.
type Policy struct {
	MaxBytes int64 // 0 disables the limit
}

// Check rejects files over the limit.
func (p Policy) Check(size int64) error {
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return &OversizeError{Size: size, Limit: p.MaxBytes}
	}
	return nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
