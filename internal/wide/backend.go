package wide

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Backend names a lane width implementation.
type Backend uint32

const (
	// Auto defers the choice to Detect.
	Auto Backend = iota
	// Scalar uses F32x1.
	Scalar
	// Wide4 uses F32x4.
	Wide4
	// Wide8 uses F32x8.
	Wide8
)

// EnvLanes overrides the detected backend when set to 1, 4 or 8.
const EnvLanes = "TERRAIN_LANES"

// ErrBackendLocked is returned by SetDefault after the process-wide backend
// has already been selected.
var ErrBackendLocked = errors.New("wide: backend already selected")

// Lanes returns the lane width of the backend, or 0 for Auto.
func (b Backend) Lanes() int {
	switch b {
	case Scalar:
		return 1
	case Wide4:
		return 4
	case Wide8:
		return 8
	default:
		return 0
	}
}

// String returns the backend name.
func (b Backend) String() string {
	switch b {
	case Auto:
		return "auto"
	case Scalar:
		return "scalar"
	case Wide4:
		return "wide4"
	case Wide8:
		return "wide8"
	default:
		return fmt.Sprintf("Backend(%d)", uint32(b))
	}
}

// ParseBackend accepts a backend name or a lane count.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "auto":
		return Auto, nil
	case "1", "scalar":
		return Scalar, nil
	case "4", "wide4":
		return Wide4, nil
	case "8", "wide8":
		return Wide8, nil
	}
	return Auto, fmt.Errorf("wide: unknown backend %q", s)
}

// ForLanes maps a lane count (0, 1, 4 or 8) to a backend.
func ForLanes(n int) (Backend, error) {
	switch n {
	case 0:
		return Auto, nil
	case 1:
		return Scalar, nil
	case 4:
		return Wide4, nil
	case 8:
		return Wide8, nil
	}
	return Auto, fmt.Errorf("wide: unsupported lane count %d", n)
}

// Detect picks the widest backend the CPU is expected to benefit from.
func Detect() Backend {
	switch {
	case cpu.X86.HasAVX, cpu.X86.HasAVX2, cpu.X86.HasAVX512F, cpu.ARM64.HasASIMD:
		return Wide8
	case cpu.X86.HasSSE41, cpu.X86.HasSSE2:
		return Wide4
	default:
		return Scalar
	}
}

// active holds the selected backend; zero (Auto) means not yet selected.
var active atomic.Uint32

// Active returns the process-wide backend, selecting it on first use from
// the TERRAIN_LANES environment variable or Detect.
func Active() Backend {
	if b := Backend(active.Load()); b != Auto {
		return b
	}
	b := fromEnv()
	if b == Auto {
		b = Detect()
	}
	active.CompareAndSwap(uint32(Auto), uint32(b))
	return Backend(active.Load())
}

// SetDefault fixes the process-wide backend. Auto selects Detect. It fails
// with ErrBackendLocked once a different backend has been selected.
func SetDefault(b Backend) error {
	if b == Auto {
		b = Detect()
	}
	if b.Lanes() == 0 {
		return fmt.Errorf("wide: invalid backend %v", b)
	}
	if active.CompareAndSwap(uint32(Auto), uint32(b)) {
		return nil
	}
	if Backend(active.Load()) == b {
		return nil
	}
	return ErrBackendLocked
}

// Resolve returns b, or the process-wide backend when b is Auto.
func Resolve(b Backend) Backend {
	if b == Auto {
		return Active()
	}
	return b
}

func fromEnv() Backend {
	v, ok := os.LookupEnv(EnvLanes)
	if !ok {
		return Auto
	}
	b, err := ParseBackend(v)
	if err != nil {
		return Auto
	}
	return b
}
