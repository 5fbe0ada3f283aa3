package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratio is a sampling window: num of every den events pass.
type ratio struct{ num, den uint64 }

// ratioSampler lets a fixed share of high-volume debug events through.
// A zero ratio lets everything through.
type ratioSampler struct {
	r atomic.Pointer[ratio]
	n atomic.Uint64
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

// Set replaces the ratio and restarts the window. Non-positive values
// disable sampling; num is capped at den.
func (s *ratioSampler) Set(num, den int) {
	r := &ratio{}
	if num > 0 && den > 0 {
		r.num, r.den = uint64(min(num, den)), uint64(den)
	}
	s.r.Store(r)
	s.n.Store(0)
}

// Allow reports whether the next event passes.
func (s *ratioSampler) Allow() bool {
	r := s.r.Load()
	if r == nil || r.den == 0 {
		return true
	}
	return (s.n.Add(1)-1)%r.den < r.num
}

// parseRatioSpec accepts "a/b", "N" (one in N) and "P%" (P in 100).
// "off", "all" and unparsable input yield 0/0.
func parseRatioSpec(spec string) (num, den int) {
	spec = strings.ToLower(strings.TrimSpace(spec))
	switch {
	case spec == "", spec == "off", spec == "all":
		return 0, 0
	case strings.HasSuffix(spec, "%"):
		p, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(spec, "%")))
		if err != nil || p <= 0 {
			return 0, 0
		}
		return min(p, 100), 100
	}
	if a, b, ok := strings.Cut(spec, "/"); ok {
		n, err1 := strconv.Atoi(strings.TrimSpace(a))
		d, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return n, d
	}
	v, err := strconv.Atoi(spec)
	if err != nil || v <= 0 {
		return 0, 0
	}
	return 1, v
}
