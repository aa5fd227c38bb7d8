// Package asnrange expands configuration ASN specifications ("A-B" ranges or
// bare "A" singletons) into the flat, deduplicated set of concrete ASNs they
// describe.
package asnrange

import (
	"fmt"
	"strconv"
	"strings"
)

// Expand parses a single ASN spec ("65001" or "65001-65003") and returns the
// concrete ASNs it denotes, inclusive of both range endpoints.
func Expand(spec string) ([]uint32, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("asnrange: empty spec")
	}

	if idx := strings.IndexByte(spec, '-'); idx > 0 {
		lo, err := strconv.ParseUint(spec[:idx], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("asnrange: invalid range start %q: %w", spec, err)
		}
		hi, err := strconv.ParseUint(spec[idx+1:], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("asnrange: invalid range end %q: %w", spec, err)
		}
		if hi < lo {
			return nil, fmt.Errorf("asnrange: descending range %q", spec)
		}
		out := make([]uint32, 0, hi-lo+1)
		for asn := lo; asn <= hi; asn++ {
			out = append(out, uint32(asn))
		}
		return out, nil
	}

	asn, err := strconv.ParseUint(spec, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("asnrange: invalid asn %q: %w", spec, err)
	}
	return []uint32{uint32(asn)}, nil
}

// ExpandSet expands a list of ASN specs into a flat, deduplicated set.
func ExpandSet(specs []string) (map[uint32]struct{}, error) {
	out := make(map[uint32]struct{})
	for _, spec := range specs {
		asns, err := Expand(spec)
		if err != nil {
			return nil, err
		}
		for _, asn := range asns {
			out[asn] = struct{}{}
		}
	}
	return out, nil
}
