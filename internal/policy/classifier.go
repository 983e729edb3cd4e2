// Package policy assigns a Status to an address from the configured blocked range.
package policy

import (
	"fmt"
	"net/netip"
	"strings"

	"lanwatch/internal/domain"
)

// Classifier maps addresses onto a Status using an inclusive blocked range.
// The zero value has no range and classifies everything as Allowed.
// A Classifier is immutable and safe for concurrent use.
type Classifier struct {
	start netip.Addr
	end   netip.Addr
}

// NewClassifier validates the inclusive range [start, end]. Both bounds empty
// yields an unset classifier.
func NewClassifier(start, end string) (*Classifier, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return &Classifier{}, nil
	}
	if start == "" || end == "" {
		return nil, fmt.Errorf("blocked range requires both start and end")
	}

	lo, err := netip.ParseAddr(start)
	if err != nil {
		return nil, fmt.Errorf("range start: %w: %q", domain.ErrInvalidAddress, start)
	}
	hi, err := netip.ParseAddr(end)
	if err != nil {
		return nil, fmt.Errorf("range end: %w: %q", domain.ErrInvalidAddress, end)
	}
	lo, hi = lo.Unmap().WithZone(""), hi.Unmap().WithZone("")

	if lo.BitLen() != hi.BitLen() {
		return nil, fmt.Errorf("range bounds %s and %s are different address families", lo, hi)
	}
	if lo.Compare(hi) > 0 {
		return nil, fmt.Errorf("range start %s is after end %s", lo, hi)
	}
	return &Classifier{start: lo, end: hi}, nil
}

// Configured reports whether a blocked range is set
func (c *Classifier) Configured() bool {
	return c != nil && c.start.IsValid()
}

// Range returns the configured bounds in canonical form
func (c *Classifier) Range() (string, string) {
	if !c.Configured() {
		return "", ""
	}
	return c.start.String(), c.end.String()
}

// Classify returns Blocked when address falls inside the range, Allowed
// otherwise. Addresses that do not parse, or that belong to a different
// family than the range, return ErrInvalidAddress.
func (c *Classifier) Classify(address string) (domain.Status, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(address))
	if err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidAddress, address)
	}
	if !c.Configured() {
		return domain.StatusAllowed, nil
	}

	addr = addr.Unmap().WithZone("")
	if addr.BitLen() != c.start.BitLen() {
		return "", fmt.Errorf("%w: %s is not in the %d-bit family of the blocked range",
			domain.ErrInvalidAddress, addr, c.start.BitLen())
	}

	if addr.Compare(c.start) >= 0 && addr.Compare(c.end) <= 0 {
		return domain.StatusBlocked, nil
	}
	return domain.StatusAllowed, nil
}
