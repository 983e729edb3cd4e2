package domain

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"
	"time"
)

// Status is the policy verdict attached to a device
type Status string

const (
	StatusAllowed     Status = "Allowed"
	StatusBlocked     Status = "Blocked"
	StatusMaintenance Status = "Maintenance"
)

// Default values for fields the scan agent cannot observe
const (
	DefaultLocation   = "Auto-Discovered"
	DefaultLinkedArea = "Internal-LAN"
)

var knownStatuses = []Status{StatusAllowed, StatusBlocked, StatusMaintenance}

// ParseStatus maps s onto a known Status, ignoring case and surrounding space.
func ParseStatus(s string) (Status, error) {
	trimmed := strings.TrimSpace(s)
	for _, st := range knownStatuses {
		if strings.EqualFold(trimmed, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Valid reports whether s is one of the enumerated statuses
func (s Status) Valid() bool {
	for _, st := range knownStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Device is the canonical record for one network address
type Device struct {
	Address     string    `json:"address"`
	DisplayName string    `json:"displayName"`
	Location    string    `json:"location"`
	LinkedArea  string    `json:"linkedArea"`
	Status      Status    `json:"status"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Pinned      bool      `json:"pinned"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewDevice builds a device record for address with every optional field
// defaulted. The address is expected to be canonical already.
func NewDevice(address string, status Status, seenAt time.Time) *Device {
	return &Device{
		Address:     address,
		DisplayName: DefaultDisplayName(address),
		Location:    DefaultLocation,
		LinkedArea:  DefaultLinkedArea,
		Status:      status,
		LastSeenAt:  seenAt,
		CreatedAt:   seenAt,
	}
}

// ApplyDefaults fills empty descriptive fields
func (d *Device) ApplyDefaults() {
	if d.DisplayName == "" {
		d.DisplayName = DefaultDisplayName(d.Address)
	}
	if d.Location == "" {
		d.Location = DefaultLocation
	}
	if d.LinkedArea == "" {
		d.LinkedArea = DefaultLinkedArea
	}
	if d.Status == "" {
		d.Status = StatusAllowed
	}
}

// Validate checks the invariants a stored record must satisfy
func (d *Device) Validate() error {
	if _, err := NormalizeAddress(d.Address); err != nil {
		return err
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
	}
	return nil
}

// Observe advances the record for a new sighting. LastSeenAt never moves
// backwards, and a pinned record keeps its status.
func (d *Device) Observe(status Status, seenAt time.Time) {
	if !d.Pinned {
		d.Status = status
	}
	if seenAt.After(d.LastSeenAt) {
		d.LastSeenAt = seenAt
	}
}

// Matches reports whether the device matches a case-insensitive keyword
func (d *Device) Matches(keyword string) bool {
	if keyword == "" {
		return true
	}
	kw := strings.ToLower(keyword)
	for _, field := range []string{d.DisplayName, d.Address, d.Location, string(d.Status), d.LinkedArea} {
		if strings.Contains(strings.ToLower(field), kw) {
			return true
		}
	}
	return false
}

// NormalizeAddress parses s and returns its canonical textual form.
// IPv4-mapped IPv6 addresses are unmapped.
func NormalizeAddress(s string) (string, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return addr.Unmap().WithZone("").String(), nil
}

// DefaultDisplayName derives "Device-<last segment>" from an address,
// e.g. 192.168.1.42 -> Device-42, fe80::1:abcd -> Device-abcd.
func DefaultDisplayName(address string) string {
	sep := "."
	if strings.Contains(address, ":") {
		sep = ":"
	}
	parts := strings.Split(address, sep)
	last := parts[len(parts)-1]
	if last == "" {
		last = "0"
	}
	return "Device-" + last
}

// SortByLastSeen orders devices most recently seen first. Ties are broken by
// address so snapshots are stable.
func SortByLastSeen(devices []Device) {
	sort.SliceStable(devices, func(i, j int) bool {
		if !devices[i].LastSeenAt.Equal(devices[j].LastSeenAt) {
			return devices[i].LastSeenAt.After(devices[j].LastSeenAt)
		}
		return devices[i].Address < devices[j].Address
	})
}

// Clone returns a copy that shares no pointers with d
func (d *Device) Clone() Device {
	c := *d
	if d.Latitude != nil {
		lat := *d.Latitude
		c.Latitude = &lat
	}
	if d.Longitude != nil {
		lon := *d.Longitude
		c.Longitude = &lon
	}
	return c
}
