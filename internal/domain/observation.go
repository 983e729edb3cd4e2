package domain

import "time"

// Observation is one reported sighting of a device, prior to reconciliation.
// Only Address is required; the remaining fields are optional hints that are
// applied when the device is first created.
type Observation struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName,omitempty"`
	Status      string `json:"status,omitempty"`
	Location    string `json:"location,omitempty"`
	LinkedArea  string `json:"linkedArea,omitempty"`
}

// SuppliedStatus returns the explicitly asserted status, if any.
// ok is false when the observation left status to the classifier.
func (o Observation) SuppliedStatus() (Status, bool, error) {
	if o.Status == "" {
		return "", false, nil
	}
	st, err := ParseStatus(o.Status)
	if err != nil {
		return "", true, err
	}
	return st, true, nil
}

// ToDevice builds a new record from the observation. address must already be
// canonical; empty optional fields are defaulted.
func (o Observation) ToDevice(address string, status Status, seenAt time.Time) *Device {
	d := NewDevice(address, status, seenAt)
	if o.DisplayName != "" {
		d.DisplayName = o.DisplayName
	}
	if o.Location != "" {
		d.Location = o.Location
	}
	if o.LinkedArea != "" {
		d.LinkedArea = o.LinkedArea
	}
	return d
}
