package codec

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"lanwatch/internal/domain"
)

type yamlInventory struct {
	Devices []yamlDevice `yaml:"devices"`
}

type yamlDevice struct {
	Address     string     `yaml:"address"`
	DisplayName string     `yaml:"display_name,omitempty"`
	Location    string     `yaml:"location,omitempty"`
	LinkedArea  string     `yaml:"linked_area,omitempty"`
	Status      string     `yaml:"status,omitempty"`
	Latitude    *float64   `yaml:"latitude,omitempty"`
	Longitude   *float64   `yaml:"longitude,omitempty"`
	Pinned      bool       `yaml:"pinned,omitempty"`
	LastSeenAt  *time.Time `yaml:"last_seen_at,omitempty"`
}

// YAMLCodec handles the hand-editable YAML inventory format
type YAMLCodec struct{}

// Format returns the codec format name
func (c *YAMLCodec) Format() string {
	return "yaml"
}

// ContentType returns the HTTP content type of exported documents
func (c *YAMLCodec) ContentType() string {
	return "application/yaml"
}

// Parse reads a devices: list
func (c *YAMLCodec) Parse(r io.Reader) ([]domain.Device, error) {
	var inv yamlInventory
	if err := yaml.NewDecoder(r).Decode(&inv); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}

	devices := make([]domain.Device, 0, len(inv.Devices))
	for _, yd := range inv.Devices {
		d := domain.Device{
			Address:     yd.Address,
			DisplayName: yd.DisplayName,
			Location:    yd.Location,
			LinkedArea:  yd.LinkedArea,
			Status:      domain.Status(yd.Status),
			Latitude:    yd.Latitude,
			Longitude:   yd.Longitude,
			Pinned:      yd.Pinned,
		}
		if yd.LastSeenAt != nil {
			d.LastSeenAt = *yd.LastSeenAt
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// Export writes devices as a YAML document
func (c *YAMLCodec) Export(devices []domain.Device, w io.Writer) error {
	inv := yamlInventory{Devices: make([]yamlDevice, 0, len(devices))}
	for _, d := range devices {
		yd := yamlDevice{
			Address:     d.Address,
			DisplayName: d.DisplayName,
			Location:    d.Location,
			LinkedArea:  d.LinkedArea,
			Status:      string(d.Status),
			Latitude:    d.Latitude,
			Longitude:   d.Longitude,
			Pinned:      d.Pinned,
		}
		if !d.LastSeenAt.IsZero() {
			seen := d.LastSeenAt.UTC()
			yd.LastSeenAt = &seen
		}
		inv.Devices = append(inv.Devices, yd)
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&inv); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}
