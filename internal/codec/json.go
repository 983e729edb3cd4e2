package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"lanwatch/internal/domain"
)

type jsonInventory struct {
	Devices []domain.Device `json:"devices"`
}

// JSONCodec handles the native JSON inventory format
type JSONCodec struct{}

// Format returns the codec format name
func (c *JSONCodec) Format() string {
	return "json"
}

// ContentType returns the HTTP content type of exported documents
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// Parse reads a {"devices": [...]} document
func (c *JSONCodec) Parse(r io.Reader) ([]domain.Device, error) {
	var inv jsonInventory
	if err := json.NewDecoder(r).Decode(&inv); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return inv.Devices, nil
}

// Export writes devices as an indented JSON document
func (c *JSONCodec) Export(devices []domain.Device, w io.Writer) error {
	if devices == nil {
		devices = []domain.Device{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(jsonInventory{Devices: devices}); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
