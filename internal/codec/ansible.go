package codec

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"lanwatch/internal/domain"
)

// AnsibleCodec converts between devices and an Ansible YAML inventory.
// Each linked area becomes a child group of "all"; the host key is the
// display name and ansible_host carries the address.
type AnsibleCodec struct{}

type ansibleInventory struct {
	All ansibleGroup `yaml:"all"`
}

type ansibleGroup struct {
	Children map[string]ansibleGroupDef `yaml:"children,omitempty"`
	Hosts    map[string]ansibleHost     `yaml:"hosts,omitempty"`
}

type ansibleGroupDef struct {
	Hosts map[string]ansibleHost `yaml:"hosts,omitempty"`
}

type ansibleHost struct {
	AnsibleHost string `yaml:"ansible_host,omitempty"`
	Status      string `yaml:"lanwatch_status,omitempty"`
	Location    string `yaml:"lanwatch_location,omitempty"`
	Pinned      bool   `yaml:"lanwatch_pinned,omitempty"`
}

// Format returns the codec format name
func (c *AnsibleCodec) Format() string {
	return "ansible"
}

// ContentType returns the HTTP content type of exported documents
func (c *AnsibleCodec) ContentType() string {
	return "application/yaml"
}

// Parse reads hosts from every group of the inventory. Hosts without
// ansible_host use their inventory name as the address.
func (c *AnsibleCodec) Parse(r io.Reader) ([]domain.Device, error) {
	var inv ansibleInventory
	if err := yaml.NewDecoder(r).Decode(&inv); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode Ansible inventory: %w", err)
	}

	var devices []domain.Device
	groupNames := make([]string, 0, len(inv.All.Children))
	for name := range inv.All.Children {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)

	for _, name := range groupNames {
		devices = append(devices, hostsToDevices(inv.All.Children[name].Hosts, areaFromGroup(name))...)
	}
	devices = append(devices, hostsToDevices(inv.All.Hosts, "")...)
	return devices, nil
}

// Export groups devices by linked area
func (c *AnsibleCodec) Export(devices []domain.Device, w io.Writer) error {
	inv := ansibleInventory{
		All: ansibleGroup{Children: make(map[string]ansibleGroupDef)},
	}

	for _, d := range devices {
		group := groupName(d.LinkedArea)
		def, ok := inv.All.Children[group]
		if !ok {
			def = ansibleGroupDef{Hosts: make(map[string]ansibleHost)}
		}

		name := d.DisplayName
		if name == "" {
			name = d.Address
		}
		if _, taken := def.Hosts[name]; taken {
			name = d.Address
		}

		def.Hosts[name] = ansibleHost{
			AnsibleHost: d.Address,
			Status:      string(d.Status),
			Location:    d.Location,
			Pinned:      d.Pinned,
		}
		inv.All.Children[group] = def
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&inv); err != nil {
		return fmt.Errorf("failed to encode Ansible inventory: %w", err)
	}
	return nil
}

func hostsToDevices(hosts map[string]ansibleHost, area string) []domain.Device {
	names := make([]string, 0, len(hosts))
	for name := range hosts {
		names = append(names, name)
	}
	sort.Strings(names)

	devices := make([]domain.Device, 0, len(hosts))
	for _, name := range names {
		h := hosts[name]
		address := h.AnsibleHost
		if address == "" {
			address = name
		}
		devices = append(devices, domain.Device{
			Address:     address,
			DisplayName: name,
			Location:    h.Location,
			LinkedArea:  area,
			Status:      domain.Status(h.Status),
			Pinned:      h.Pinned,
		})
	}
	return devices
}

// groupName turns a linked area into a valid Ansible group name
func groupName(area string) string {
	if area == "" {
		area = domain.DefaultLinkedArea
	}
	var b strings.Builder
	for _, r := range strings.ToLower(area) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// areaFromGroup is the best-effort inverse of groupName
func areaFromGroup(group string) string {
	if group == groupName(domain.DefaultLinkedArea) {
		return domain.DefaultLinkedArea
	}
	return group
}
