package adapter

import (
	"context"
	"iter"
)

// Host is one responding host from a discovery scan
type Host struct {
	Address  string // preferred IP address
	Hostname string // first reverse DNS name, if any
	MAC      string
	Vendor   string
}

// Scanner enumerates the hosts that respond within a target
type Scanner interface {
	// Name returns the scanner identifier
	Name() string

	// Scan probes target (an address, CIDR prefix or nmap range expression)
	// and returns the responding hosts as a finite sequence
	Scan(ctx context.Context, target string) (iter.Seq[Host], error)
}
