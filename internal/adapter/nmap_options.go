package adapter

import "time"

// NmapOption is a functional option for configuring NmapScanner
type NmapOption func(*NmapScanner)

// WithTimeout sets the timeout for a single target scan
func WithTimeout(d time.Duration) NmapOption {
	return func(n *NmapScanner) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithSkipHostDiscovery sets whether to skip ping and treat all hosts as online (-Pn)
// Useful for networks that block ICMP
func WithSkipHostDiscovery(skip bool) NmapOption {
	return func(n *NmapScanner) {
		n.skipHostDiscovery = skip
	}
}

// WithPrivileged runs nmap assuming raw socket privileges (ARP ping on the
// local segment, MAC addresses in results)
func WithPrivileged(privileged bool) NmapOption {
	return func(n *NmapScanner) {
		n.privileged = privileged
	}
}

// WithBinaryPath overrides the nmap binary lookup
func WithBinaryPath(path string) NmapOption {
	return func(n *NmapScanner) {
		n.binaryPath = path
	}
}

// WithoutDNS disables reverse DNS resolution (-n)
func WithoutDNS() NmapOption {
	return func(n *NmapScanner) {
		n.noDNS = true
	}
}
