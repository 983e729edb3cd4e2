// Package adapter implements the network discovery collaborators used by
// the scan agent.
//
// # Scanner
//
// A Scanner probes one target (a single address, a CIDR prefix or an nmap
// range such as 192.168.1.1-50) and yields the hosts that responded as an
// iter.Seq[Host]. A scan with no responding hosts is valid and yields
// nothing.
//
// # Nmap
//
// NmapScanner drives the nmap binary through github.com/Ullaakut/nmap/v3
// using a ping scan (-sn). Only hosts whose state is "up" are yielded; the
// IPv4 address is preferred when nmap reports several, and the first
// reverse DNS name becomes the hostname.
//
// Options configure the scan timeout, skipping host discovery (-Pn) for
// networks that drop ICMP, privileged mode and the binary path.
package adapter
