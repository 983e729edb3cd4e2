package adapter

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/rs/zerolog"
)

// DefaultScanTimeout bounds one target scan
const DefaultScanTimeout = 5 * time.Minute

// runFunc executes an nmap scan; replaced in tests
type runFunc func(ctx context.Context, opts ...nmap.Option) (*nmap.Run, []string, error)

// NmapScanner discovers live hosts with an nmap ping scan
type NmapScanner struct {
	timeout           time.Duration
	skipHostDiscovery bool
	privileged        bool
	noDNS             bool
	binaryPath        string
	run               runFunc
	log               zerolog.Logger
}

// NewNmapScanner creates a new nmap-based scanner
func NewNmapScanner(log zerolog.Logger, opts ...NmapOption) *NmapScanner {
	scanner := &NmapScanner{
		timeout: DefaultScanTimeout,
		run:     runNmap,
		log:     log,
	}

	for _, opt := range opts {
		opt(scanner)
	}

	return scanner
}

// Name returns the scanner identifier
func (n *NmapScanner) Name() string {
	return "nmap"
}

// Available checks that the nmap binary can be executed
func (n *NmapScanner) Available(ctx context.Context) error {
	opts := []nmap.Option{nmap.WithTargets("localhost"), nmap.WithListScan()}
	if n.binaryPath != "" {
		opts = append(opts, nmap.WithBinaryPath(n.binaryPath))
	}
	if _, _, err := n.run(ctx, opts...); err != nil {
		return fmt.Errorf("nmap unavailable: %w", err)
	}
	return nil
}

// Scan runs a ping scan of target and returns the hosts that are up
func (n *NmapScanner) Scan(ctx context.Context, target string) (iter.Seq[Host], error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("empty scan target")
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	start := time.Now()
	result, warnings, err := n.run(ctx, n.options(target)...)
	if err != nil {
		return nil, fmt.Errorf("scan of %s failed: %w", target, err)
	}

	if len(warnings) > 0 {
		n.log.Warn().Str("target", target).Strs("warnings", warnings).Msg("Nmap reported warnings")
	}
	n.log.Debug().Str("target", target).Dur("elapsed", time.Since(start)).Msg("Nmap scan finished")

	return hostsFromRun(result), nil
}

// options builds the nmap arguments for one target
func (n *NmapScanner) options(target string) []nmap.Option {
	opts := []nmap.Option{
		nmap.WithTargets(target),
		nmap.WithPingScan(),
	}

	if n.skipHostDiscovery {
		opts = append(opts, nmap.WithSkipHostDiscovery())
	}
	if n.privileged {
		opts = append(opts, nmap.WithPrivileged())
	}
	if n.noDNS {
		opts = append(opts, nmap.WithDisabledDNSResolution())
	}
	if n.binaryPath != "" {
		opts = append(opts, nmap.WithBinaryPath(n.binaryPath))
	}

	return opts
}

// hostsFromRun lazily converts scan results, yielding only hosts that are up
func hostsFromRun(result *nmap.Run) iter.Seq[Host] {
	return func(yield func(Host) bool) {
		if result == nil {
			return
		}
		for _, h := range result.Hosts {
			host, ok := hostFromNmap(h)
			if !ok {
				continue
			}
			if !yield(host) {
				return
			}
		}
	}
}

func hostFromNmap(h nmap.Host) (Host, bool) {
	if h.Status.State != "up" || len(h.Addresses) == 0 {
		return Host{}, false
	}

	var host Host
	for _, addr := range h.Addresses {
		switch addr.AddrType {
		case "ipv4":
			if host.Address == "" || strings.Contains(host.Address, ":") {
				host.Address = addr.Addr
			}
		case "ipv6":
			if host.Address == "" {
				host.Address = addr.Addr
			}
		case "mac":
			host.MAC = strings.ToUpper(addr.Addr)
			host.Vendor = addr.Vendor
		}
	}
	if host.Address == "" {
		return Host{}, false
	}

	if len(h.Hostnames) > 0 {
		host.Hostname = h.Hostnames[0].Name
	}
	return host, true
}

func runNmap(ctx context.Context, opts ...nmap.Option) (*nmap.Run, []string, error) {
	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	var w []string
	if warnings != nil {
		w = *warnings
	}
	return result, w, err
}
