// Package discovery advertises a running bridge over mDNS so editors on the
// local network can find it without being told a port.
package discovery

import (
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the DNS-SD type every bridge registers under.
const ServiceType = "_goshadersound._tcp"

// Config describes what to advertise.
type Config struct {
	Instance string // human readable name, e.g. the session ID
	IP       net.IP // address the bridge is bound to; nil or unspecified means every interface
	Port     int
	Path     string // websocket path, published as a TXT record
}

// Advertiser keeps an mDNS responder alive until Stop.
type Advertiser struct {
	server *mdns.Server
}

// Advertise starts answering queries for cfg. Only addresses the bridge is
// reachable on are published: cfg.IP when it names one, otherwise every
// non-loopback IPv4 address.
func Advertise(cfg Config) (*Advertiser, error) {
	ips, err := advertisedIPs(cfg.IP)
	if err != nil {
		return nil, fmt.Errorf("failed to get local IPs: %w", err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no address to advertise for %s", cfg.Instance)
	}
	if ips[0].IsLoopback() {
		log.Printf("Warning: bridge is bound to %s; only this host can reach it", ips[0])
	}

	service, err := mdns.NewMDNSService(cfg.Instance, ServiceType, "", "", cfg.Port, ips, txtRecords(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", cfg.Instance, cfg.Port, ServiceType)
	return &Advertiser{server: server}, nil
}

func (a *Advertiser) Stop() error {
	return a.server.Shutdown()
}

// Host is one discovered bridge.
type Host struct {
	Name string
	Addr string
	Port int
	Path string
}

// URL is the websocket address of the bridge.
func (h Host) URL() string {
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(h.Addr, fmt.Sprint(h.Port)), h.Path)
}

// Browse queries the local network once and returns every bridge that
// answered within timeout.
func Browse(timeout time.Duration) ([]Host, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	done := make(chan []Host)

	go func() {
		var hosts []Host
		for entry := range entries {
			if h, ok := hostFromEntry(entry); ok {
				log.Printf("Discovered bridge: %s at %s:%d", h.Name, h.Addr, h.Port)
				hosts = append(hosts, h)
			}
		}
		done <- hosts
	}()

	params := &mdns.QueryParam{
		Service: ServiceType,
		Domain:  "local",
		Timeout: timeout,
		Entries: entries,
	}
	err := mdns.Query(params)
	close(entries)
	hosts := <-done
	if err != nil {
		return hosts, fmt.Errorf("mdns query failed: %w", err)
	}
	return hosts, nil
}

func txtRecords(cfg Config) []string {
	path := cfg.Path
	if path == "" {
		path = "/"
	}
	return []string{"path=" + path}
}

func hostFromEntry(entry *mdns.ServiceEntry) (Host, bool) {
	if entry == nil || entry.AddrV4 == nil || !strings.Contains(entry.Name, ServiceType) {
		return Host{}, false
	}
	h := Host{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Addr: entry.AddrV4.String(),
		Port: entry.Port,
		Path: "/",
	}
	for _, field := range entry.InfoFields {
		if v, ok := strings.CutPrefix(field, "path="); ok {
			h.Path = v
		}
	}
	return h, true
}

// advertisedIPs maps a listener address to the addresses worth publishing.
func advertisedIPs(bound net.IP) ([]net.IP, error) {
	if bound != nil && !bound.IsUnspecified() {
		return []net.IP{bound}, nil
	}
	return getLocalIPs()
}

// getLocalIPs returns local IPv4 addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
