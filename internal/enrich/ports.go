package enrich

import (
	"context"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// portScanTimeout is the per-port connect timeout.
const portScanTimeout = 2 * time.Second

// commonPorts maps probed ports to service labels.
var commonPorts = map[int]string{
	22:    "ssh",
	23:    "telnet",
	53:    "dns",
	80:    "http",
	443:   "https",
	445:   "smb",
	548:   "afp",
	631:   "ipp",
	3389:  "rdp",
	5000:  "upnp",
	5001:  "synology",
	7000:  "airtunes",
	8080:  "http-alt",
	8443:  "https-alt",
	9100:  "jetdirect",
	32400: "plex",
	62078: "iphone-sync",
}

// scanPorts attempts a TCP connect on each common port and returns the
// open ones, sorted, with their service labels.
func scanPorts(ctx context.Context, ip string) ([]int, []string) {
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		open []int
	)

	dialer := &net.Dialer{Timeout: portScanTimeout}
	for port := range commonPorts {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
			if err != nil {
				return
			}
			conn.Close()
			mu.Lock()
			open = append(open, port)
			mu.Unlock()
		}(port)
	}
	wg.Wait()

	sort.Ints(open)
	services := make([]string, 0, len(open))
	for _, port := range open {
		services = append(services, commonPorts[port])
	}
	return open, services
}

// InferDeviceType guesses a device type from advertised services, open
// ports and the vendor string, in that order of reliability. Returns
// "" when nothing matches.
func InferDeviceType(services []string, openPorts []int, vendor string) string {
	joined := strings.ToLower(strings.Join(services, " "))

	switch {
	case strings.Contains(joined, "airplay") || strings.Contains(joined, "raop"):
		return "Apple TV / AirPlay"
	case strings.Contains(joined, "homekit") || strings.Contains(joined, "hap"):
		return "HomeKit Device"
	case strings.Contains(joined, "googlecast") || strings.Contains(joined, "chromecast"):
		return "Chromecast"
	case strings.Contains(joined, "printer") || strings.Contains(joined, "ipp") || strings.Contains(joined, "_pdl"):
		return "Printer"
	case strings.Contains(joined, "scanner"):
		return "Scanner"
	case strings.Contains(joined, "spotify"):
		return "Spotify Connect Device"
	case strings.Contains(joined, "sonos"):
		return "Sonos Speaker"
	case strings.Contains(joined, "hue"):
		return "Philips Hue"
	case strings.Contains(joined, "smb") || strings.Contains(joined, "afp") || strings.Contains(joined, "nfs"):
		return "NAS / File Server"
	}

	ports := make(map[int]bool, len(openPorts))
	for _, p := range openPorts {
		ports[p] = true
	}
	switch {
	case ports[9100] || ports[631]:
		return "Printer"
	case ports[32400]:
		return "Plex Media Server"
	case ports[5001]:
		return "Synology NAS"
	case ports[445] || ports[3389]:
		return "Windows PC"
	case ports[548]:
		return "Mac"
	case ports[62078]:
		return "iPhone/iPad"
	case ports[22] && !ports[80] && !ports[443]:
		return "Linux Server"
	}

	v := strings.ToLower(vendor)
	switch {
	case v == "":
		return ""
	case strings.Contains(v, "apple"):
		return "Apple Device"
	case strings.Contains(v, "samsung"):
		return "Samsung Device"
	case strings.Contains(v, "google"):
		return "Google Device"
	case strings.Contains(v, "amazon"):
		return "Amazon Device"
	case strings.Contains(v, "sonos"):
		return "Sonos Speaker"
	case strings.Contains(v, "roku"):
		return "Roku"
	case strings.Contains(v, "netgear"), strings.Contains(v, "tp-link"),
		strings.Contains(v, "asus"), strings.Contains(v, "linksys"),
		strings.Contains(v, "ubiquiti"), strings.Contains(v, "cisco"):
		return "Network Equipment"
	case strings.Contains(v, "raspberry"):
		return "Raspberry Pi"
	case strings.Contains(v, "espressif"), strings.Contains(v, "tuya"):
		return "IoT Device"
	}
	return ""
}
