package wifi

import (
	"sort"
	"strings"
)

// Security is the normalized protection scheme of a wireless network.
type Security string

const (
	SecurityOpen    Security = "Open"
	SecurityWEP     Security = "WEP"
	SecurityWPA     Security = "WPA"
	SecurityWPA2    Security = "WPA2"
	SecurityWPA3    Security = "WPA3"
	SecurityUnknown Security = "Unknown"
)

// Network is one observed wireless broadcast. Several entries may share an
// SSID; the BSSID is the identity key.
type Network struct {
	SSID          string   `json:"ssid"`
	BSSID         string   `json:"bssid"`
	SignalPercent int      `json:"signal_percent"`
	RSSI          int      `json:"rssi"`
	Channel       int      `json:"channel"`
	Security      Security `json:"security"`
}

// parseSecurity normalizes the free-text security field of a platform tool.
func parseSecurity(raw string) Security {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case s == "" || s == "--" || s == "OPEN" || s == "NONE":
		return SecurityOpen
	case strings.Contains(s, "WPA3"):
		return SecurityWPA3
	case strings.Contains(s, "WPA2") || strings.Contains(s, "RSN"):
		return SecurityWPA2
	case strings.Contains(s, "WPA"):
		return SecurityWPA
	case strings.Contains(s, "WEP"):
		return SecurityWEP
	default:
		return SecurityUnknown
	}
}

// rssiFromPercent approximates dBm from a 0–100 quality figure
// (100% ≈ −30dBm, 0% ≈ −100dBm).
func rssiFromPercent(pct int) int {
	return -100 + int(float64(pct)*0.7)
}

// percentFromRSSI approximates a 0–100 quality figure from dBm.
func percentFromRSSI(rssi int) int {
	pct := (rssi + 100) * 2
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// sortNetworks orders by signal descending, SSID ascending on ties, so scan
// output is deterministic.
func sortNetworks(nets []Network) {
	sort.Slice(nets, func(i, j int) bool {
		if nets[i].SignalPercent != nets[j].SignalPercent {
			return nets[i].SignalPercent > nets[j].SignalPercent
		}
		return nets[i].SSID < nets[j].SSID
	})
}

// Strongest returns the network with the best signal, or false when the scan
// found nothing.
func Strongest(nets []Network) (Network, bool) {
	if len(nets) == 0 {
		return Network{}, false
	}
	best := nets[0]
	for _, n := range nets[1:] {
		if n.SignalPercent > best.SignalPercent {
			best = n
		}
	}
	return best, true
}

// FilterBySecurity returns the networks using the given scheme.
func FilterBySecurity(nets []Network, sec Security) []Network {
	out := make([]Network, 0)
	for _, n := range nets {
		if n.Security == sec {
			out = append(out, n)
		}
	}
	return out
}
