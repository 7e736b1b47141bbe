package wifi

import (
	"strconv"
	"strings"
)

// parseNetsh handles `netsh wlan show networks mode=bssid` (Windows).
// Output is block-structured: an SSID header line followed by indented
// attribute lines, one block per network. Localized label names mean the
// value side of "key : value" is the only thing parsed strictly.
func parseNetsh(out string) []Network {
	var nets []Network
	var cur *Network

	flush := func() {
		if cur != nil && cur.SSID != "" {
			nets = append(nets, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)

		key, val, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch {
		case strings.HasPrefix(key, "SSID") && !strings.Contains(key, "BSSID"):
			flush()
			cur = &Network{
				SSID:     val,
				RSSI:     -100,
				Security: SecurityUnknown,
			}
		case cur == nil:
			// Attribute outside any SSID block — malformed, skip.
		case strings.Contains(key, "BSSID"):
			cur.BSSID = val
		case strings.Contains(key, "Signal") || strings.Contains(key, "Sinal"):
			if pct, err := strconv.Atoi(strings.TrimSuffix(val, "%")); err == nil {
				cur.SignalPercent = pct
				cur.RSSI = rssiFromPercent(pct)
			}
		case strings.Contains(key, "Channel") || strings.Contains(key, "Canal"):
			if ch, err := strconv.Atoi(val); err == nil {
				cur.Channel = ch
			}
		case strings.Contains(key, "Authentication") || strings.Contains(key, "Autentica"):
			cur.Security = parseSecurity(val)
		}
	}
	flush()
	return nets
}

// parseNmcli handles `nmcli -t -f SSID,BSSID,CHAN,SIGNAL,SECURITY dev wifi`.
// Terse mode separates fields with ':' and escapes the colons inside the
// BSSID with backslashes.
func parseNmcli(out string) []Network {
	var nets []Network
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		fields := splitNmcliFields(line)
		if len(fields) < 5 {
			continue // malformed row
		}
		ssid := strings.TrimSpace(fields[0])
		if ssid == "" || ssid == "--" {
			continue // hidden network
		}

		signal, err := strconv.Atoi(strings.TrimSpace(fields[3]))
		if err != nil {
			signal = 0
		}
		channel, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			channel = 0
		}

		nets = append(nets, Network{
			SSID:          ssid,
			BSSID:         strings.TrimSpace(fields[1]),
			SignalPercent: signal,
			RSSI:          rssiFromPercent(signal),
			Channel:       channel,
			Security:      parseSecurity(fields[4]),
		})
	}
	return nets
}

// splitNmcliFields splits a terse nmcli row on unescaped colons and strips
// the escaping backslashes from the values.
func splitNmcliFields(line string) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// parseIwlist handles `iwlist scanning` cell blocks.
func parseIwlist(out string) []Network {
	var nets []Network
	var cur *Network

	flush := func() {
		if cur != nil && cur.SSID != "" {
			nets = append(nets, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.Contains(line, "Cell") && strings.Contains(line, "Address:"):
			flush()
			cur = &Network{
				BSSID:    strings.TrimSpace(after(line, "Address:")),
				RSSI:     -100,
				Security: SecurityUnknown,
			}
		case cur == nil:
			// Preamble before the first cell.
		case strings.Contains(line, "ESSID:"):
			cur.SSID = strings.Trim(after(line, "ESSID:"), `"`)
		case strings.Contains(line, "Signal level="):
			raw := strings.Fields(after(line, "Signal level="))
			if len(raw) > 0 {
				if rssi, err := strconv.Atoi(strings.TrimSuffix(raw[0], "dBm")); err == nil {
					cur.RSSI = rssi
					cur.SignalPercent = percentFromRSSI(rssi)
				}
			}
		case strings.Contains(line, "Channel:"):
			if ch, err := strconv.Atoi(strings.TrimSpace(after(line, "Channel:"))); err == nil {
				cur.Channel = ch
			}
		case strings.Contains(line, "Encryption key:off"):
			cur.Security = SecurityOpen
		case strings.Contains(line, "WPA3"):
			cur.Security = SecurityWPA3
		case strings.Contains(line, "WPA2"):
			cur.Security = SecurityWPA2
		case strings.Contains(line, "WPA"):
			cur.Security = SecurityWPA
		case strings.Contains(line, "Encryption key:on") && cur.Security == SecurityUnknown:
			cur.Security = SecurityWEP
		}
	}
	flush()
	return nets
}

func after(s, sep string) string {
	_, rest, _ := strings.Cut(s, sep)
	return rest
}

// parseAirport handles `airport -s` (macOS): a header row then one
// whitespace-separated row per network:
//
//	SSID BSSID RSSI CHANNEL HT CC SECURITY (auth/unicast/group)
func parseAirport(out string) []Network {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return nil
	}

	var nets []Network
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue // malformed row
		}

		rssi, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		// Channel may carry a width suffix like "44,+1".
		chanField, _, _ := strings.Cut(fields[3], ",")
		channel, err := strconv.Atoi(chanField)
		if err != nil {
			channel = 0
		}

		sec := SecurityOpen
		if len(fields) > 6 {
			sec = parseSecurity(strings.Join(fields[6:], " "))
		}

		nets = append(nets, Network{
			SSID:          fields[0],
			BSSID:         fields[1],
			RSSI:          rssi,
			SignalPercent: percentFromRSSI(rssi),
			Channel:       channel,
			Security:      sec,
		})
	}
	return nets
}
