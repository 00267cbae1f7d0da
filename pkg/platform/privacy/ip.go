// Package privacy holds helpers that strip identifying detail before data is logged or audited.
package privacy

import "net"

// AnonymizeIP truncates an address to its network prefix (/24 for IPv4, /48
// for IPv6). Unparseable input returns "" so raw values never leak.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}
