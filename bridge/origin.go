package bridge

import (
	"net"
	"net/url"
	"strings"
)

// originAllowed accepts handshakes without an Origin header (editors and CLIs
// do not send one), pages served from this machine, and any origin in
// allowed. An allowed entry ending in * matches by prefix, so
// "vscode-webview://*" admits every webview.
func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if prefix, ok := strings.CutSuffix(a, "*"); ok {
			if strings.HasPrefix(origin, prefix) {
				return true
			}
		} else if strings.EqualFold(origin, a) {
			return true
		}
	}

	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
