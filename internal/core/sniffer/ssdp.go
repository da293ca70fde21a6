package sniffer

import (
	"bytes"

	"firestige.xyz/sniffer/internal/core"
)

var ssdpStartLines = []struct {
	prefix string
	method string
}{
	{"M-SEARCH * HTTP/1.1", "M-SEARCH"},
	{"NOTIFY * HTTP/1.1", "NOTIFY"},
	{"HTTP/1.1 200 OK", "RESPONSE"},
}

// SSDP parses a UPnP discovery datagram. Target is taken from ST or NT.
func SSDP(payload []byte) (core.Application, error) {
	line, rest, found := cutLine(payload)
	if !found {
		return nil, core.ErrWrongProtocol
	}

	out := &core.SSDP{}
	for _, sl := range ssdpStartLines {
		if string(line) == sl.prefix {
			out.Method = sl.method
			break
		}
	}
	if out.Method == "" {
		return nil, core.ErrWrongProtocol
	}

	for len(rest) > 0 {
		var hdr []byte
		hdr, rest, _ = cutLine(rest)
		if len(bytes.TrimSpace(hdr)) == 0 {
			break
		}
		name, value, ok := parseHeaderLine(hdr)
		if !ok {
			return nil, core.ErrParsing
		}
		switch name {
		case "St", "Nt":
			out.Target = value
		default:
			if out.Headers == nil {
				out.Headers = make(map[string]string)
			}
			out.Headers[name] = value
		}
	}
	return out, nil
}
