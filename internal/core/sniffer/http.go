package sniffer

import (
	"bytes"
	"net/textproto"
	"strings"
	"unicode/utf8"

	"firestige.xyz/sniffer/internal/core"
)

const maxMethodLen = 16

// extraHeaders are kept apart from the ordinary header map: proxy and origin
// indicators plus correlation ids used for request tracing.
var extraHeaders = map[string]bool{
	"Via":              true,
	"Forwarded":        true,
	"X-Forwarded-For":  true,
	"X-Forwarded-Host": true,
	"X-Real-Ip":        true,
	"Origin":           true,
	"X-Request-Id":     true,
	"X-Correlation-Id": true,
	"X-Amzn-Trace-Id":  true,
}

// HTTP parses a single HTTP request line and its header block.
//
// A payload whose first line is not "<METHOD> <target> HTTP/x.y" is
// ErrWrongProtocol. A request line followed by a bad header line, non UTF-8
// text, or no blank line terminating the headers is ErrParsing.
func HTTP(payload []byte) (core.Application, error) {
	line, rest, found := cutLine(payload)
	method, path, version, ok := parseRequestLine(line)
	if !ok {
		return nil, core.ErrWrongProtocol
	}
	if !found {
		return nil, core.ErrParsing
	}
	if !utf8.Valid(line) {
		return nil, core.ErrParsing
	}

	req := &core.HTTPRequest{
		Method:  method,
		Path:    path,
		Version: version,
	}

	for {
		var hdr []byte
		hdr, rest, found = cutLine(rest)
		if !found {
			// header block not terminated
			return nil, core.ErrParsing
		}
		if len(hdr) == 0 {
			break
		}
		name, value, ok := parseHeaderLine(hdr)
		if !ok {
			return nil, core.ErrParsing
		}
		setHeader(req, name, value)
	}

	return req, nil
}

// cutLine splits data at the first LF, dropping an optional CR before it.
func cutLine(data []byte) (line, rest []byte, found bool) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return data, nil, false
	}
	line = data[:i]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, data[i+1:], true
}

func parseRequestLine(line []byte) (method, path, version string, ok bool) {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 || sp1 > maxMethodLen {
		return "", "", "", false
	}
	sp2 := bytes.LastIndexByte(line, ' ')
	if sp2 <= sp1+1 {
		return "", "", "", false
	}
	m := line[:sp1]
	for _, c := range m {
		if (c < 'A' || c > 'Z') && c != '-' {
			return "", "", "", false
		}
	}
	v := line[sp2+1:]
	if !isHTTPVersion(v) {
		return "", "", "", false
	}
	return string(m), string(line[sp1+1 : sp2]), string(v), true
}

func isHTTPVersion(v []byte) bool {
	// HTTP/d.d
	return len(v) == 8 && bytes.HasPrefix(v, []byte("HTTP/")) &&
		isDigit(v[5]) && v[6] == '.' && isDigit(v[7])
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func parseHeaderLine(line []byte) (name, value string, ok bool) {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 || !utf8.Valid(line) {
		return "", "", false
	}
	key := line[:colon]
	if bytes.ContainsAny(key, " \t") {
		return "", "", false
	}
	return textproto.CanonicalMIMEHeaderKey(string(key)), strings.TrimSpace(string(line[colon+1:])), true
}

func setHeader(r *core.HTTPRequest, name, value string) {
	switch name {
	case "Host":
		r.Host = value
	case "User-Agent":
		r.UserAgent = value
	case "Referer":
		r.Referer = value
	case "Authorization":
		r.Authorization = value
	case "Cookie":
		r.Cookies = appendValue(r.Cookies, value, "; ")
	default:
		if extraHeaders[name] {
			if r.Extra == nil {
				r.Extra = make(map[string]string)
			}
			r.Extra[name] = appendValue(r.Extra[name], value, ", ")
			return
		}
		if r.Headers == nil {
			r.Headers = make(map[string]string)
		}
		r.Headers[name] = appendValue(r.Headers[name], value, ", ")
	}
}

func appendValue(prev, value, sep string) string {
	if prev == "" {
		return value
	}
	return prev + sep + value
}
