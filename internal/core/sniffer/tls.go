package sniffer

import (
	"encoding/binary"
	"unicode/utf8"

	"firestige.xyz/sniffer/internal/core"
)

const (
	tlsRecordHeaderLen    = 5
	tlsHandshakeHeaderLen = 4

	tlsContentHandshake     = 0x16
	tlsHandshakeClientHello = 0x01

	tlsExtServerName = 0x0000
	sniHostName      = 0x00
)

// TLS extracts the ClientHello from the first TLS record of payload.
//
// Anything that is not a handshake record with a 3.x version is
// ErrWrongProtocol. A handshake record that carries no ClientHello, or whose
// ClientHello fields overrun the record, is ErrParsing. A hello without the
// server_name extension is returned with an empty Hostname.
func TLS(payload []byte) (core.Application, error) {
	if len(payload) < tlsRecordHeaderLen {
		return nil, core.ErrWrongProtocol
	}
	if payload[0] != tlsContentHandshake || payload[1] != 0x03 {
		return nil, core.ErrWrongProtocol
	}

	recordLen := int(binary.BigEndian.Uint16(payload[3:5]))
	body := payload[tlsRecordHeaderLen:]
	if recordLen < len(body) {
		body = body[:recordLen]
	}

	// A record may hold several handshake messages.
	for len(body) >= tlsHandshakeHeaderLen {
		msgType := body[0]
		msgLen := int(body[1])<<16 | int(body[2])<<8 | int(body[3])
		msg := body[tlsHandshakeHeaderLen:]
		if msgLen < len(msg) {
			msg = msg[:msgLen]
		}
		if msgType == tlsHandshakeClientHello {
			return parseClientHello(msg)
		}
		if tlsHandshakeHeaderLen+msgLen > len(body) {
			break
		}
		body = body[tlsHandshakeHeaderLen+msgLen:]
	}

	return nil, core.ErrParsing
}

// reader is a bounds-checked cursor over a ClientHello body.
type reader struct {
	buf []byte
	ok  bool
}

func (r *reader) take(n int) []byte {
	if !r.ok || n < 0 || n > len(r.buf) {
		r.ok = false
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *reader) u8() int {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return int(b[0])
}

func (r *reader) u16() int {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return int(binary.BigEndian.Uint16(b))
}

func parseClientHello(msg []byte) (core.Application, error) {
	r := &reader{buf: msg, ok: true}

	hello := &core.TLSClientHello{}
	hello.Version = uint16(r.u16())
	r.take(32)     // random
	r.take(r.u8()) // session id

	suites := r.u16()
	r.take(suites)
	r.take(r.u8()) // compression methods
	if !r.ok || suites%2 != 0 {
		return nil, core.ErrParsing
	}
	hello.CipherSuites = suites / 2

	if len(r.buf) < 2 {
		// no extension block
		return hello, nil
	}
	exts := r.take(r.u16())
	if !r.ok {
		// extension block continues in a later segment
		exts = r.buf
	}

	host, err := serverName(exts)
	if err != nil {
		return nil, err
	}
	hello.Hostname = host
	return hello, nil
}

// serverName walks the extension list and returns the first host_name entry
// of the server_name extension. A truncated list ends the walk quietly.
func serverName(exts []byte) (string, error) {
	for len(exts) >= 4 {
		typ := binary.BigEndian.Uint16(exts[0:2])
		n := int(binary.BigEndian.Uint16(exts[2:4]))
		if 4+n > len(exts) {
			return "", nil
		}
		data := exts[4 : 4+n]
		exts = exts[4+n:]
		if typ != tlsExtServerName {
			continue
		}

		r := &reader{buf: data, ok: true}
		entries := r.take(r.u16())
		list := &reader{buf: entries, ok: r.ok}
		for list.ok && len(list.buf) > 0 {
			nameType := list.u8()
			name := list.take(list.u16())
			if !list.ok {
				return "", core.ErrParsing
			}
			if nameType != sniHostName {
				continue
			}
			if !utf8.Valid(name) {
				return "", core.ErrParsing
			}
			return string(name), nil
		}
		if !list.ok {
			return "", core.ErrParsing
		}
	}
	return "", nil
}
