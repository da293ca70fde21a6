package sniffer

import (
	"strings"

	"github.com/miekg/dns"

	"firestige.xyz/sniffer/internal/core"
)

// DNS unpacks a DNS message. Only used on the DNS and mDNS ports, so any
// unpack failure is reported as ErrParsing.
func DNS(payload []byte) (core.Application, error) {
	msg := new(dns.Msg)
	if err := msg.Unpack(payload); err != nil {
		return nil, core.ErrParsing
	}

	out := &core.DNS{
		ID:       msg.Id,
		Response: msg.Response,
		Opcode:   dns.OpcodeToString[msg.Opcode],
	}
	if msg.Response {
		out.Rcode = dns.RcodeToString[msg.Rcode]
	}
	for _, q := range msg.Question {
		out.Questions = append(out.Questions, q.Name+" "+dns.TypeToString[q.Qtype])
	}
	for _, rr := range msg.Answer {
		out.Answers = append(out.Answers, strings.Join(strings.Fields(rr.String()), " "))
	}
	return out, nil
}
