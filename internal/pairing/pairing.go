package pairing

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// A pairing payload is the string the desktop shows inside its QR code:
//
//	zelara://pair?ip=192.168.0.12&ip=10.42.0.1&port=8737&token=abc123
//
// Several ip values may appear when the desktop has more than one usable
// interface; candidates keep the payload's order.

var (
	ErrBadScheme    = fmt.Errorf("pairing payload: bad scheme or host")
	ErrMissingAddr  = fmt.Errorf("pairing payload: no ip value")
	ErrBadAddr      = fmt.Errorf("pairing payload: malformed ip value")
	ErrMissingPort  = fmt.Errorf("pairing payload: missing port")
	ErrBadPort      = fmt.Errorf("pairing payload: port out of range")
	ErrMissingToken = fmt.Errorf("pairing payload: missing token")
)

// Candidate is one address to try during connection establishment.
type Candidate struct {
	Host string
	Port int
}

// Addr returns the dialable host:port form.
func (c Candidate) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Payload is the decoded pairing target: candidates in payload order, all
// sharing one port and one bearer token.
type Payload struct {
	Candidates []Candidate
	Port       int
	Token      string
}

// Parse decodes and validates a raw pairing payload string.
func Parse(raw string) (*Payload, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("pairing payload: %w", err)
	}
	if u.Scheme == "" || u.Host != "pair" {
		return nil, ErrBadScheme
	}
	q := u.Query()

	portRaw := q.Get("port")
	if portRaw == "" {
		return nil, ErrMissingPort
	}
	port, err := strconv.Atoi(portRaw)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: %q", ErrBadPort, portRaw)
	}

	token := q.Get("token")
	if token == "" {
		return nil, ErrMissingToken
	}

	ips := q["ip"]
	if len(ips) == 0 {
		return nil, ErrMissingAddr
	}
	candidates := make([]Candidate, 0, len(ips))
	for _, ip := range ips {
		host := strings.TrimSpace(ip)
		if host == "" || strings.ContainsAny(host, " /") {
			return nil, fmt.Errorf("%w: %q", ErrBadAddr, ip)
		}
		candidates = append(candidates, Candidate{Host: host, Port: port})
	}

	return &Payload{Candidates: candidates, Port: port, Token: token}, nil
}

// Encode renders the payload back into its QR string form.
func (p *Payload) Encode(scheme string) string {
	q := url.Values{}
	for _, c := range p.Candidates {
		q.Add("ip", c.Host)
	}
	q.Set("port", strconv.Itoa(p.Port))
	q.Set("token", p.Token)
	u := url.URL{Scheme: scheme, Host: "pair", RawQuery: q.Encode()}
	return u.String()
}
