package modem

import "fmt"

// Domain is the socket address family as numbered by AT+CSOC.
type Domain int

const (
	AFInet  Domain = 1
	AFInet6 Domain = 2
)

func (d Domain) String() string {
	switch d {
	case AFInet:
		return "AF_INET"
	case AFInet6:
		return "AF_INET6"
	default:
		return fmt.Sprintf("Domain(%d)", int(d))
	}
}

// Type is the socket type as numbered by AT+CSOC.
type Type int

const (
	SockStream Type = 1
	SockDgram  Type = 2
)

func (t Type) String() string {
	switch t {
	case SockStream:
		return "SOCK_STREAM"
	case SockDgram:
		return "SOCK_DGRAM"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// Proto is the transport protocol as numbered by AT+CSOC.
type Proto int

const (
	ProtoTCP Proto = 1
	ProtoUDP Proto = 2
)

func (p Proto) String() string {
	switch p {
	case ProtoTCP:
		return "IPPROTO_TCP"
	case ProtoUDP:
		return "IPPROTO_UDP"
	default:
		return fmt.Sprintf("Proto(%d)", int(p))
	}
}

// SockOps describes the socket to create. It does not by itself reserve
// anything on the modem.
type SockOps struct {
	Domain Domain
	Type   Type
	Proto  Proto
}

var (
	TCPOps = SockOps{Domain: AFInet, Type: SockStream, Proto: ProtoTCP}
	UDPOps = SockOps{Domain: AFInet, Type: SockDgram, Proto: ProtoUDP}
)

func (o SockOps) validate() error {
	if o.Domain != AFInet && o.Domain != AFInet6 {
		return fmt.Errorf("%w: domain %v", ErrInvalidArgument, o.Domain)
	}
	if o.Type != SockStream && o.Type != SockDgram {
		return fmt.Errorf("%w: type %v", ErrInvalidArgument, o.Type)
	}
	if o.Proto != ProtoTCP && o.Proto != ProtoUDP {
		return fmt.Errorf("%w: proto %v", ErrInvalidArgument, o.Proto)
	}
	return nil
}

// Socket pairs SockOps with the id the modem assigned on creation. The id
// is unset until Bind is called and cannot change afterwards.
type Socket struct {
	ops   SockOps
	id    int
	bound bool
}

func NewSocket(ops SockOps) *Socket {
	return &Socket{ops: ops}
}

func (s *Socket) Ops() SockOps {
	return s.ops
}

// ID returns the modem-side socket id and whether one has been bound.
func (s *Socket) ID() (int, bool) {
	return s.id, s.bound
}

// Bind records the id confirmed by the modem.
func (s *Socket) Bind(id int) error {
	if s.bound {
		return fmt.Errorf("%w: id %d", ErrSocketBound, s.id)
	}
	if id < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSocketID, id)
	}
	s.id = id
	s.bound = true
	return nil
}

func (s *Socket) String() string {
	if !s.bound {
		return fmt.Sprintf("%v/%v/%v (unbound)", s.ops.Domain, s.ops.Type, s.ops.Proto)
	}
	return fmt.Sprintf("%v/%v/%v #%d", s.ops.Domain, s.ops.Type, s.ops.Proto, s.id)
}
