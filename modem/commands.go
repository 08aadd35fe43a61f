package modem

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"i4.energy/across/nbiot/at"
)

// socketStateConnected is the <state> AT+CSOSTATUS reports once a TCP
// socket has a peer.
const socketStateConnected = 2

// SignalQuality queries AT+CSQ. The response is returned unparsed.
func (m *Modem) SignalQuality(ctx context.Context) (at.Response, error) {
	return m.Execute(ctx, at.CmdSignal)
}

// FirmwareVersion queries AT+CGMR.
func (m *Modem) FirmwareVersion(ctx context.Context) (at.Response, error) {
	return m.Execute(ctx, at.CmdFirmware)
}

// RegistrationStatus queries the packet domain registration, AT+CGREG?.
func (m *Modem) RegistrationStatus(ctx context.Context) (at.Response, error) {
	return m.Execute(ctx, at.CmdRegistration)
}

// PDPStatus queries the PDP context activation state, AT+CGACT?.
func (m *Modem) PDPStatus(ctx context.Context) (at.Response, error) {
	return m.Execute(ctx, at.CmdPDPStatus)
}

// OperatorInfo queries the selected network operator, AT+COPS?.
func (m *Modem) OperatorInfo(ctx context.Context) (at.Response, error) {
	return m.Execute(ctx, at.CmdOperator)
}

// ConnectionStatus queries the dynamic PDP context parameters, AT+CGCONTRDP.
func (m *Modem) ConnectionStatus(ctx context.Context) (at.Response, error) {
	return m.Execute(ctx, at.CmdContextInfo)
}

// CreateSocket asks the modem for a new socket and returns the id it
// assigned. A rejected command yields a *RejectedError; an OK reply whose
// first body line is not "<prefix> <id>" yields ErrParse.
func (m *Modem) CreateSocket(ctx context.Context, ops SockOps) (int, error) {
	if err := ops.validate(); err != nil {
		return 0, err
	}

	cmd := fmt.Sprintf("%s%d,%d,%d", at.CmdSocketCreate, ops.Domain, ops.Type, ops.Proto)
	resp, err := m.Execute(ctx, cmd)
	if err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, &RejectedError{Command: cmd, Response: resp}
	}

	return ParseSocketID(resp.Body)
}

// ParseSocketID extracts the id from a create-socket acknowledgment such as
// "+CSOC: 1": the first body line split on a single space, second field.
func ParseSocketID(body []string) (int, error) {
	if len(body) == 0 {
		return 0, fmt.Errorf("%w: no socket id in empty response", ErrParse)
	}

	fields := strings.Split(body[0], " ")
	if len(fields) < 2 {
		return 0, fmt.Errorf("%w: no socket id in %q", ErrParse, body[0])
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: bad socket id in %q", ErrParse, body[0])
	}
	return id, nil
}

// ConnectSocket connects socket id to host:port with AT+CSOCON. The caller
// inspects Response.Success.
func (m *Modem) ConnectSocket(ctx context.Context, id int, host string, port int) (at.Response, error) {
	if err := checkSocketID(id); err != nil {
		return at.Response{}, err
	}
	if err := checkPort(port); err != nil {
		return at.Response{}, err
	}
	if host == "" || strings.ContainsAny(host, "\"\r\n") {
		return at.Response{}, fmt.Errorf("%w: host %q", ErrInvalidArgument, host)
	}

	return m.Execute(ctx, fmt.Sprintf(`%s%d,%d,"%s"`, at.CmdSocketConnect, id, port, host))
}

// ListenSocket binds socket id to a local port with AT+CSOB and then puts it
// into listening mode with AT+CSOLISTEN. If the bind is rejected its
// response is returned and the listen command is not sent.
func (m *Modem) ListenSocket(ctx context.Context, id int, port int) (at.Response, error) {
	resp, err := m.BindSocket(ctx, id, port)
	if err != nil || !resp.Success {
		return resp, err
	}
	return m.StartListening(ctx, id)
}

// BindSocket binds socket id to a local port with AT+CSOB.
func (m *Modem) BindSocket(ctx context.Context, id int, port int) (at.Response, error) {
	if err := checkSocketID(id); err != nil {
		return at.Response{}, err
	}
	if err := checkPort(port); err != nil {
		return at.Response{}, err
	}
	return m.Execute(ctx, fmt.Sprintf("%s%d,%d", at.CmdSocketBind, id, port))
}

// StartListening puts an already bound socket id into listening mode with
// AT+CSOLISTEN.
func (m *Modem) StartListening(ctx context.Context, id int) (at.Response, error) {
	if err := checkSocketID(id); err != nil {
		return at.Response{}, err
	}
	return m.Execute(ctx, fmt.Sprintf("%s%d", at.CmdSocketListen, id))
}

// SendSocket sends data on socket id with AT+CSOSEND. The payload travels
// hex encoded after its length in bytes, so it may hold any byte values.
func (m *Modem) SendSocket(ctx context.Context, id int, data []byte) (at.Response, error) {
	if err := checkSocketID(id); err != nil {
		return at.Response{}, err
	}
	if len(data) == 0 {
		return at.Response{}, fmt.Errorf("%w: empty payload", ErrInvalidArgument)
	}

	payload := strings.ToUpper(hex.EncodeToString(data))
	return m.Execute(ctx, fmt.Sprintf("%s%d,%d,%s", at.CmdSocketSend, id, len(data), payload))
}

// CloseSocket releases socket id on the modem with AT+CSOCL.
func (m *Modem) CloseSocket(ctx context.Context, id int) (at.Response, error) {
	if err := checkSocketID(id); err != nil {
		return at.Response{}, err
	}
	return m.Execute(ctx, fmt.Sprintf("%s%d", at.CmdSocketClose, id))
}

// SocketConnected polls AT+CSOSTATUS and reports whether socket id has a
// connected peer. A rejected query is reported as not connected.
func (m *Modem) SocketConnected(ctx context.Context, id int) (bool, at.Response, error) {
	if err := checkSocketID(id); err != nil {
		return false, at.Response{}, err
	}

	resp, err := m.Execute(ctx, fmt.Sprintf("%s%d", at.CmdSocketStatus, id))
	if err != nil || !resp.Success {
		return false, resp, err
	}

	state, err := parseSocketState(resp.Body, id)
	if err != nil {
		return false, resp, err
	}
	return state == socketStateConnected, resp, nil
}

// parseSocketState reads "+CSOSTATUS: <id>,<state>" for the given id.
func parseSocketState(body []string, id int) (int, error) {
	for _, line := range body {
		rest, ok := strings.CutPrefix(line, "+CSOSTATUS:")
		if !ok {
			continue
		}
		fields := strings.Split(strings.TrimSpace(rest), ",")
		if len(fields) < 2 {
			return 0, fmt.Errorf("%w: %q", ErrParse, line)
		}
		gotID, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrParse, line)
		}
		if gotID != id {
			continue
		}
		state, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrParse, line)
		}
		return state, nil
	}
	return 0, fmt.Errorf("%w: no status for socket %d", ErrParse, id)
}

func checkSocketID(id int) error {
	if id < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSocketID, id)
	}
	return nil
}

func checkPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidArgument, port)
	}
	return nil
}
