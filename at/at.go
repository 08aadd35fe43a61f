package at

const (
	// Terminal Control
	CRLF   = "\r\n"
	Prompt = "> "

	// Response Codes
	OK         = "OK"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	// URCs (Unsolicited Result Codes)
	UrcSocketData   = "+CSONMI:"
	UrcSocketClosed = "+CSOERR:"
	UrcCall         = "RING"
)

// Commands understood by SIM7020-class modems.
const (
	CmdAt           = "AT"
	CmdEchoOn       = "ATE1"
	CmdSignal       = "AT+CSQ"
	CmdFirmware     = "AT+CGMR"
	CmdRegistration = "AT+CGREG?"
	CmdPDPStatus    = "AT+CGACT?"
	CmdOperator     = "AT+COPS?"
	CmdContextInfo  = "AT+CGCONTRDP"

	// Socket command prefixes, completed with arguments by the caller.
	CmdSocketCreate  = "AT+CSOC="
	CmdSocketConnect = "AT+CSOCON="
	CmdSocketBind    = "AT+CSOB="
	CmdSocketListen  = "AT+CSOLISTEN="
	CmdSocketSend    = "AT+CSOSEND="
	CmdSocketClose   = "AT+CSOCL="
	CmdSocketStatus  = "AT+CSOSTATUS="
)

type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR
	TypeURC                        // Asynchronous notifications
	TypeData                       // Intermediate command output (+CSQ: ...)
	TypePrompt                     // Data input prompt
)

func (t ResponseType) String() string {
	switch t {
	case TypeFinal:
		return "final"
	case TypeURC:
		return "urc"
	case TypeData:
		return "data"
	case TypePrompt:
		return "prompt"
	default:
		return "unknown"
	}
}
