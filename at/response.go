package at

import "strings"

// Response is the structured result of one AT transaction.
type Response struct {
	// Echo is the first line sent back by the modem, normally the command itself.
	Echo string
	// Body holds the lines between the echo and the status line. When the
	// transaction failed it also holds the error marker, if one arrived.
	Body []string
	// Success is true only when the last line received was exactly "OK".
	Success bool
}

// Parse classifies the lines captured for a single transaction.
//
// An empty capture yields the zero Response. If the last line is "OK" the
// body is everything between the echo and that line, otherwise it is every
// line after the echo.
func Parse(lines []string) Response {
	if len(lines) == 0 {
		return Response{Body: []string{}}
	}

	resp := Response{
		Echo:    lines[0],
		Success: lines[len(lines)-1] == OK,
	}

	switch {
	case len(lines) == 1:
		resp.Body = []string{}
	case resp.Success:
		resp.Body = append([]string{}, lines[1:len(lines)-1]...)
	default:
		resp.Body = append([]string{}, lines[1:]...)
	}
	return resp
}

// NoReply reports whether the modem sent nothing at all before the read
// timed out, as opposed to answering with an error.
func (r Response) NoReply() bool {
	return !r.Success && r.Echo == "" && len(r.Body) == 0
}

// Final returns the terminal status line of the response, or "" when none
// was received.
func (r Response) Final() string {
	if r.Success {
		return OK
	}
	if len(r.Body) == 0 {
		return ""
	}
	last := r.Body[len(r.Body)-1]
	if Classify(last) != TypeFinal {
		return ""
	}
	return last
}

func (r Response) String() string {
	var b strings.Builder
	b.WriteString(r.Echo)
	for _, line := range r.Body {
		b.WriteString(" | ")
		b.WriteString(line)
	}
	if r.Success {
		b.WriteString(" | ")
		b.WriteString(OK)
	}
	return b.String()
}
