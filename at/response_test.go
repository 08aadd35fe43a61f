package at_test

import (
	"slices"
	"testing"

	"i4.energy/across/nbiot/at"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		lines       []string
		wantEcho    string
		wantBody    []string
		wantSuccess bool
	}{
		{
			name:  "No lines",
			lines: nil,
		},
		{
			name:        "Echo, data and OK",
			lines:       []string{"AT+CSQ", "+CSQ: 20,0", "OK"},
			wantEcho:    "AT+CSQ",
			wantBody:    []string{"+CSQ: 20,0"},
			wantSuccess: true,
		},
		{
			name:        "Echo and OK only",
			lines:       []string{"ATE1", "OK"},
			wantEcho:    "ATE1",
			wantSuccess: true,
		},
		{
			name:        "Single OK line",
			lines:       []string{"OK"},
			wantEcho:    "OK",
			wantSuccess: true,
		},
		{
			name:     "Error keeps the marker in the body",
			lines:    []string{"AT+CSOC=1,1,1", "ERROR"},
			wantEcho: "AT+CSOC=1,1,1",
			wantBody: []string{"ERROR"},
		},
		{
			name:     "Timeout after echo",
			lines:    []string{"AT+CGCONTRDP", "+CGCONTRDP: 1,5,\"iot\""},
			wantEcho: "AT+CGCONTRDP",
			wantBody: []string{"+CGCONTRDP: 1,5,\"iot\""},
		},
		{
			name:     "OK not last",
			lines:    []string{"AT+CSQ", "OK", "+CSONMI: 0,2,AA"},
			wantEcho: "AT+CSQ",
			wantBody: []string{"OK", "+CSONMI: 0,2,AA"},
		},
		{
			name:     "Echo only",
			lines:    []string{"AT+COPS?"},
			wantEcho: "AT+COPS?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := at.Parse(tt.lines)

			if resp.Echo != tt.wantEcho {
				t.Errorf("Echo: expected %q, got %q", tt.wantEcho, resp.Echo)
			}
			if resp.Success != tt.wantSuccess {
				t.Errorf("Success: expected %v, got %v", tt.wantSuccess, resp.Success)
			}
			if !slices.Equal(resp.Body, tt.wantBody) {
				t.Errorf("Body: expected %q, got %q", tt.wantBody, resp.Body)
			}
			if resp.Body == nil {
				t.Error("Body should never be nil")
			}
		})
	}
}

func TestParseDoesNotAliasInput(t *testing.T) {
	lines := []string{"AT+CSQ", "+CSQ: 20,0", "OK"}
	resp := at.Parse(lines)
	lines[1] = "changed"

	if resp.Body[0] != "+CSQ: 20,0" {
		t.Errorf("body changed with input slice: %q", resp.Body)
	}
}

func TestResponseNoReply(t *testing.T) {
	if !at.Parse(nil).NoReply() {
		t.Error("empty capture should be a no-reply response")
	}
	if at.Parse([]string{"AT+CSQ", "ERROR"}).NoReply() {
		t.Error("explicit ERROR should not be a no-reply response")
	}
	if at.Parse([]string{"AT+CSQ", "OK"}).NoReply() {
		t.Error("successful response should not be a no-reply response")
	}
}

func TestResponseFinal(t *testing.T) {
	tests := []struct {
		lines []string
		want  string
	}{
		{lines: nil, want: ""},
		{lines: []string{"AT+CSQ", "+CSQ: 1,0", "OK"}, want: "OK"},
		{lines: []string{"AT+CSOC=1,1,1", "+CME ERROR: 4"}, want: "+CME ERROR: 4"},
		{lines: []string{"AT+CSOC=1,1,1", "+CSOC: 1"}, want: ""},
	}

	for _, tt := range tests {
		if got := at.Parse(tt.lines).Final(); got != tt.want {
			t.Errorf("Final() for %q = %q, want %q", tt.lines, got, tt.want)
		}
	}
}
