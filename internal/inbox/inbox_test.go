package inbox

import "testing"

const codeSubject = "Your Steam account: Access from new device"

func TestExtractCode(t *testing.T) {
	body := "Hi there,\r\n\r\nHere is the Login Code\r\nJ2K9P\r\n\r\nIf this wasn't you, change your password.\r\n"
	if got := ExtractCode(codeSubject, body); got != "J2K9P" {
		t.Fatalf("ExtractCode = %q, want J2K9P", got)
	}
}

func TestExtractCodeUnixNewlines(t *testing.T) {
	body := "Login Code\nABCDE\n"
	if got := ExtractCode(codeSubject, body); got != "ABCDE" {
		t.Fatalf("ExtractCode = %q, want ABCDE", got)
	}
}

func TestExtractCodeWrongSubject(t *testing.T) {
	if got := ExtractCode("Weekly newsletter", "Login Code\nABCDE\n"); got != "" {
		t.Fatalf("unrelated subject must not yield a code, got %q", got)
	}
}

func TestExtractCodeNoMatch(t *testing.T) {
	if got := ExtractCode(codeSubject, "no code in here"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
