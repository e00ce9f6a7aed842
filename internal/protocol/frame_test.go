package protocol

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestWriteFrameAppendsNewlineAndReadFrameParsesLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte(`{"status":"OK"}`)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if got := buf.String(); got != "{\"status\":\"OK\"}\n" {
		t.Fatalf("WriteFrame wrote %q, want the JSON followed by a newline", got)
	}

	// Replies are not length-prefixed, so ReadFrame cannot read
	// WriteFrame's output; it is checked against a length-prefixed request
	// frame built by hand here.
	var framed bytes.Buffer
	body := []byte("play 5")
	framed.WriteByte(byte(len(body) >> 8))
	framed.WriteByte(byte(len(body)))
	framed.Write(body)

	got, err := ReadFrame(&framed)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got != "play 5" {
		t.Fatalf("ReadFrame() = %q, want %q", got, "play 5")
	}
}

func TestReplyMarshalFlattensItemsAlongsideStatus(t *testing.T) {
	r := OK(map[string]any{"volume": 42})
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out["status"] != "OK" || out["volume"] != float64(42) {
		t.Fatalf("unexpected reply shape: %v", out)
	}
	if _, hasReason := out["reason"]; hasReason {
		t.Fatal("OK reply should omit reason")
	}
}

func TestErrReplyCarriesReason(t *testing.T) {
	r := Err("SyntaxError: bad command")
	b, _ := json.Marshal(r)
	var out map[string]any
	_ = json.Unmarshal(b, &out)
	if out["status"] != "ERR" || out["reason"] != "SyntaxError: bad command" {
		t.Fatalf("unexpected error reply shape: %v", out)
	}
}
