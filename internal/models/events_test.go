package models

import (
	"errors"
	"strings"
	"testing"

	"chat-server/internal/apperr"
)

func TestSendMessageEvent_Decode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{"valid", `{"room_id":"r1","content":"hello"}`, false},
		{"trims whitespace", `{"room_id":"r1","content":"  hi  "}`, false},
		{"missing room", `{"content":"hello"}`, true},
		{"empty content", `{"room_id":"r1","content":""}`, true},
		{"whitespace only content", `{"room_id":"r1","content":"   "}`, true},
		{"unknown field", `{"room_id":"r1","content":"hi","extra":1}`, true},
		{"wrong type", `{"room_id":1,"content":"hi"}`, true},
		{"empty payload", ``, true},
		{"not json", `not-json`, true},
		{"trailing garbage", `{"room_id":"r1","content":"hi"}{}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var evt SendMessageEvent
			err := evt.Decode([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperr.ErrInvalidInput) {
				t.Errorf("decode failures must be InvalidInput, got %v", err)
			}
		})
	}
}

func TestSendMessageEvent_DecodeTrims(t *testing.T) {
	var evt SendMessageEvent
	if err := evt.Decode([]byte(`{"room_id":"r1","content":"  hi  "}`)); err != nil {
		t.Fatal(err)
	}
	if evt.Content != "hi" {
		t.Errorf("expected trimmed content, got %q", evt.Content)
	}
}

func TestValidateContent_Length(t *testing.T) {
	if err := ValidateContent(strings.Repeat("a", MaxContentLength)); err != nil {
		t.Errorf("content at the limit should pass: %v", err)
	}
	if err := ValidateContent(strings.Repeat("a", MaxContentLength+1)); err == nil {
		t.Error("content over the limit should fail")
	}

	// The limit counts characters, not bytes.
	if err := ValidateContent(strings.Repeat("é", MaxContentLength)); err != nil {
		t.Errorf("multibyte content at the limit should pass: %v", err)
	}
	if err := ValidateContent(strings.Repeat("é", MaxContentLength+1)); err == nil {
		t.Error("multibyte content over the limit should fail")
	}
}

func TestTypingEvent_Decode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
		want    TypingEvent
	}{
		{"typing on", `{"room_id":"r1","is_typing":true}`, false, TypingEvent{RoomID: "r1", IsTyping: true}},
		{"explicit false", `{"room_id":"r1","is_typing":false}`, false, TypingEvent{RoomID: "r1", IsTyping: false}},
		{"missing room_id", `{"is_typing":true}`, true, TypingEvent{}},
		{"missing is_typing", `{"room_id":"r1"}`, true, TypingEvent{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var evt TypingEvent
			err := evt.Decode([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && evt != tt.want {
				t.Errorf("Decode() = %+v, want %+v", evt, tt.want)
			}
		})
	}
}

func TestDecode_ReusedReceiverKeepsNoStaleFields(t *testing.T) {
	var evt SendMessageEvent
	if err := evt.Decode([]byte(`{"room_id":"r1","content":"hi"}`)); err != nil {
		t.Fatal(err)
	}
	// A payload omitting room_id must fail even though an earlier decode
	// left one behind on the same struct.
	if err := evt.Decode([]byte(`{"content":"hello"}`)); err == nil {
		t.Error("missing room_id should fail on a reused receiver")
	}

	var typing TypingEvent
	if err := typing.Decode([]byte(`{"room_id":"r1","is_typing":true}`)); err != nil {
		t.Fatal(err)
	}
	if err := typing.Decode([]byte(`{"is_typing":true}`)); err == nil {
		t.Error("missing room_id should fail on a reused receiver")
	}
}

func TestMessageIDEvents_RequireID(t *testing.T) {
	var edit EditMessageEvent
	if err := edit.Decode([]byte(`{"content":"x"}`)); err == nil {
		t.Error("edit without message_id should fail")
	}
	var del DeleteMessageEvent
	if err := del.Decode([]byte(`{}`)); err == nil {
		t.Error("delete without message_id should fail")
	}
	var read MarkMessageReadEvent
	if err := read.Decode([]byte(`{"message_id":"m1"}`)); err != nil {
		t.Errorf("valid mark read should pass: %v", err)
	}
}

func TestJoinRoomEvent_Decode(t *testing.T) {
	var evt JoinRoomEvent
	if err := evt.Decode([]byte(`{"room_id":"r1"}`)); err != nil {
		t.Fatal(err)
	}
	if err := evt.Decode([]byte(`{"room_id":""}`)); err == nil {
		t.Error("empty room_id should fail")
	}
}
