package ws

import "testing"

func TestDecodeFrameMessage(t *testing.T) {
	f, err := decodeFrame([]byte(`{"type":"message","chat_id":10,"content":"hi"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Message == nil {
		t.Fatalf("expected a message frame")
	}
	if f.Message.ChatID != 10 || f.Message.Content != "hi" {
		t.Fatalf("unexpected frame contents: %+v", f.Message)
	}
}

func TestDecodeFrameCreateChat(t *testing.T) {
	f, err := decodeFrame([]byte(`{"type":"create_chat","name":null,"participant_ids":[2,3]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.CreateChat == nil {
		t.Fatalf("expected a create_chat frame")
	}
	if f.CreateChat.Name != nil {
		t.Fatalf("expected a nil name")
	}
	if len(f.CreateChat.ParticipantIDs) != 2 {
		t.Fatalf("unexpected participant ids: %v", f.CreateChat.ParticipantIDs)
	}
}

func TestDecodeFrameMalformed(t *testing.T) {
	if _, err := decodeFrame([]byte(`not json`)); err == nil {
		t.Fatalf("expected an error for malformed input")
	}
}

func TestDecodeFrameUnrecognizedType(t *testing.T) {
	f, err := decodeFrame([]byte(`{"type":"typing","chat_id":10}`))
	if err != nil {
		t.Fatalf("unrecognized types must not error: %v", err)
	}
	if f.Message != nil || f.CreateChat != nil {
		t.Fatalf("expected an empty frame for an unrecognized type")
	}
}
