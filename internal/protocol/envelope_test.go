package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantCmd Command
		wantErr bool
	}{
		{"message", `{"command":0,"body":{},"token":"t"}`, CommandMessage, false},
		{"call", `{"command":1,"body":{},"token":"t"}`, CommandCall, false},
		{"file", `{"command":2,"body":{},"token":"t"}`, CommandFile, false},
		{"unknown command", `{"command":9,"body":{},"token":"t"}`, 0, true},
		{"not json", `hello`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.line))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeEnvelope() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && env.Command != tt.wantCmd {
				t.Errorf("Command = %d, want %d", env.Command, tt.wantCmd)
			}
		})
	}
}

func TestDecodeMessage(t *testing.T) {
	sender := uuid.New()
	receiver := uuid.New()

	body, err := json.Marshal(MessageRequest{Message: Message{
		UUID:      uuid.New(),
		Content:   TextContent{Text: "ciphertext"},
		Nonce:     CSVBytes{1, 2, 3},
		Sides:     Sides{Sender: sender, Receiver: receiver},
		CreatedAt: 1700000000,
	}})
	if err != nil {
		t.Fatal(err)
	}

	env := Envelope{Command: CommandMessage, Body: body, Token: "t"}
	req, err := env.DecodeMessage()
	if err != nil {
		t.Fatalf("DecodeMessage() error = %v", err)
	}
	if req.Message.Sides.Sender != sender || req.Message.Sides.Receiver != receiver {
		t.Errorf("sides = %+v", req.Message.Sides)
	}
	if req.Message.Content.Text != "ciphertext" {
		t.Errorf("text = %q", req.Message.Content.Text)
	}
}

func TestDecodeCallRejectsAccepted(t *testing.T) {
	body, err := json.Marshal(CallRequest{
		Call:  MediaCall{UUID: uuid.New()},
		Index: IndexAccepted,
	})
	if err != nil {
		t.Fatal(err)
	}

	env := Envelope{Command: CommandCall, Body: body}
	if _, err := env.DecodeCall(); !errors.Is(err, ErrInboundAccepted) {
		t.Errorf("DecodeCall() error = %v, want ErrInboundAccepted", err)
	}
}

func TestDecodeCallUnknownIndex(t *testing.T) {
	env := Envelope{Command: CommandCall, Body: []byte(`{"call":{},"index":42}`)}
	if _, err := env.DecodeCall(); err == nil {
		t.Error("DecodeCall() should reject an unknown index")
	}
}

func TestDecodeFileNegativeLength(t *testing.T) {
	env := Envelope{Command: CommandFile, Body: []byte(`{"file":{"len_bytes":-1}}`)}
	if _, err := env.DecodeFile(); err == nil {
		t.Error("DecodeFile() should reject a negative length")
	}
}

func TestEncodeResponse(t *testing.T) {
	out, err := EncodeResponse(StatusOk, CodeConnectionEstablished)
	if err != nil {
		t.Fatalf("EncodeResponse() error = %v", err)
	}
	want := `{"status":"Ok","content":202}`
	if out != want {
		t.Errorf("EncodeResponse() = %s, want %s", out, want)
	}
}

func TestMediaFileExt(t *testing.T) {
	tests := []struct {
		name string
		file string
		want string
	}{
		{"simple", "photo.png", "png"},
		{"multi dot", "archive.tar.gz", "gz"},
		{"no extension", "README", "bin"},
		{"trailing dot", "weird.", "bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := MediaFile{Name: tt.file}
			if got := f.Ext(); got != tt.want {
				t.Errorf("Ext(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestMediaFileObjectName(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	f := MediaFile{UUID: id, Name: "photo.png"}
	want := id.String() + ".png"
	if got := f.ObjectName(); got != want {
		t.Errorf("ObjectName() = %q, want %q", got, want)
	}
}
