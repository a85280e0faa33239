package ws

import "encoding/json"

// Inbound frame variants, discriminated by the "type" field.
type messageFrame struct {
	ChatID  int    `json:"chat_id"`
	Content string `json:"content"`
}

type createChatFrame struct {
	Name           *string `json:"name"`
	ParticipantIDs []int   `json:"participant_ids"`
}

// frame is the decoded union of recognized inbound envelopes. At most
// one variant is set; all nil means the type was not recognized.
type frame struct {
	Message    *messageFrame
	CreateChat *createChatFrame
}

// decodeFrame parses one inbound text frame. A JSON error is returned
// to the caller, which answers with an error envelope. Unrecognized
// types decode to an empty frame and are dropped by the session loop;
// that silence is deliberate, not a fallthrough.
func decodeFrame(data []byte) (frame, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return frame{}, err
	}

	switch head.Type {
	case "message":
		var f messageFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return frame{}, err
		}
		return frame{Message: &f}, nil
	case "create_chat":
		var f createChatFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return frame{}, err
		}
		return frame{CreateChat: &f}, nil
	default:
		return frame{}, nil
	}
}
