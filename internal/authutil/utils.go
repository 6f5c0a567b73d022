package authutil

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
)

// GetStartURL returns a t.me link that opens a private chat with the bot and
// sends /start with the serialized state as payload.
func GetStartURL(botUsername string, userID int64, chatID int64) (string, error) {
	state, err := (&State{
		UserID: userID,
		ChatID: chatID,
	}).Serialize()
	if err != nil {
		return "", fmt.Errorf("marshalling state: %w", err)
	}

	startURL := url.URL{
		Scheme: "https",
		Host:   "t.me",
		Path:   "/" + botUsername,
	}

	query := url.Values{}
	query.Set("start", state)
	startURL.RawQuery = query.Encode()

	return startURL.String(), nil
}

// State is carried in the /start payload, which Telegram limits to 64
// characters of [A-Za-z0-9_-].
type State struct {
	UserID int64 `json:"u"`
	ChatID int64 `json:"c"`
}

func (s *State) String() string {
	return fmt.Sprintf("State(user=%d, chat=%d)", s.UserID, s.ChatID)
}

// Serialize exists because Go calls MarshalText for structs if it's defined.
func (s *State) Serialize() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshalling json: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func StateFromString(s string) (*State, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding base64: %w", err)
	}

	var state State
	if err := json.Unmarshal(decoded, &state); err != nil {
		return nil, fmt.Errorf("unmarshalling json: %w", err)
	}

	return &state, nil
}
