package strategy

import (
	"encoding/json"
	"os"
	"time"

	"sectorbot/internal/model"
)

// SessionState is the persisted portfolio of a live session, written after
// each committed step so a restarted daemon resumes with its holdings.
type SessionState struct {
	Positions []model.Position `json:"positions"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// LoadState reads the session state from a JSON file. Returns an empty state
// if the file doesn't exist.
func LoadState(filePath string) (*SessionState, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &SessionState{}, nil
		}
		return nil, err
	}
	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveState writes the session state to a JSON file.
func SaveState(filePath string, state *SessionState) error {
	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}
