package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/taskhive/taskpulse/internal/fsutil"
)

// stateFileName is the resume bookmark file inside DataDir.
const stateFileName = "state.json"

// State is the agent's persistent resume bookmark. LastTick records when
// the last collected batch was pushed; after a restart, event metrics
// resume counting from it instead of from process start.
type State struct {
	LastTick time.Time `json:"last_tick"`
}

// LoadState reads the resume bookmark from dataDir. A missing file is not
// an error: it returns a zero State, meaning start from now.
func LoadState(dataDir string) (State, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, stateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("agent: load state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("agent: load state: %w", err)
	}
	return st, nil
}

// SaveState writes the resume bookmark to dataDir, creating the directory
// if needed.
func SaveState(dataDir string, st State) error {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("agent: save state: %w", err)
	}
	data, err := json.MarshalIndent(&st, "", "  ")
	if err != nil {
		return fmt.Errorf("agent: save state: %w", err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dataDir, stateFileName), data, 0o600); err != nil {
		return fmt.Errorf("agent: save state: %w", err)
	}
	return nil
}
