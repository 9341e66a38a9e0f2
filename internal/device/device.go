package device

import (
	"fmt"

	"aura/wellness-agent/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const agentIDKey = "agent_id"

// Manager provides a stable identity for this agent installation, generated
// once and persisted in settings.
type Manager struct {
	settings *store.SettingsRepository
	logger   *zap.Logger
}

func NewManager(settings *store.SettingsRepository, logger *zap.Logger) *Manager {
	return &Manager{settings: settings, logger: logger}
}

// GetOrCreateAgentID returns the persisted agent id, generating and storing
// one on first run.
func (m *Manager) GetOrCreateAgentID() (string, error) {
	id, err := m.settings.Get(agentIDKey, "")
	if err != nil {
		return "", fmt.Errorf("failed to read agent id: %w", err)
	}
	if id != "" {
		return id, nil
	}

	id = uuid.NewString()
	if err := m.settings.Set(agentIDKey, id); err != nil {
		return "", fmt.Errorf("failed to persist agent id: %w", err)
	}
	m.logger.Info("Generated agent id", zap.String("agent_id", id))
	return id, nil
}
