// Package agents manages agent identities: ID generation, metadata
// storage, and per-agent directory layout.
package agents

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/jcgs2503/vestbridge/internal/errors"
)

// Metadata describes a registered agent.
type Metadata struct {
	AgentID   string    `mapstructure:"agent_id" json:"agent_id"`
	Name      string    `mapstructure:"name" json:"name"`
	CreatedAt time.Time `mapstructure:"created_at" json:"created_at"`
	Mandate   string    `mapstructure:"mandate" json:"mandate"`
}

// Create registers a new agent under agentsDir with a fresh agt_ ID and
// writes its metadata.yaml.
func Create(name, agentsDir string) (*Metadata, error) {
	if name == "" {
		name = "default"
	}
	agentID := fmt.Sprintf("agt_%s", uuid.NewString()[:8])

	agentDir := filepath.Join(agentsDir, agentID)
	if err := os.MkdirAll(filepath.Join(agentDir, "keys"), 0o755); err != nil {
		return nil, errors.NewStorageError("mkdir", agentDir, err)
	}

	meta := &Metadata{
		AgentID:   agentID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Mandate:   "default",
	}
	if err := save(agentDir, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func save(agentDir string, meta *Metadata) error {
	v := viper.New()
	v.Set("agent_id", meta.AgentID)
	v.Set("name", meta.Name)
	v.Set("created_at", meta.CreatedAt.Format(time.RFC3339))
	v.Set("mandate", meta.Mandate)

	path := filepath.Join(agentDir, "metadata.yaml")
	if err := v.WriteConfigAs(path); err != nil {
		return errors.NewStorageError("write", path, err)
	}
	return nil
}

// Load reads an agent's metadata from its directory.
func Load(agentID, agentsDir string) (*Metadata, error) {
	path := filepath.Join(agentsDir, agentID, "metadata.yaml")
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(errors.ErrAgentNotFound, "agent %s", agentID)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.NewStorageError("read", path, err)
	}

	var meta Metadata
	if err := v.Unmarshal(&meta); err != nil {
		return nil, errors.NewStorageError("parse", path, err)
	}
	if meta.CreatedAt.IsZero() {
		if t, err := time.Parse(time.RFC3339, v.GetString("created_at")); err == nil {
			meta.CreatedAt = t
		}
	}
	return &meta, nil
}

// List returns all registered agents sorted by ID.
func List(agentsDir string) ([]Metadata, error) {
	entries, err := os.ReadDir(agentsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStorageError("read", agentsDir, err)
	}

	var agents []Metadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := Load(entry.Name(), agentsDir)
		if err != nil {
			continue
		}
		agents = append(agents, *meta)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].AgentID < agents[j].AgentID })
	return agents, nil
}

// GetOrCreateDefault returns the first registered agent, creating a
// default one if none exist.
func GetOrCreateDefault(agentsDir string) (*Metadata, error) {
	agents, err := List(agentsDir)
	if err != nil {
		return nil, err
	}
	if len(agents) > 0 {
		return &agents[0], nil
	}
	return Create("default", agentsDir)
}
