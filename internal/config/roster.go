package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"enterprise_sim/internal/domain"
)

var ErrInvalidRoster = errors.New("invalid roster")

type rosterFile struct {
	Agents []domain.Agent `yaml:"agents"`
}

// LoadRoster reads a YAML roster. An empty path returns nil so the built-in
// roster is used.
func LoadRoster(path string) ([]domain.Agent, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	resolved, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", resolved, err)
	}
	return ParseRoster(data)
}

func ParseRoster(data []byte) ([]domain.Agent, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var file rosterFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	if len(file.Agents) == 0 {
		return nil, fmt.Errorf("%w: no agents", ErrInvalidRoster)
	}

	seen := make(map[string]struct{}, len(file.Agents))
	out := make([]domain.Agent, 0, len(file.Agents))
	for i, a := range file.Agents {
		a.ID = strings.TrimSpace(a.ID)
		a.Name = strings.TrimSpace(a.Name)
		if a.ID == "" || a.Name == "" {
			return nil, fmt.Errorf("%w: agent %d needs id and name", ErrInvalidRoster, i)
		}
		if _, dup := seen[a.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate agent id %q", ErrInvalidRoster, a.ID)
		}
		seen[a.ID] = struct{}{}

		a.Type = domain.AgentType(strings.ToUpper(strings.TrimSpace(string(a.Type))))
		switch a.Type {
		case domain.AgentTypeHuman, domain.AgentTypeAI, domain.AgentTypeMachine, domain.AgentTypeSoftware:
		default:
			return nil, fmt.Errorf("%w: agent %s has unknown type %q", ErrInvalidRoster, a.ID, a.Type)
		}
		if a.Efficiency < 0 || a.Efficiency > 100 {
			return nil, fmt.Errorf("%w: agent %s efficiency %.1f outside 0-100", ErrInvalidRoster, a.ID, a.Efficiency)
		}
		if a.CostPerHour < 0 {
			return nil, fmt.Errorf("%w: agent %s has negative cost", ErrInvalidRoster, a.ID)
		}
		a.Status = domain.AgentStatus(strings.ToUpper(strings.TrimSpace(string(a.Status))))
		switch a.Status {
		case "":
			a.Status = domain.AgentStatusIdle
		case domain.AgentStatusIdle, domain.AgentStatusOffline, domain.AgentStatusMaintenance:
		default:
			return nil, fmt.Errorf("%w: agent %s cannot start as %s", ErrInvalidRoster, a.ID, a.Status)
		}
		out = append(out, a)
	}
	return out, nil
}
