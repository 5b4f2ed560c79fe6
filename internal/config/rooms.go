package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RoomOverride carries per-room tuning applied when a device joins a room.
type RoomOverride struct {
	Language  string `yaml:"language"`
	TargetFPS int    `yaml:"target_fps"`
}

type roomsFilePayload struct {
	Rooms map[string]RoomOverride `yaml:"rooms"`
}

// ReadRoomOverrides loads the optional rooms file. A missing path yields an
// empty map rather than an error so the bridge can run unconfigured.
func ReadRoomOverrides(path string) (map[string]RoomOverride, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return map[string]RoomOverride{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]RoomOverride{}, nil
		}
		return nil, err
	}

	var payload roomsFilePayload
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	if payload.Rooms == nil {
		payload.Rooms = map[string]RoomOverride{}
	}
	return payload.Rooms, nil
}
