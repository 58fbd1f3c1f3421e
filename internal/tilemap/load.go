package tilemap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlMap mirrors a single map's on-disk fixture: dimensions plus a
// row-major list of tile kind bytes. This is the Go-native analogue of the
// original server's binary .map file loader.
type yamlMap struct {
	MapID  uint32 `yaml:"map_id"`
	Name   string `yaml:"name"`
	Width  int16  `yaml:"width"`
	Height int16  `yaml:"height"`
	Tiles  []byte `yaml:"tiles"`
}

// LoadYAML reads a single map fixture from path.
func LoadYAML(path string) (*TileMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tilemap: read %s: %w", path, err)
	}
	var ym yamlMap
	if err := yaml.Unmarshal(data, &ym); err != nil {
		return nil, fmt.Errorf("tilemap: parse %s: %w", path, err)
	}
	m, err := FromBytes(ym.Width, ym.Height, ym.Tiles)
	if err != nil {
		return nil, fmt.Errorf("tilemap: %s: %w", path, err)
	}
	m.SetID(ym.MapID)
	m.SetName(ym.Name)
	return m, nil
}
