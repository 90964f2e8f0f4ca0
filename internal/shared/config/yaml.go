package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadYAMLFile applies KEY: value pairs from a YAML file to the environment.
// Variables already present in the environment win over the file.
func loadYAMLFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("config: read %s: %v", path, err)
		return
	}
	values, err := parseYAMLValues(data)
	if err != nil {
		log.Printf("config: parse %s: %v", path, err)
		return
	}
	for key, val := range values {
		if _, set := os.LookupEnv(key); set {
			continue
		}
		os.Setenv(key, val)
	}
}

func parseYAMLValues(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for key, val := range raw {
		key = strings.ToUpper(strings.TrimSpace(key))
		if key == "" || val == nil {
			continue
		}
		switch v := val.(type) {
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(v)
		}
	}
	return out, nil
}
