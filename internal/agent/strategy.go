package agent

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Strategy is one named analysis playbook loadable from a YAML file
// under a built-in directory or a user override directory; a
// user-defined strategy with the same Name shadows the built-in one.
type Strategy struct {
	Name            string   `yaml:"name"`
	DisplayName     string   `yaml:"display_name"`
	Description     string   `yaml:"description"`
	Category        string   `yaml:"category"`
	CoreRules       []int    `yaml:"core_rules"`
	RequiredTools   []string `yaml:"required_tools"`
	Instructions    string   `yaml:"instructions"`
}

// LoadStrategies reads every *.yaml/*.yml file from builtinDir, then
// from userDir, with user files overriding a built-in strategy of the
// same name.
func LoadStrategies(builtinDir, userDir string) (map[string]*Strategy, error) {
	out := map[string]*Strategy{}
	if err := loadStrategyDir(builtinDir, out); err != nil {
		return nil, err
	}
	if userDir != "" {
		if err := loadStrategyDir(userDir, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func loadStrategyDir(dir string, out map[string]*Strategy) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		buf, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		var s Strategy
		if err := yaml.Unmarshal(buf, &s); err != nil {
			return err
		}
		if s.Name == "" {
			s.Name = strings.TrimSuffix(name, filepath.Ext(name))
		}
		out[s.Name] = &s
	}
	return nil
}
