package process

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/benchrig/benchrig/pkg/domain"
)

// Tool is one allow-listed external program, such as a vendor flashing
// utility or an instrument command line.
type Tool struct {
	Name        string            `yaml:"name" json:"name"`
	Command     string            `yaml:"command" json:"command"`
	Args        []string          `yaml:"args" json:"args"`
	Env         map[string]string `yaml:"env" json:"env"`
	Description string            `yaml:"description" json:"description"`
	Timeout     time.Duration     `yaml:"timeout" json:"timeout"`
}

// ToolsFile is the structure of tools.yaml.
type ToolsFile struct {
	Tools []Tool `yaml:"tools" json:"tools"`
}

// LoadTools reads a YAML or JSON tools file and returns the tools by name.
// Every tool needs a name and a command.
func LoadTools(path string) (map[string]Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigurationError{Source: path, Msg: "failed to read tools file", Err: err}
	}

	var file ToolsFile
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		err = json.Unmarshal(data, &file)
	} else {
		err = yaml.Unmarshal(data, &file)
	}
	if err != nil {
		return nil, &domain.ConfigurationError{Source: path, Msg: "failed to parse tools file", Err: err}
	}

	tools := make(map[string]Tool, len(file.Tools))
	for i, tool := range file.Tools {
		if tool.Name == "" || tool.Command == "" {
			return nil, domain.Configf(path, "tool #%d needs a name and a command", i+1)
		}
		if _, dup := tools[tool.Name]; dup {
			return nil, domain.Configf(path, "tool %q declared twice", tool.Name)
		}
		tools[tool.Name] = tool
	}
	return tools, nil
}
