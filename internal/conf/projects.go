package conf

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/DevRickLin/feishu-batch-bot/internal/biz/domain"
)

// ProjectsConfig is the layout of the projects YAML file
type ProjectsConfig struct {
	Projects []domain.Project `yaml:"projects" validate:"required,min=1,unique=Name,dive"`
}

var validate = validator.New()

// DefaultProjects returns the built-in project registry
func DefaultProjects() []domain.Project {
	return []domain.Project{
		{
			Name:     "货架",
			AppToken: "ADUtbWDICacuqisymHBc5doHnMd",
			TableID:  "tbloC4PHzAeRw2HR",
			ChatIDs:  []string{"oc_8433370f765f6c1134e14c71c46615a9"},
		},
		{
			Name:     "测试",
			AppToken: "ADUtbWDICacuqisymHBc5doHnMd",
			TableID:  "tbloC4PHzAeRw2HR",
			ChatIDs:  []string{"oc_bf660fc9a537b568e4737e19c18bc73a"},
		},
	}
}

// LoadProjects reads the project registry from path, or returns the
// built-in defaults when path is empty
func LoadProjects(path string) ([]domain.Project, error) {
	if path == "" {
		return DefaultProjects(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read projects file: %w", err)
	}
	return ParseProjects(data)
}

// ParseProjects parses and validates a projects YAML document
func ParseProjects(data []byte) ([]domain.Project, error) {
	var config ProjectsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse projects file: %w", err)
	}
	if err := validate.Struct(&config); err != nil {
		return nil, &ConfigError{Field: "PROJECTS_CONFIG_PATH", Message: err.Error()}
	}
	return config.Projects, nil
}
