package config

// ToolsConfig points at the Tool Registry's access-control policy file,
// or failing that, a named default profile applied to every request.
type ToolsConfig struct {
	PolicyFile     string `yaml:"policy_file"`
	DefaultProfile string `yaml:"default_profile"`
}
