// Package setup registers the MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ServerName is the key under which the server is registered
const ServerName = "bioeq-design"

// DesktopConfig represents the desktop client configuration file structure.
type DesktopConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`
	// other top-level client settings are preserved verbatim
	Extra map[string]json.RawMessage `json:"-"`
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls how the server is registered.
type Options struct {
	BinaryPath string
	DataDir    string
}

// DefaultConfigPath returns the desktop client's config file for this OS.
func DefaultConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// DefaultDataDir returns the directory holding the SQLite database and reports.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".bioeq-design")
}

// LoadConfig loads the client configuration; a missing file yields an empty one.
func LoadConfig(configPath string) (*DesktopConfig, error) {
	config := &DesktopConfig{
		MCPServers: make(map[string]MCPServerConfig),
		Extra:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &config.Extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := config.Extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &config.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(config.Extra, "mcpServers")
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]MCPServerConfig)
	}
	return config, nil
}

// SaveConfig writes the client configuration, keeping unrelated settings.
func SaveConfig(configPath string, config *DesktopConfig) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]interface{}, len(config.Extra)+1)
	for k, v := range config.Extra {
		out[k] = v
	}
	out["mcpServers"] = config.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the server entry. The data directory is passed to the
// server through its BIOEQ_ environment overrides.
func Register(configPath string, opts Options) error {
	if opts.BinaryPath == "" {
		return fmt.Errorf("server binary path is required")
	}
	if opts.DataDir == "" {
		opts.DataDir = DefaultDataDir()
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	config.MCPServers[ServerName] = MCPServerConfig{
		Command: opts.BinaryPath,
		Env: map[string]string{
			"BIOEQ_DATABASE_DRIVER":      "sqlite",
			"BIOEQ_DATABASE_SQLITE_PATH": filepath.Join(opts.DataDir, "bioeq.db"),
			"BIOEQ_STORAGE_DIRECTORY":    opts.DataDir,
			"BIOEQ_LOGGING_OUTPUT":       "stderr",
		},
	}

	return SaveConfig(configPath, config)
}

// Status represents the current registration state.
type Status struct {
	ConfigPath string
	Registered bool
	ServerPath string
	DataDir    string
	Issues     []string
}

// Inspect reports whether the server is registered and usable.
func Inspect(configPath string) (*Status, error) {
	status := &Status{ConfigPath: configPath, Issues: []string{}}

	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	entry, ok := config.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, "server is not registered")
		return status, nil
	}
	status.Registered = true
	status.ServerPath = entry.Command
	status.DataDir = entry.Env["BIOEQ_STORAGE_DIRECTORY"]

	if info, err := os.Stat(entry.Command); err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	} else if info.Mode()&0111 == 0 {
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}
	return status, nil
}
