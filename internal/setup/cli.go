package setup

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// CLI implements the "setup" subcommand of the MCP server binary.
type CLI struct {
	out        io.Writer
	configPath string
}

// NewCLI creates a setup CLI writing to out. An empty configPath uses the
// desktop client's default location.
func NewCLI(out io.Writer, configPath string) *CLI {
	return &CLI{out: out, configPath: configPath}
}

// Run executes the setup command based on the provided arguments.
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		return c.showHelp()
	}

	switch args[0] {
	case "desktop":
		return c.register(args[1:])
	case "status":
		return c.showStatus()
	case "help", "--help", "-h":
		return c.showHelp()
	default:
		fmt.Fprintf(c.out, "Unknown command: %s\n\n", args[0])
		return c.showHelp()
	}
}

func (c *CLI) showHelp() error {
	fmt.Fprint(c.out, `Bioequivalence Design MCP Server Setup

Usage:
  bioeq-mcp-server setup <command> [options]

Commands:
  desktop   Register the server with the desktop MCP client
            --binary PATH     server binary (default: this executable)
            --data-dir DIR    database and report directory
  status    Show current registration status
`)
	return nil
}

func (c *CLI) resolveConfigPath() (string, error) {
	if c.configPath != "" {
		return c.configPath, nil
	}
	return DefaultConfigPath()
}

func (c *CLI) register(args []string) error {
	fs := flag.NewFlagSet("desktop", flag.ContinueOnError)
	fs.SetOutput(c.out)
	var opts Options
	fs.StringVar(&opts.BinaryPath, "binary", "", "server binary")
	fs.StringVar(&opts.DataDir, "data-dir", "", "data directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if opts.BinaryPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to resolve executable: %w", err)
		}
		opts.BinaryPath = execPath
	}

	configPath, err := c.resolveConfigPath()
	if err != nil {
		return err
	}
	if err := Register(configPath, opts); err != nil {
		return fmt.Errorf("failed to register server: %w", err)
	}

	fmt.Fprintf(c.out, "Registered %s in %s\nServer binary: %s\nRestart the client to load the new configuration.\n",
		ServerName, configPath, opts.BinaryPath)
	return nil
}

func (c *CLI) showStatus() error {
	configPath, err := c.resolveConfigPath()
	if err != nil {
		return err
	}
	status, err := Inspect(configPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Config file: %s\nRegistered: %v\n", status.ConfigPath, status.Registered)
	if status.Registered {
		fmt.Fprintf(c.out, "Server binary: %s\nData directory: %s\n", status.ServerPath, status.DataDir)
	}
	for _, issue := range status.Issues {
		fmt.Fprintf(c.out, "  ! %s\n", issue)
	}
	return nil
}
