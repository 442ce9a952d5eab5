package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/jazzedu/chapterscribe/internal"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP server exposing the caption pipeline",
	Long: `Run a Model Context Protocol (MCP) server that exposes chapterscribe as tools.

The MCP server provides these tools:
- transcribe_chapter: Download, transcribe and caption a chapter (paid)
- inspect_source: List the renditions of an HLS playlist or hosted video
- chapter_cost: Recorded transcription cost for one chapter
- total_cost: Recorded transcription cost across all chapters

Transport options:
- stdio (default): Standard MCP transport via stdin/stdout
- http: HTTP transport on specified port (use --port to configure)

Logs go to mcp.log in the cache directory so they never mix with protocol frames.`,
	Example: `  # Run MCP server with stdio transport (e.g. for Claude Desktop)
  chapterscribe mcp

  # Run MCP server with HTTP transport on port 8080
  chapterscribe mcp --transport=http --port=8080

  # Set up Claude Desktop integration
  chapterscribe mcp setup-claude`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the MCP protocol, so log to a file only
		opts := internal.LogOptionsFromConfig(config)
		opts.FileOnly = true
		if opts.File == "" {
			opts.File = filepath.Join(config.CacheDir, "mcp.log")
		}
		config.Quiet = true
		return setupLogging(opts)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		app, cleanup, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		logger.Info().Str("transport", transport).Str("version", version).Msg("starting mcp server")
		return internal.NewMCPServer(app, version, logger).Start(cmd.Context(), transport, port)
	},
}

var setupClaudeCmd = &cobra.Command{
	Use:   "setup-claude",
	Short: "Register the chapterscribe MCP server with Claude Desktop",
	Long: `Add chapterscribe to the mcpServers section of claude_desktop_config.json.

Other servers and settings in the file are left untouched. The XDG base
directories of the current user are passed along so the server uses the
same config, ledger and media directories as the CLI.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		desktopConfig, err := desktopConfigPath(runtime.GOOS)
		if err != nil {
			return err
		}
		binary, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locating chapterscribe binary: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(binary); err == nil {
			binary = resolved
		}

		if err := registerDesktopServer(desktopConfig, desktopServer{
			Command: binary,
			Args:    []string{"mcp"},
			Env: map[string]string{
				"XDG_CONFIG_HOME": xdg.ConfigHome,
				"XDG_DATA_HOME":   xdg.DataHome,
				"XDG_CACHE_HOME":  xdg.CacheHome,
			},
		}); err != nil {
			return err
		}

		fmt.Printf("Registered chapterscribe in %s\n", desktopConfig)
		fmt.Println("Restart Claude Desktop to pick up the new server")
		return nil
	},
}

// desktopServer is one entry of the mcpServers map
type desktopServer struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env,omitempty"`
}

// registerDesktopServer sets mcpServers.chapterscribe in the desktop config at
// path. Unknown keys are carried over as raw JSON.
func registerDesktopServer(path string, server desktopServer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("claude desktop config not found at %s (start Claude Desktop once first)", path)
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	doc := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	servers := map[string]json.RawMessage{}
	if raw, ok := doc["mcpServers"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &servers); err != nil {
			return fmt.Errorf("parsing mcpServers: %w", err)
		}
	}

	entry, err := json.Marshal(server)
	if err != nil {
		return err
	}
	servers["chapterscribe"] = entry
	if doc["mcpServers"], err = json.Marshal(servers); err != nil {
		return err
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(out, '\n'), 0644)
}

func desktopConfigPath(goos string) (string, error) {
	const file = "claude_desktop_config.json"
	switch goos {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA is not set")
		}
		return filepath.Join(appData, "Claude", file), nil
	case "darwin", "linux":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if goos == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Claude", file), nil
		}
		return filepath.Join(home, ".config", "Claude", file), nil
	default:
		return "", fmt.Errorf("claude desktop is not supported on %s", goos)
	}
}

func init() {
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol (stdio or http)")
	mcpCmd.Flags().Int("port", 8080, "Port for HTTP transport (only used with --transport=http)")
	mcpCmd.AddCommand(setupClaudeCmd)
	rootCmd.AddCommand(mcpCmd)
}
