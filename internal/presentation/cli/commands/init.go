package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/yardsync/internal/adapters/remote/github"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/config"
	"github.com/jbctechsolutions/yardsync/internal/infrastructure/crypto"
	"github.com/jbctechsolutions/yardsync/internal/presentation/cli/output"
)

// InitResult holds the result of the init command for JSON output.
type InitResult struct {
	ConfigDir     string `json:"config_dir"`
	ConfigFile    string `json:"config_file"`
	RemoteEnabled bool   `json:"remote_enabled"`
	Initialized   bool   `json:"initialized"`
}

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize yardsync configuration",
		Long: `Initialize yardsync configuration interactively.

This command creates the ~/.yardsync/ directory and generates a
config.yaml file with your sync settings.

The initialization process will:
  • Create ~/.yardsync/ directory
  • Generate ~/.yardsync/config.yaml
  • Prompt for the Git repository the shared yard document lives in
  • Store the access token encrypted with a machine-derived key`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")

	return cmd
}

// prompter handles interactive user input.
type prompter struct {
	reader    *bufio.Reader
	formatter *output.Formatter
}

// newPrompter creates a new prompter.
func newPrompter(formatter *output.Formatter) *prompter {
	return &prompter{
		reader:    bufio.NewReader(os.Stdin),
		formatter: formatter,
	}
}

// prompt asks a question and returns the answer (or default if empty).
func (p *prompter) prompt(question, defaultValue string) (string, error) {
	if defaultValue != "" {
		p.formatter.Print("%s [%s]: ", question, defaultValue)
	} else {
		p.formatter.Print("%s: ", question)
	}

	answer, err := p.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return defaultValue, nil
	}
	return answer, nil
}

// promptSecret asks for sensitive input.
func (p *prompter) promptSecret(question string) (string, error) {
	p.formatter.Print("%s: ", question)

	answer, err := p.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	return strings.TrimSpace(answer), nil
}

// promptYesNo asks a yes/no question and returns true for yes.
func (p *prompter) promptYesNo(question string, defaultYes bool) (bool, error) {
	defaultStr := "[y/N]"
	if defaultYes {
		defaultStr = "[Y/n]"
	}

	p.formatter.Print("%s %s: ", question, defaultStr)

	answer, err := p.reader.ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("failed to read input: %w", err)
	}

	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "" {
		return defaultYes, nil
	}

	return answer == "y" || answer == "yes", nil
}

func runInit(force bool) error {
	format := output.FormatText
	if globalFlags.Output == "json" {
		format = output.FormatJSON
	}

	formatter := output.NewFormatter(
		output.WithFormat(format),
		output.WithColor(format != output.FormatJSON && output.IsColorSupported()),
	)

	loader, err := config.NewLoader("")
	if err != nil {
		return fmt.Errorf("could not create config loader: %w", err)
	}

	configDir := loader.ConfigDir()
	configFile := loader.DefaultConfigPath()

	// Check if already initialized
	if _, err := os.Stat(configFile); err == nil && !force {
		if format == output.FormatJSON {
			return formatter.JSON(InitResult{
				ConfigDir:   configDir,
				ConfigFile:  configFile,
				Initialized: false,
			})
		}
		formatter.Warning("Configuration already exists at %s", configFile)
		formatter.Info("Use --force to overwrite existing configuration")
		return nil
	}

	// For JSON output, skip interactive prompts and use defaults
	if format == output.FormatJSON {
		cfg := config.NewDefaultConfig()
		if err := loader.Save(cfg, configFile); err != nil {
			return err
		}
		return formatter.JSON(InitResult{
			ConfigDir:   configDir,
			ConfigFile:  configFile,
			Initialized: true,
		})
	}

	// Interactive setup
	formatter.Header("Yardsync Configuration")
	formatter.Println("")
	formatter.Info("This wizard will help you set up yardsync.")
	formatter.Println("")

	p := newPrompter(formatter)
	cfg := config.NewDefaultConfig()

	formatter.SubHeader("Remote Store")
	formatter.Println("")
	formatter.Println("%s", formatter.Dim("Yardsync keeps the shared yard document in a Git repository."))
	formatter.Println("%s", formatter.Dim("Skip this to run purely locally; you can re-run init later."))
	formatter.Println("")

	enableRemote, err := p.promptYesNo("Configure a remote store", true)
	if err != nil {
		return err
	}

	if enableRemote {
		owner, err := p.prompt("Repository owner", "")
		if err != nil {
			return err
		}
		repo, err := p.prompt("Repository name", "")
		if err != nil {
			return err
		}
		path, err := p.prompt("Document path in repository", "yard-data.json")
		if err != nil {
			return err
		}
		branch, err := p.prompt("Branch", "main")
		if err != nil {
			return err
		}

		formatter.Println("")
		formatter.Println("%s", formatter.Dim("The access token is stored encrypted in config.yaml"))
		token, err := p.promptSecret("Access token")
		if err != nil {
			return err
		}
		if token == "" {
			return fmt.Errorf("an access token is required for the remote store")
		}

		encryptor, err := crypto.NewEncryptor()
		if err != nil {
			return fmt.Errorf("failed to initialize encryption: %w", err)
		}
		encrypted, err := encryptor.Encrypt(token)
		if err != nil {
			return fmt.Errorf("failed to encrypt access token: %w", err)
		}

		cfg.Remote.Enabled = true
		cfg.Remote.Owner = owner
		cfg.Remote.Repo = repo
		cfg.Remote.Path = path
		cfg.Remote.Branch = branch
		cfg.Remote.TokenEncrypted = encrypted

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		// Verify the repository is reachable before saving
		testNow, err := p.promptYesNo("Test the connection now", true)
		if err != nil {
			return err
		}
		if testNow {
			spinner := output.NewSpinner("Checking remote store...")
			spinner.Start()

			client := github.NewClient(owner, repo, path, token, github.WithBranch(branch))
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			err := client.TestConnection(ctx)
			cancel()

			if err != nil {
				spinner.StopWithError(fmt.Sprintf("Connection failed: %v", err))
				keep, perr := p.promptYesNo("Save the configuration anyway", false)
				if perr != nil {
					return perr
				}
				if !keep {
					return fmt.Errorf("configuration not saved")
				}
			} else {
				spinner.StopWithSuccess("Remote store reachable")
			}
		}
	}

	formatter.Println("")

	if err := loader.Save(cfg, configFile); err != nil {
		return err
	}

	formatter.Println("")
	formatter.Success("Configuration initialized successfully!")
	formatter.Println("")
	formatter.Item("Config directory", configDir)
	formatter.Item("Config file", configFile)
	if cfg.Remote.Enabled {
		formatter.Item("Remote", cfg.Remote.Owner+"/"+cfg.Remote.Repo+"/"+cfg.Remote.Path)
	} else {
		formatter.Item("Remote", "disabled (local-only)")
	}
	formatter.Println("")
	formatter.Info("Run 'yardsync truck add' to record an incoming truck")
	formatter.Info("Run 'yardsync status' to check synchronization state")

	return nil
}
