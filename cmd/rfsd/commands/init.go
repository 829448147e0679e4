package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/openrfs/rfsd/internal/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample rfsd configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/rfsd/config.yaml.
Use --config to specify a custom path.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()
	configPath := configFile
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if !initForce {
		if _, statErr := os.Stat(configPath); statErr == nil {
			overwrite, promptErr := confirmOverwrite(configPath)
			if promptErr != nil {
				return promptErr
			}
			if !overwrite {
				fmt.Println("Aborted.")
				return nil
			}
			initForce = true
		}
	}

	var err error
	if configFile != "" {
		configPath, err = config.InitConfigToPath(configFile, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: rfsd start")
	fmt.Printf("  3. Or specify custom config: rfsd start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  For production, generate a secure session-signing secret and set it via:")
	fmt.Printf("    export %s=$(openssl rand -hex 32)\n", config.EnvAdminSecret)

	return nil
}

// confirmOverwrite asks the user whether to overwrite an existing config
// file at path, defaulting to no.
func confirmOverwrite(path string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Configuration file already exists at %s. Overwrite", path),
		IsConfirm: true,
	}

	result, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrAbort {
			return false, nil
		}
		if err == promptui.ErrInterrupt {
			return false, nil
		}
		return false, err
	}

	return strings.ToLower(result) == "y" || strings.ToLower(result) == "yes", nil
}
