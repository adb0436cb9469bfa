package main

import (
	"fmt"
	"os"

	"autoeval/internal/config"
	"autoeval/internal/logging"

	"github.com/spf13/cobra"
)

// configCmd inspects and edits the config file
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or edit the configuration",
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	Args:  cobra.NoArgs,
	RunE:  configInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (file plus AUTOEVAL_* overrides)",
	Args:  cobra.NoArgs,
	RunE:  configShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set key=value...",
	Short: "Change automation settings in the config file",
	Long: `Applies one or more key=value automation settings to the config file.
Durations use Go syntax (1500ms, 3s); text_pool entries are separated by '|'.
Raising a minimum above its maximum raises the maximum too.`,
	Example: `  autoeval config set quota_min=1 quota_max=2
  autoeval config set delay_min=2s delay_max=5s auto_submit=true`,
	Args: cobra.MinimumNArgs(1),
	RunE: configSet,
}

func registerConfigCommands() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")
	configSetCmd.Long += "\n\nKeys: " + fmt.Sprint(config.PatchKeys())

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func configInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}
	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}
	logging.Config("wrote default config to %s", configPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
	return nil
}

func configShow(cmd *cobra.Command, args []string) error {
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func configSet(cmd *cobra.Command, args []string) error {
	fileCfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}

	var patch config.AutomationPatch
	for _, a := range args {
		if err := config.ParseAssignment(&patch, a); err != nil {
			return err
		}
	}
	next, err := fileCfg.Automation.Apply(patch)
	if err != nil {
		return err
	}
	fileCfg.Automation = next
	if err := fileCfg.Save(configPath); err != nil {
		return err
	}

	logging.Config("updated %s: %v", configPath, args)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Updated %s\n", configPath)
	fmt.Fprintf(out, "  delay %v-%v, quota %d-%d, save x%d, multi=%v, auto-submit=%v\n",
		next.Delay.Min, next.Delay.Max, next.SecondaryQuota.Min, next.SecondaryQuota.Max,
		next.SaveRetryCount, next.AutoAdvanceEntities, next.AutoSubmit)
	return nil
}
