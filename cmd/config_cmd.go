package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spendcap/spendcap/internal/cli"
	"github.com/spendcap/spendcap/internal/store"
)

// configKeys maps each runtime key to the type its value is parsed as.
var configKeys = map[string]string{
	store.KeyMaxCost:     "float",
	store.KeyMaxTokens:   "int",
	store.KeyExitAtLimit: "bool",
	store.KeyShowCost:    "bool",
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage runtime limit settings",
	RunE:  runConfigList,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show all settings",
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

func init() {
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}

func knownKey(key string) error {
	if _, ok := configKeys[key]; !ok {
		keys := make([]string, 0, len(configKeys))
		for k := range configKeys {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Errorf("unknown key %q (valid: %v)", key, keys)
	}
	return nil
}

func runConfigList(_ *cobra.Command, _ []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	entries, err := db.ConfigEntries()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		value, ok := entries[k]
		if !ok {
			value = "(unset)"
		}
		rows = append(rows, []string{k, value})
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "SETTINGS",
		Headers: []string{"Key", "Value"},
		Rows:    rows,
	}))
	return nil
}

func runConfigGet(_ *cobra.Command, args []string) error {
	key := args[0]
	if err := knownKey(key); err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	entries, err := db.ConfigEntries()
	if err != nil {
		return err
	}
	value, ok := entries[key]
	if !ok {
		fmt.Printf("  %s is unset\n", key)
		return nil
	}
	fmt.Printf("  %s = %s\n", key, value)
	return nil
}

func runConfigSet(_ *cobra.Command, args []string) error {
	key, raw := args[0], args[1]
	if err := knownKey(key); err != nil {
		return err
	}

	value, err := parseConfigValue(key, raw)
	if err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.Set(key, value); err != nil {
		return err
	}
	fmt.Printf("  %s = %v\n", key, value)
	return nil
}

func runConfigUnset(_ *cobra.Command, args []string) error {
	key := args[0]
	if err := knownKey(key); err != nil {
		return err
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.Unset(key); err != nil {
		return err
	}
	fmt.Printf("  %s unset\n", key)
	return nil
}

// parseConfigValue coerces the raw string to the key's declared type.
func parseConfigValue(key, raw string) (any, error) {
	switch configKeys[key] {
	case "float":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number: %w", key, err)
		}
		return v, nil
	case "int":
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer: %w", key, err)
		}
		return v, nil
	case "bool":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false: %w", key, err)
		}
		return v, nil
	default:
		return raw, nil
	}
}
