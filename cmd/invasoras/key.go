package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"invasoras/pkg/auth"
)

// keyCmd represents the key command
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the relay API key",
	Long: `Manage the ScraperAPI key used to fetch occurrence pages.

Keys are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - INVASORAS_API_KEY environment variable (read-only)`,
}

var keySetCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Store the relay API key securely",
	Example: `  # Store the default key
  invasoras key set

  # Store a second key under its own name
  invasoras key set backup`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKeySet,
}

var keyShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show the stored API key, masked",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runKeyShow,
}

var keyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored API keys, masked",
	Args:  cobra.NoArgs,
	RunE:  runKeyList,
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Remove a stored API key",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runKeyDelete,
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keySetCmd)
	keyCmd.AddCommand(keyShowCmd)
	keyCmd.AddCommand(keyListCmd)
	keyCmd.AddCommand(keyDeleteCmd)
}

func keyName(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0])
	}
	return auth.DefaultKeyName
}

func runKeySet(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize key store: %w", err)
	}

	name := keyName(args)

	auth.ShowKeyGuide(os.Stdout)
	fmt.Printf("API key for %q (hidden): ", name)

	value, err := readPassword()
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}

	if err := manager.Store(name, value); err != nil {
		return err
	}

	printer.Success(fmt.Sprintf("API key %q stored", name))
	return nil
}

func runKeyShow(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize key store: %w", err)
	}

	name := keyName(args)
	value, err := manager.Retrieve(name)
	if err != nil {
		return err
	}

	printer.Info(name, auth.MaskKey(value))
	return nil
}

func runKeyList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize key store: %w", err)
	}

	keys, err := manager.List()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		printer.Warning("No API keys stored. Run 'invasoras key set' to add one.")
		return nil
	}

	for _, key := range keys {
		printer.Info(key.Name, fmt.Sprintf("%s (updated %s)", auth.MaskKey(key.Value), key.LastModified.Format("2006-01-02 15:04")))
	}
	return nil
}

func runKeyDelete(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize key store: %w", err)
	}

	name := keyName(args)
	if err := manager.Delete(name); err != nil {
		return err
	}

	printer.Success(fmt.Sprintf("API key %q deleted", name))
	return nil
}

// readPassword reads a line without echo when stdin is a terminal
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(password)), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
