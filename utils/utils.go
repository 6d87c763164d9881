package utils

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"sigs.k8s.io/yaml"

	"github.com/datazip-inc/kinspect/constants"
	"github.com/datazip-inc/kinspect/crypto"
)

func Ternary(cond bool, a, b any) any {
	if cond {
		return a
	}
	return b
}

// SplitAndTrim splits a comma separated list and drops empty items.
func SplitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func IsValidSubcommand(available []*cobra.Command, cmd string) bool {
	for _, s := range available {
		if cmd == s.Name() || cmd == "help" {
			return true
		}
		for _, alias := range s.Aliases {
			if cmd == alias {
				return true
			}
		}
	}
	return false
}

func CheckIfFilesExists(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			return fmt.Errorf("%s does not exist: %s", file, err)
		}
	}
	return nil
}

// UnmarshalFile reads a YAML or JSON file into dest. When an encryption key
// is configured the file is expected to hold an encrypted envelope.
func UnmarshalFile(file string, dest any) error {
	if err := CheckIfFilesExists(file); err != nil {
		return err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("file not found : %s", err)
	}

	if viper.GetString(constants.EncryptionKey) != "" {
		decrypted, err := crypto.DecryptJSONString(string(data))
		if err != nil {
			return fmt.Errorf("failed to decrypt %s: %s", file, err)
		}
		data = []byte(decrypted)
	}

	if err := yaml.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal file[%s]: %s", file, err)
	}
	return nil
}
