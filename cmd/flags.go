package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// enumValue is a string flag restricted to a fixed set of choices.
type enumValue struct {
	value   string
	choices []string
}

var _ pflag.Value = (*enumValue)(nil)

func newEnumValue(def string, choices ...string) *enumValue {
	return &enumValue{value: def, choices: choices}
}

func (e *enumValue) String() string { return e.value }

func (e *enumValue) Set(v string) error {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, c := range e.choices {
		if v == c {
			e.value = v
			return nil
		}
	}
	return fmt.Errorf("must be one of %s", strings.Join(e.choices, ", "))
}

func (e *enumValue) Type() string { return "string" }

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if err := v.validator(val); err != nil {
		return err
	}
	return v.Value.Set(val)
}

// addValidation wraps the named flag so that values are checked on Set.
func addValidation(cmd *cobra.Command, name string, validator func(string) error) {
	flag := cmd.Flags().Lookup(name)
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

// ValidatePort accepts 0 (any free port) through 65535.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", port)
	}
	return nil
}
