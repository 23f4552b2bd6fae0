package flags

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestUniqueFlags(t *testing.T) {
	seenCLI := make(map[string]struct{})
	for _, flag := range Flags {
		for _, name := range flag.Names() {
			if _, ok := seenCLI[name]; ok {
				t.Errorf("duplicate flag %v", name)
				continue
			}
			seenCLI[name] = struct{}{}
		}
	}
}

func TestEnvVarPrefix(t *testing.T) {
	for _, flag := range Flags {
		envFlag, ok := flag.(interface {
			GetEnvVars() []string
		})
		if !ok {
			continue
		}
		envVars := envFlag.GetEnvVars()
		require.Len(t, envVars, 1, "flag %v", flag.Names()[0])
		require.True(t, strings.HasPrefix(envVars[0], EnvVarPrefix+"_"), "flag %v env %v", flag.Names()[0], envVars[0])
	}
}

func TestHasRPCFlags(t *testing.T) {
	var names []string
	for _, flag := range Flags {
		names = append(names, flag.Names()...)
	}
	for _, want := range []string{"l1-rpc", "l2-rpc", "datadir", "private-key", "log.level", "metrics.enabled"} {
		require.True(t, slices.Contains(names, want), "missing flag %v", want)
	}
}

func TestCheckRequired(t *testing.T) {
	app := cli.NewApp()
	app.Flags = Flags
	app.Action = CheckRequired
	require.NoError(t, app.Run([]string{"bag-bridge"}))
}
