package main

import (
	"strings"

	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

// EnvReplacer replaces `-` to `_`.
// This is used to map flag like `--my-param` to environment variables like `MY_PARAM`.
var envReplacer = strings.NewReplacer("-", "_")

func init() {
	viper.SetEnvPrefix("FLOWERBOXD")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(envReplacer)
}

// flagOrEnv returns the flag value when explicitly set, otherwise the
// FLOWERBOXD_ prefixed env var, otherwise the flag default.
func flagOrEnv(ctx *cli.Context, name string) string {
	if ctx.IsSet(name) {
		return ctx.String(name)
	}
	if value := viper.GetString(name); value != "" {
		return value
	}
	return ctx.String(name)
}
