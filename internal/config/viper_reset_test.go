package config

import "github.com/spf13/viper"

// viperReset clears viper's global state between tests since LoadConfig
// configures the package-level viper singleton.
func viperReset(t interface{ Helper() }) {
	t.Helper()
	viper.Reset()
}
