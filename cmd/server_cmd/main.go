package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/TEENet-io/token-bridge/cmd"
)

func main() {
	v := viper.New()
	cmd.SetDefaults(v)

	// Tool to read environment variables
	v.AutomaticEnv()

	// Accessing an environment variable of configuration file location.
	// Without a file, the configuration comes from the environment only.
	_config_file := v.GetString(cmd.ENV_CONFIG_FILE_PATH)
	if _config_file != "" {
		fmt.Printf("Bridge server configuration file = %s\n", _config_file)

		// See if file exists
		if !cmd.FileExists(_config_file) {
			fmt.Printf("Bridge server configuration file not found: %s\n", _config_file)
			return
		}

		// Read from config file.
		v.SetConfigFile(_config_file)
		if err := v.ReadInConfig(); err != nil {
			fmt.Printf("Error reading configuration file, %s\n", err)
			return
		}
	}

	// Make the configuration
	bsc, err := cmd.PrepareBridgeServerConfig(v)
	if err != nil {
		fmt.Printf("Error loading bridge server configuration: %s\n", err)
		return
	}

	fmt.Println("Starting bridge server... press Ctrl+C to kill the server")
	// Start server and block.
	cmd.StartBridgeServerAndWait(bsc)
}
