// Copyright 2026 CleverData
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"

	"github.com/cleverdata/photo-uploader/internal/config"
	"github.com/cleverdata/photo-uploader/internal/core"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultEnvFile = ".env"

var envFile string
var forgetFile string
var Version = "0.1.0" // Default version

// rootCmd is the only command; it runs the watcher in the foreground.
var rootCmd = &cobra.Command{
	Use:   "photo-uploader",
	Short: "Watch a folder and upload new Lightroom exports",
	Long: `Watches a folder for newly exported JPEG and HEIC files, uploads each one
through the signed upload API, registers its metadata in an album and moves
the file into the uploaded folder.

Settings come from the environment (API_BASE_URL, API_TOKEN, WATCH_FOLDER,
UPLOADED_FOLDER, ALBUM_SLUG), optionally from a .env file. Files already in
the watch folder at startup are not uploaded.`,
	Example:       `  photo-uploader --album iceland-2024 --alt "Photo by CleverData"`,
	Version:       Version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		return RunAgent(cfg)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().String("album", "", "Override the album slug from the environment")
	rootCmd.Flags().String("alt", "", "Default alt text applied to every upload (empty sends alt as null)")
	rootCmd.Flags().StringVar(&envFile, "env-file", defaultEnvFile, "dotenv file to read settings from")
	rootCmd.Flags().StringVar(&forgetFile, "forget", "", "Clear the upload history of this file name before watching (requires HISTORY_DB)")
	rootCmd.Flags().BoolVar(&core.DebugMode, "debug", false, "Log every pipeline step")
}

// initConfig binds env vars and flags, then reads the dotenv file if present.
// Real environment variables win over the file, flags win over both.
func initConfig(cmd *cobra.Command) error {
	v := viper.GetViper()
	if err := config.Bind(v); err != nil {
		return err
	}
	if err := v.BindPFlag("album_slug", cmd.Flags().Lookup("album")); err != nil {
		return err
	}
	if err := v.BindPFlag("alt_text", cmd.Flags().Lookup("alt")); err != nil {
		return err
	}

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) && !cmd.Flags().Changed("env-file") {
			return nil
		}
		return fmt.Errorf("%w: env file %s: %v", config.ErrInvalid, envFile, err)
	}

	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read %s: %v", config.ErrInvalid, envFile, err)
	}
	return nil
}
