package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blacktop/bindump"
	"github.com/blacktop/bindump/internal/colors"
)

var (
	cfgFile string
	// Verbose boolean flag for verbose logging
	Verbose bool
	// AppVersion stores the build version
	AppVersion string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "bindump <file>",
	Short:         "Decode the structure of Mach-O, universal, ELF and PE binaries",
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetBool("verbose") {
			log.SetLevel(log.DebugLevel)
		}
		if viper.IsSet("color") {
			c := viper.GetBool("color")
			colors.Init(&c)
		}

		var opts []bindump.Option
		if viper.GetBool("strict") {
			opts = append(opts, bindump.WithStrict())
		}
		if n := viper.GetInt("parallel"); n > 1 {
			opts = append(opts, bindump.WithParallel(n))
		}
		return dump(cmd.OutOrStdout(), args[0], opts...)
	},
}

func dump(w io.Writer, path string, opts ...bindump.Option) error {
	dat, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}
	obj, err := bindump.Decode(dat, opts...)
	if err != nil {
		return errors.Wrapf(err, "failed to decode %s", path)
	}

	fmt.Fprintln(w, colors.BoldCyan().Sprintf("%s: %s", filepath.Base(path), obj.Format()))
	fmt.Fprint(w, obj.String())
	if warns := obj.Warnings(); len(warns) > 0 {
		fmt.Fprintln(w, colors.Bold().Sprintf("\nWarnings (%d):", len(warns)))
		for _, warn := range warns {
			fmt.Fprintln(w, colors.Yellow().Sprintf("  - %v", warn))
		}
	}
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	log.SetHandler(clihander.Default)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/bindump/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&Verbose, "verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().Bool("color", false, "colorize output")
	rootCmd.Flags().Bool("strict", false, "treat structural warnings as errors")
	rootCmd.Flags().IntP("parallel", "p", 0, "decode up to N universal slices concurrently")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("color", rootCmd.PersistentFlags().Lookup("color"))
	viper.BindPFlag("strict", rootCmd.Flags().Lookup("strict"))
	viper.BindPFlag("parallel", rootCmd.Flags().Lookup("parallel"))
	viper.BindEnv("color", "CLICOLOR")

	rootCmd.Version = AppVersion
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(filepath.Join(home, ".config", "bindump"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("bindump")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}
}
