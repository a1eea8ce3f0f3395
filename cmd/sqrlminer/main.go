package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/NextDesignSolutions/ethminer-sqrl/miner"
	"github.com/NextDesignSolutions/ethminer-sqrl/types"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const version = "0.3.1"

var mainCmd = &cobra.Command{
	Use:   "sqrlminer",
	Short: "Ethash miner for SQRL TCP FPGAs",
	Long:  `Ethash miner for SQRL TCP FPGAs`,
	Run: func(cmd *cobra.Command, args []string) {
		mine()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

var mainminer = &miner.Miner{}

func init() {
	mainCmd.AddCommand(versionCmd)

	viper.SetDefault("hosts", []string{"127.0.0.1:2000"})
	viper.SetDefault("axitimeoutms", "2000")
	viper.SetDefault("workdelay", "100000")
	viper.SetDefault("patience", "0")
	viper.SetDefault("intensityn", "0")
	viper.SetDefault("intensityd", "1")
	viper.SetDefault("dagmixers", "8")
	viper.SetDefault("forcedag", "false")
	viper.SetDefault("skipdag", "false")
	viper.SetDefault("skipstalldetection", "false")
	viper.SetDefault("dieonerror", "false")
	viper.SetDefault("showhbmstats", "false")
	viper.SetDefault("targetclk", "0")
	viper.SetDefault("tunefile", "sqrl.tune")
	viper.SetDefault("autotune", "0")
	viper.SetDefault("fkvccint", "0")
	viper.SetDefault("jcvccint", "0")
	viper.SetDefault("api-service", "true")
	viper.SetDefault("api-listen", "0.0.0.0:1234")
	viper.SetDefault("debug", "info")

	pflag.String("cfg", "sqrlminer.json", "config file path")
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	fullcfgname := viper.GetString("cfg")

	log.Print("Config file: ", fullcfgname)
	cfgname := strings.TrimSuffix(fullcfgname, filepath.Ext(fullcfgname))
	if fullcfgname != "sqrlminer.json" {
		viper.SetConfigFile(fullcfgname)
	} else {
		viper.SetConfigName(cfgname)
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/sqrlminer")
	}

	err := viper.ReadInConfig()
	if err != nil {
		println("No config file found. Using built-in defaults.")
	}

	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)
		// Only the log level is safe to change while devices run.
		mainminer.SetLogLevel(viper.GetString("debug"))
	})
}

func main() {
	mainCmd.Execute()
}

func loadSettings() types.Settings {
	var settings types.Settings
	if err := viper.Unmarshal(&settings); err != nil {
		log.Fatal("Bad configuration: ", err)
	}
	return settings
}

func mine() {
	mainminer.Settings = loadSettings()
	mainminer.WebEnable = viper.GetBool("api-service")
	mainminer.WebListen = viper.GetString("api-listen")
	mainminer.LogLevel = viper.GetString("debug")

	if err := mainminer.MinerMain(); err != nil {
		log.Fatal(err)
	}
}
