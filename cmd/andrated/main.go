package main

import (
	"flag"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file (default: discovered)")
	envFile := flag.String("env", ".env", "Environment file to load before reading config")
	initConfig := flag.Bool("init", false, "Write a default config file and exit")
	printConfig := flag.Bool("show-config", false, "Print the effective config (credentials masked) and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("andrated %s\n", version)
		os.Exit(0)
	}

	if *initConfig {
		path, err := writeDefaultConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", path)
		os.Exit(0)
	}

	if *printConfig {
		if err := showConfig(os.Stdout, *configPath, *envFile); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := runServer(*configPath, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
