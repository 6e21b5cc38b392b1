package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"netlab/config"
	"netlab/transport"
	"netlab/utils"
)

func main() {
	conf := flag.String("config", "", "Path to config file")
	flag.Parse()

	if *conf != "" {
		if err := config.Reload(*conf); err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	defer utils.Logger.Sync()
	defer utils.CloseTraces()

	args := flag.Args()
	if len(args) != 4 {
		fmt.Println("usage: receiver <emulator_addr> <emulator_port> <in_port> <filename>")
		os.Exit(1)
	}
	emuPort, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Printf("invalid emulator port: %s\n", args[1])
		os.Exit(1)
	}
	inPort, err := strconv.Atoi(args[2])
	if err != nil {
		fmt.Printf("invalid in port: %s\n", args[2])
		os.Exit(1)
	}

	r, err := transport.NewReceiver(args[0], emuPort, inPort, args[3])
	if err != nil {
		fmt.Printf("receiver setup failed: %v\n", err)
		os.Exit(1)
	}
	if err := r.Run(context.Background()); err != nil {
		fmt.Printf("receive failed: %v\n", err)
		os.Exit(1)
	}
}
