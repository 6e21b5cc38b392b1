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
		fmt.Println("usage: sender <emulator_addr> <emulator_port> <ack_port> <filename>")
		os.Exit(1)
	}
	emuPort, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Printf("invalid emulator port: %s\n", args[1])
		os.Exit(1)
	}
	ackPort, err := strconv.Atoi(args[2])
	if err != nil {
		fmt.Printf("invalid ack port: %s\n", args[2])
		os.Exit(1)
	}

	s, err := transport.NewSender(args[0], emuPort, ackPort, args[3])
	if err != nil {
		fmt.Printf("sender setup failed: %v\n", err)
		os.Exit(1)
	}
	if err := s.Run(context.Background()); err != nil {
		fmt.Printf("transfer failed: %v\n", err)
		os.Exit(1)
	}
}
