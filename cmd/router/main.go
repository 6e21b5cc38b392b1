package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"netlab/config"
	"netlab/routing"
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
	if len(args) != 3 {
		fmt.Println("usage: router <emulator_addr> <emulator_port> <router_id>")
		os.Exit(1)
	}
	emuPort, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Printf("invalid emulator port: %s\n", args[1])
		os.Exit(1)
	}
	id, err := strconv.Atoi(args[2])
	if err != nil || id < 1 {
		fmt.Printf("invalid router id: %s\n", args[2])
		os.Exit(1)
	}

	vr, err := routing.NewVirtualRouter(args[0], emuPort, int32(id))
	if err != nil {
		fmt.Printf("router setup failed: %v\n", err)
		os.Exit(1)
	}
	if err := vr.Run(context.Background()); err != nil {
		fmt.Printf("router failed: %v\n", err)
		os.Exit(1)
	}
}
