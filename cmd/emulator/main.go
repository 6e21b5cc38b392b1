package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
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

	args := flag.Args()
	if len(args) != 3 {
		fmt.Println("usage: emulator <bind_addr> <port> <topology.json>")
		os.Exit(1)
	}
	port, err := strconv.Atoi(args[1])
	if err != nil || port < 0 || port > 65535 {
		fmt.Printf("invalid port: %s\n", args[1])
		os.Exit(1)
	}

	buf, err := ioutil.ReadFile(args[2])
	if err != nil {
		fmt.Printf("failed to read topology: %v\n", err)
		os.Exit(1)
	}
	topo, err := routing.ParseTopology(buf)
	if err != nil {
		fmt.Printf("bad topology: %v\n", err)
		os.Exit(1)
	}

	e := routing.NewEmulator(args[0], port, topo)
	if err := e.Run(context.Background()); err != nil {
		fmt.Printf("emulator failed: %v\n", err)
		os.Exit(1)
	}
}
