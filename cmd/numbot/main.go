package main

import (
	"log"

	"github.com/m3rciful/numbot/bot/numbers"
	"github.com/m3rciful/numbot/core/cmd"
)

func main() {
	if err := cmd.Run(cmd.Options{
		DefaultConfigPath: "config.yaml",
		Bootstrap:         numbers.Bootstrap,
	}); err != nil {
		log.Fatal(err)
	}
}
