package main

import (
	"log"

	"github.com/m3rciful/chatbots/bots/vilabot"
	corecmd "github.com/m3rciful/chatbots/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "configs/vilabot.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return vilabot.LoadConfig(path)
		},
		Bootstrap: vilabot.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
