package main

import (
	"log"

	"github.com/m3rciful/chatbots/bots/gugubot"
	corecmd "github.com/m3rciful/chatbots/core/cmd"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "configs/gugubot.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return gugubot.LoadConfig(path)
		},
		Bootstrap: gugubot.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
