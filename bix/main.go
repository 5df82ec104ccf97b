package main

import (
	"os"

	"github.com/caresuite/bix-app/bix/bixcli"
	"github.com/caresuite/bix-app/log"
)

func main() {
	if err := bixcli.GetApp().Run(os.Args); err != nil {
		log.API.Fatal(err)
	}
}
