package main

import (
	"fmt"
	"os"

	"github.com/sleepstars/yuanbao2api/internal/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
