package main

import (
	"flag"
	"log"
	"time"

	"github.com/sleepstars/yuanbao2api/internal/logger"
	"github.com/sleepstars/yuanbao2api/internal/mockupstream"
)

func main() {
	port := flag.String("port", "8001", "Port to run the server on")
	delay := flag.Duration("delay", 50*time.Millisecond, "Pause between frames")
	stopReason := flag.String("stop-reason", "", "stopReason sent in the final meta frame")
	flag.Parse()

	logger.InitLogger(logger.DEBUG, "mockserver")

	r := mockupstream.NewRouter(mockupstream.Options{Delay: *delay, StopReason: *stopReason})
	// point upstream_base at http://localhost:<port>
	if err := r.Run(":" + *port); err != nil {
		log.Fatal(err)
	}
}
