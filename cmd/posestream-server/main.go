// @title Pose Stream Server API
// @version 1.0.0
// @description Real-time human pose detection over websocket and HTTP.
// @host localhost:8000
// @BasePath /api
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"pose-stream-server-go/internal/bootstrap"
)

func main() {
	fmt.Printf("[%s] [INFO] [Bootstrap] starting pose-stream-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "pose-stream-server failed: %v\n", err)
		os.Exit(1)
	}
}
