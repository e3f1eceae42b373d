package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/starfall-project/authcore/internal/authctl"
)

func main() {

	addr := flag.String("addr", "http://localhost:8080", "auth server base URL")
	adminToken := flag.String("k", os.Getenv("AUTHCTL_ADMIN_TOKEN"), "admin bearer token")
	flag.Parse()

	app := authctl.NewApp(*addr, *adminToken, os.Stdin, os.Stdout)

	if err := app.Run(context.Background(), flag.Arg(0)); err != nil {
		log.Fatalf("%v", err)
	}

}
