package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/openlms/docsubmit/tests/helpers"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	flag.Parse()

	usage := `
Run a docsubmit development database container with the environment
variables from the .env file.

Usage:

testcontainers [-h] [-f ENV_FILE_PATH]

ENV_FILE_PATH: path to the .env file

example
  testcontainers -f /path/to/something/.env
`
	// if -h flag print usage and return
	if showHelp {
		fmt.Println(usage)
		return
	}

	if envFilename != "" {
		log.Printf("Loading environment variables from %s\n", envFilename)
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v\n", err)
		}
	} else {
		log.Printf("No environment file specified, using current environment variables\n")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGTSTP, syscall.SIGQUIT)

	ctx := context.Background()

	var mariadb *helpers.MariaDBContainer
	go func() {
		var err error
		mariadb, err = helpers.StartMariaDB(ctx)
		if err != nil {
			log.Fatalf("Failed to start database container: %v\n", err)
		}
		log.Printf("Database ready at %s:%s\n", mariadb.Host, mariadb.Port)
	}()

	sig := <-sigs
	log.Printf("\nReceived signal: %v, terminating database container...\n", sig)
	if mariadb != nil {
		if err := mariadb.Terminate(ctx); err != nil {
			log.Printf("Failed to terminate database container: %v\n", err)
		}
	}
}
