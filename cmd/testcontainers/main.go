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
	"github.com/saldanamusic/splitsheets/internal/testutil"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	var dbType string
	flag.StringVar(&dbType, "db", "", "database type (postgres, mysql, mariadb, sqlserver); defaults to DB_TYPE")
	flag.Parse()

	usage := `
Run a throwaway database container for the split sheet service and print the
DB_* variables that reach it.

Usage:

testcontainers [-h] [-f ENV_FILE_PATH] [-db DB_TYPE]

example
  testcontainers -db postgres
`
	if showHelp {
		fmt.Println(usage)
		return
	}

	if envFilename != "" {
		log.Printf("Loading environment variables from %s\n", envFilename)
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v\n", err)
		}
	}
	if dbType == "" {
		dbType = os.Getenv("DB_TYPE")
	}
	if dbType == "" || dbType == "sqlite" || dbType == "sqlite3" {
		dbType = "postgres"
	}

	ctx := context.Background()
	container, err := testutil.StartDatabase(ctx, dbType)
	if err != nil {
		log.Fatalf("Failed to start database container: %v\n", err)
	}

	cfg := container.Config
	fmt.Printf("DB_TYPE=%s\nDB_HOST=%s\nDB_PORT=%s\nDB_DATABASE=%s\nDB_USER=%s\nDB_PASSWORD=%s\n",
		cfg.DBType, cfg.DBHost, cfg.DBPort, cfg.DBDatabase, cfg.DBUser, cfg.DBPassword)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigs
	log.Printf("Received signal: %v, terminating database container...\n", sig)
	if err := container.Terminate(ctx); err != nil {
		log.Fatalf("Failed to terminate container: %v\n", err)
	}
}
