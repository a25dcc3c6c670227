package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

// Usage: migrate [-path migrations] up | down [n] | version | force <v>
func main() {
	path := flag.String("path", "migrations", "directory holding the *.sql migrations")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("loading .env file: %v", err)
	}
	dsn := os.Getenv("DB_ADDR")
	if dsn == "" {
		log.Fatal("DB_ADDR must be set")
	}

	m, err := migrate.New("file://"+*path, dsn)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	defer m.Close()

	args := flag.Args()
	if len(args) == 0 {
		log.Fatal("missing command: up, down, version or force")
	}

	switch args[0] {
	case "up":
		err = m.Up()
	case "down":
		if len(args) > 1 {
			n, convErr := strconv.Atoi(args[1])
			if convErr != nil || n <= 0 {
				log.Fatalf("invalid step count %q", args[1])
			}
			err = m.Steps(-n)
		} else {
			err = m.Down()
		}
	case "version":
		v, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			log.Fatal(verr)
		}
		log.Printf("version %d (dirty: %v)", v, dirty)
		return
	case "force":
		if len(args) < 2 {
			log.Fatal("force needs a version")
		}
		v, convErr := strconv.Atoi(args[1])
		if convErr != nil {
			log.Fatalf("invalid version %q", args[1])
		}
		err = m.Force(v)
	default:
		log.Fatalf("unknown command %q", args[0])
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("%s: %v", args[0], err)
	}
	log.Printf("%s: ok", args[0])
}
