package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zanphear/planview/internal/db"
	"github.com/zanphear/planview/internal/logger"
)

func main() {
	apply := flag.Bool("apply", false, "apply migration")
	dir := flag.String("dir", filepath.Join("internal", "migrations"), "migrations directory")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL not set")
	}

	pool := db.Connect(dsn)
	defer pool.Close()

	files, err := os.ReadDir(*dir)
	if err != nil {
		logger.Fatal("read migrations dir", "dir", *dir, "error", err)
	}
	var names []string
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".sql") {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if !*apply {
			fmt.Println(name)
			continue
		}
		b, err := os.ReadFile(filepath.Join(*dir, name))
		if err != nil {
			logger.Fatal("read migration", "file", name, "error", err)
		}
		if _, err := pool.Exec(context.Background(), string(b)); err != nil {
			logger.Fatal("failed to apply migration", "file", name, "error", err)
		}
		fmt.Printf("applied %s\n", name)
	}
}
