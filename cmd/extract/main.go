package main

import (
	"context"
	"log"
	"os"

	"github.com/seanblong/siteanswer/internal/config"
	"github.com/seanblong/siteanswer/internal/indexer"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("siteanswer-extract", pflag.ExitOnError)
	out := fs.StringP("out", "o", "", "Write chunks to this file instead of stdout")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	root := cfg.StaticDir
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}
	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		log.Fatalf("site directory %q not found", root)
	}

	chunks, err := indexer.New(root, cfg.Sections).Run(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	path := *out
	if path == "" {
		path = cfg.ChunksFile
	}
	w := os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			log.Fatal(err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Printf("Failed to close %s: %v", path, err)
			}
		}()
		w = f
	}
	if err := indexer.WriteJSON(w, chunks); err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %d chunks", len(chunks))
}
