package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	simio "github.com/simio-dev/simio"
	"github.com/simio-dev/simio/apicheck"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	switch sub {
	case "describe":
		describeCmd(os.Args[2:])
	case "diff":
		diffCmd(os.Args[2:])
	case "snapshot":
		snapshotCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "simio CLI\n\nUsage:\n  simio describe -live api.json\n  simio diff -ref ref.yaml|ref.json -live live.json [-methods]\n  simio snapshot -file state.json")
}

func logger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// describeCmd summarizes a harvested API description document.
func describeCmd(args []string) {
	fs := flag.NewFlagSet("describe", flag.ExitOnError)
	var live string
	fs.StringVar(&live, "live", "", "live API description document (JSON)")
	_ = fs.Parse(args)
	if live == "" {
		fs.Usage()
		os.Exit(2)
	}
	doc := loadDoc(live)

	ids := make([]string, 0, len(doc.Elements))
	for id := range doc.Elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		meta := simio.MetadataFromMap(doc.Elements[id].Metadata)
		flags := ""
		if meta.DynamicElement {
			flags += " dynamic"
		}
		if meta.Archetype {
			flags += " archetype"
		}
		if meta.State {
			flags += " state"
		}
		fmt.Printf("%s  %s%s\n", id, meta.TypeName, flags)
	}
	fmt.Printf("%d elements, %d types\n", len(doc.Elements), len(doc.Types))
}

// diffCmd runs the reference-vs-live rules over two documents and exits
// non-zero when any violation is found.
func diffCmd(args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	var refPath, livePath string
	var methods bool
	fs.StringVar(&refPath, "ref", "", "frozen reference document (JSON or YAML)")
	fs.StringVar(&livePath, "live", "", "live API description document (JSON)")
	fs.BoolVar(&methods, "methods", false, "also compare type method signatures")
	_ = fs.Parse(args)
	if refPath == "" || livePath == "" {
		fs.Usage()
		os.Exit(2)
	}
	ref := loadDoc(refPath)
	live := loadDoc(livePath)

	violations := apicheck.DiffDocs(ref, live, apicheck.Options{CompareMethods: methods})
	log := logger()
	for _, iss := range violations {
		log.Error().
			Str("rule", iss.Code).
			Str("path", iss.Path).
			Msg(iss.Message)
	}
	if len(violations) > 0 {
		log.Error().Int("violations", len(violations)).Msg("live API diverges from the reference")
		os.Exit(1)
	}
	log.Info().Msg("live API matches the reference")
}

// snapshotCmd verifies that every entry of a full-state snapshot is JSON-safe.
func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	var file string
	fs.StringVar(&file, "file", "", "full-state snapshot (JSON map of identifier to state)")
	_ = fs.Parse(args)
	if file == "" {
		fs.Usage()
		os.Exit(2)
	}
	f, err := os.Open(file)
	if err != nil {
		fatalf("open snapshot: %v", err)
	}
	defer f.Close()
	var full simio.FullState
	if err := json.NewDecoder(f).Decode(&full); err != nil {
		fatalf("decode snapshot: %v", err)
	}

	log := logger()
	ids := make([]string, 0, len(full))
	for id := range full {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	bad := 0
	for _, id := range ids {
		if err := simio.CheckJSONSafe(full[id]); err != nil {
			bad++
			log.Error().Str("path", id).Msg("state entry is not JSON-safe")
		}
	}
	if bad > 0 {
		log.Error().Int("entries", bad).Msg("snapshot contains unsafe state")
		os.Exit(1)
	}
	log.Info().Int("entries", len(full)).Msg("snapshot is JSON-safe")
}

func loadDoc(path string) *simio.Doc {
	f, err := os.Open(path)
	if err != nil {
		fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	ext := strings.ToLower(filepath.Ext(path))
	var doc *simio.Doc
	if ext == ".yaml" || ext == ".yml" {
		doc, err = apicheck.LoadYAML(f)
	} else {
		doc, err = apicheck.LoadJSON(f)
	}
	if err != nil {
		fatalf("load %s: %v", path, err)
	}
	return doc
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
