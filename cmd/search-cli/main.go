package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/vibarr/vibarr/pkg/relevance"
)

// release is the subset of an indexer result dump this tool scores. Field
// names match Prowlarr's search response, so a saved API reply feeds
// straight in.
type release struct {
	Title   string `json:"title"`
	Indexer string `json:"indexer"`
	Size    int64  `json:"size"`
	Seeders int    `json:"seeders"`
}

type scored struct {
	Release release         `json:"release"`
	Score   relevance.Score `json:"score"`
}

func main() {
	var (
		artist     = flag.String("artist", "", "wanted artist")
		album      = flag.String("album", "", "wanted album")
		format     = flag.String("format", "", "preferred format (flac-24, flac, 320, v0, ...)")
		minOverlap = flag.Float64("min-overlap", 0.6, "text relevance gate threshold")
		file       = flag.String("file", "-", "results JSON file, - for stdin")
		asJSON     = flag.Bool("json", false, "emit the scored breakdown as JSON")
	)
	flag.Parse()

	if *artist == "" || *album == "" {
		log.Fatal("both -artist and -album are required")
	}

	in := os.Stdin
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			log.Fatalf("Error opening %s: %v", *file, err)
		}
		defer f.Close()
		in = f
	}

	var releases []release
	if err := json.NewDecoder(in).Decode(&releases); err != nil {
		log.Fatalf("Error decoding results: %v", err)
	}

	scores := make([]relevance.Score, len(releases))
	for i, r := range releases {
		scores[i] = relevance.ScoreRelease(*artist, *album, *format, r.Title, r.Seeders, r.Size, *minOverlap)
	}

	// Same order the download pipeline uses: gate-passing results first,
	// then by total score.
	out := make([]scored, 0, len(releases))
	for _, i := range relevance.Ranked(scores) {
		out = append(out, scored{Release: releases[i], Score: scores[i]})
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "\t")
		enc.Encode(out)
		return
	}

	pass := color.New(color.FgGreen).SprintFunc()
	skip := color.New(color.FgRed).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	for i, s := range out {
		verdict := pass("PASS")
		if !s.Score.PassesTextRelevance {
			verdict = skip("SKIP")
		}
		quality := s.Score.Quality
		if quality == "" {
			quality = "?"
		}
		fmt.Printf("%3d. [%s] %6.1f  %s\n", i+1, verdict, s.Score.Total, s.Release.Title)
		fmt.Printf("       %s\n", dim(fmt.Sprintf(
			"title %.1f · format %.1f (%s) · seeders %.1f (%d) · size %.1f (%s) · overlap %.2f · %s",
			s.Score.Title, s.Score.Format, quality,
			s.Score.Seeders, s.Release.Seeders,
			s.Score.SizeSanity, humanize.IBytes(uint64(s.Release.Size)),
			s.Score.OverlapRatio, s.Release.Indexer)))
	}
}
