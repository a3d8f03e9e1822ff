package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"janouch.name/qlusb/imgutil"
	"janouch.name/qlusb/label"
	"janouch.name/qlusb/ql"
)

var modelName = flag.String("model", "QL-800", "printer model")
var serial = flag.String("serial", "", "printer serial number")
var mediaName = flag.String("media", "62", "media, e.g. 62 or 29x90")
var verbose = flag.Bool("verbose", false, "trace wire traffic")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -serial SERIAL TEXT...\n",
			os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()
	if *serial == "" || flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	model, err := ql.ParseModel(*modelName)
	if err != nil {
		log.Fatalln(err)
	}
	media, err := ql.ParseMedia(*mediaName)
	if err != nil {
		log.Fatalln(err)
	}

	var pages []ql.Matrix
	for _, text := range flag.Args() {
		img, err := label.GenQRLabel(text, media)
		if err != nil {
			log.Fatalln(err)
		}
		m, err := imgutil.Rasterize(img, media, model)
		if err != nil {
			log.Fatalln(err)
		}
		pages = append(pages, m)
	}

	printer, err := ql.Open(ql.Config{
		Model:         model,
		Serial:        *serial,
		Media:         media,
		CutAtEnd:      true,
		EnableAutoCut: 1,
		Logger:        log,
	})
	if err != nil {
		log.Fatalln(err)
	}
	defer printer.Close()

	if err := printer.Print(ql.Pages(pages...)); err != nil {
		log.Fatalln(err)
	}
}
