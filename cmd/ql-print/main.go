package main

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"janouch.name/qlusb/imgutil"
	"janouch.name/qlusb/ql"
)

var modelName = flag.String("model", "QL-800", "printer model")
var serial = flag.String("serial", "", "printer serial number")
var mediaName = flag.String("media", "62", "media, e.g. 62 or 29x90")
var scale = flag.Int("scale", 1, "integer upscaling")
var rotate = flag.Bool("rotate", false, "print sideways")
var twoColor = flag.Bool("two-color", false, "use black/red printing")
var highRes = flag.Bool("hires", false, "double the vertical density")
var cutEvery = flag.Int("cut-every", 1, "cut every N labels, 0 disables")
var verbose = flag.Bool("verbose", false, "trace wire traffic")

// loadImage decodes and transforms one argument.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	if *scale > 1 {
		img = &imgutil.Scale{Image: img, Scale: *scale}
	}
	if *rotate {
		img = &imgutil.LeftRotate{Image: img}
	}
	return img, nil
}

// filePages rasterizes the argument files one by one, so that a long
// queue of labels never sits in memory at once.
type filePages struct {
	paths []string
	media ql.Media
	model ql.Model
}

func (s *filePages) next() (image.Image, error) {
	if len(s.paths) == 0 {
		return nil, io.EOF
	}
	path := s.paths[0]
	s.paths = s.paths[1:]
	return loadImage(path)
}

func (s *filePages) NextPage() (ql.Matrix, error) {
	img, err := s.next()
	if err != nil {
		return nil, err
	}
	return imgutil.Rasterize(img, s.media, s.model)
}

type twoColorFilePages struct{ filePages }

func (s *twoColorFilePages) NextPage() (ql.TwoColorMatrix, error) {
	img, err := s.next()
	if err != nil {
		return ql.TwoColorMatrix{}, err
	}
	return imgutil.SplitTwoColor(img, s.media, s.model)
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -serial SERIAL IMAGE...\n",
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

	printer, err := ql.Open(ql.Config{
		Model:          model,
		Serial:         *serial,
		Media:          media,
		HighResolution: *highRes,
		CutAtEnd:       true,
		TwoColors:      *twoColor,
		EnableAutoCut:  *cutEvery,
		Logger:         log,
	})
	if err != nil {
		log.Fatalln(err)
	}
	defer printer.Close()

	pages := filePages{paths: flag.Args(), media: media, model: model}
	if *twoColor {
		err = printer.PrintTwoColor(&twoColorFilePages{pages})
	} else {
		err = printer.Print(&pages)
	}
	if err != nil {
		log.Fatalln(err)
	}
}
