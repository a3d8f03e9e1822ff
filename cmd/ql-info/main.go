package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"janouch.name/qlusb/ql"
)

var modelName = flag.String("model", "QL-800", "printer model")
var serial = flag.String("serial", "", "printer serial number")
var verbose = flag.Bool("verbose", false, "trace wire traffic")

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -serial SERIAL\n", os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()
	if *serial == "" {
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

	// The configured media is irrelevant, we only want to look.
	printer, err := ql.Open(ql.Config{
		Model:          model,
		Serial:         *serial,
		Media:          ql.Continuous(62),
		SkipMediaCheck: true,
		Logger:         log,
	})
	if err != nil {
		log.Fatalln(err)
	}
	defer printer.Close()

	status, err := printer.ReadStatus()
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Print(status)

	fmt.Println("\x1b[1mMedia information\x1b[m")
	if spec, ok := status.Media.Spec(); ok {
		fmt.Println("left offset:", spec.LeftOffsetDots)
		fmt.Println("print width:", spec.PrintWidthDots)
		fmt.Println("print length:", spec.LengthDots)
	} else {
		fmt.Println("unknown media")
	}
}
