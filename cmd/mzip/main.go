package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/mzip"
)

const description = "mzip is a minimal tool for reading and writing zip archives."

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, description)
		fmt.Fprintln(os.Stderr, "\nUsage: mzip [-l | -x | -c | -a] <archive.zip> [files...]")
		flag.PrintDefaults()
	}

	var list, extract, create, appendFiles bool
	var outputDir string
	flag.BoolVar(&list, "l", false, "list contents")
	flag.BoolVar(&extract, "x", false, "extract all files")
	flag.BoolVar(&create, "c", false, "create a new archive with the specified files")
	flag.BoolVar(&appendFiles, "a", false, "add files to an existing archive")
	flag.StringVar(&outputDir, "d", ".", "extract files into the specified directory")

	flag.Parse()

	args := flag.Args()

	if len(args) < 1 {
		flag.Usage()
		return
	}

	cli := mzip.CLI{ArchivePath: args[0], Files: args[1:], OutputDir: outputDir}

	var err error
	switch {
	case list:
		err = cli.List(os.Stdout)
	case extract:
		err = cli.Extract()
	case create:
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "mzip error: invalid usage")
			return
		}
		err = cli.Create()
	case appendFiles:
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "mzip error: invalid usage")
			return
		}
		err = cli.Append()
	default:
		flag.Usage()
		return
	}

	if err != nil {
		log.Fatal(err)
	}
}
