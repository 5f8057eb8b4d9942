/*

coimcmc runs the adaptive Metropolis-Hastings sampler for multiplicity
of infection (COI), per-locus allele frequencies, and genotyping error
rates against a presence/absence dataset.

The basic usage looks like this:

	coimcmc dataset.json

, this runs 10000 iterations with default parameters and writes the
trace to stdout.

To see all the options run:

	coimcmc -h

*/
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/op/go-logging"
	"gopkg.in/alecthomas/kingpin.v2"

	"coimcmc/chain"
	"coimcmc/data"
	"coimcmc/lookup"
)

var log = logging.MustGetLogger("coimcmc")
var formatter = logging.MustStringFormatter(`%{message}`)

// inputDocument is the host-side JSON document this driver reads: the
// observations and the construction-time parameters, side by side. It
// plays the role the original's R package calling wrapper played
// (SPEC_FULL.md, "Host reference driver").
type inputDocument struct {
	Parameters     data.Parameters
	GenotypingData *data.GenotypingData
}

func loadInput(path string) (*data.GenotypingData, data.Parameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, data.Parameters{}, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	var doc inputDocument
	dec := json.NewDecoder(f)
	if err := dec.Decode(&doc); err != nil {
		return nil, data.Parameters{}, fmt.Errorf("decoding input: %w", err)
	}
	if doc.GenotypingData == nil {
		return nil, data.Parameters{}, fmt.Errorf("input is missing GenotypingData")
	}
	return doc.GenotypingData, doc.Parameters, nil
}

var (
	app = kingpin.New("coimcmc", "MOI / allele-frequency MCMC sampler")

	inputFileName = app.Arg("dataset", "JSON-encoded GenotypingData + Parameters").Required().ExistingFile()

	iterations       = app.Flag("iter", "number of MCMC iterations").Default("10000").Int()
	report           = app.Flag("report", "log progress every N iterations").Default("100").Int()
	writeEvery       = app.Flag("thin", "write a trace row every N iterations").Default("1").Int()
	samplingDepthCap = app.Flag("depthcap", "uniform cap on importance-sample depth, "+
		"applied to every (COI, allele count) pair").Default("100000").Int()

	seed = app.Flag("seed", "random generator seed, default time based").Default("-1").Int64()

	outF     = app.Flag("out", "write trace to a file instead of stdout").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
)

func writeTraceHeader(w *bufio.Writer, gd *data.GenotypingData) {
	fmt.Fprint(w, "iteration\tllik\teps_pos\teps_neg")
	for j := 0; j < gd.NumLoci; j++ {
		for a := 0; a < gd.NumAlleles[j]; a++ {
			fmt.Fprintf(w, "\tp[%d][%d]", j, a)
		}
	}
	for i := 0; i < gd.NumSamples; i++ {
		fmt.Fprintf(w, "\tm[%d]", i)
	}
	fmt.Fprint(w, "\n")
}

func writeTraceRow(w *bufio.Writer, it int, c *chain.Chain) {
	fmt.Fprintf(w, "%d\t%s\t%s\t%s",
		it,
		strconv.FormatFloat(c.Llik(), 'f', 6, 64),
		strconv.FormatFloat(c.EpsPos(), 'f', 6, 64),
		strconv.FormatFloat(c.EpsNeg(), 'f', 6, 64),
	)
	for _, pj := range c.P() {
		for _, v := range pj {
			fmt.Fprintf(w, "\t%s", strconv.FormatFloat(v, 'f', 6, 64))
		}
	}
	for _, mi := range c.M() {
		fmt.Fprintf(w, "\t%d", mi)
	}
	fmt.Fprint(w, "\n")
}

func run() error {
	gd, params, err := loadInput(*inputFileName)
	if err != nil {
		return err
	}

	lut, err := lookup.New(params.MaxCOI, gd.MaxAlleles(), lookup.UniformSamplingDepth(params.MaxCOI, gd.MaxAlleles(), *samplingDepthCap))
	if err != nil {
		return fmt.Errorf("building lookup: %w", err)
	}

	c, err := chain.New(gd, lut, params, *seed)
	if err != nil {
		return fmt.Errorf("building chain: %w", err)
	}

	var w *bufio.Writer
	if *outF != "" {
		f, err := os.Create(*outF)
		if err != nil {
			return fmt.Errorf("creating trace file: %w", err)
		}
		defer f.Close()
		w = bufio.NewWriter(f)
		defer w.Flush()
	} else {
		w = bufio.NewWriter(os.Stdout)
		defer w.Flush()
	}

	writeTraceHeader(w, gd)

	startTime := time.Now()
	for it := 1; it <= *iterations; it++ {
		c.Step(it)

		if it%*report == 0 {
			log.Infof("%d: llik=%f eps_pos=%f eps_neg=%f", it, c.Llik(), c.EpsPos(), c.EpsNeg())
		}
		if it%*writeEvery == 0 {
			writeTraceRow(w, it, c)
		}
	}

	log.Noticef("finished %d iterations in %v", *iterations, time.Since(startTime))
	return nil
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logging.SetFormatter(formatter)
	logging.SetBackend(logging.NewLogBackend(os.Stderr, "", 0))

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		log.Fatal(err)
	}
	for _, pkg := range []string{"coimcmc", "chain", "likelihood", "sampler", "lookup", "data"} {
		logging.SetLevel(level, pkg)
	}

	if *seed == -1 {
		*seed = time.Now().UnixNano()
		log.Debug("random seed from time")
	}
	log.Infof("random seed=%v", *seed)

	if err := run(); err != nil {
		log.Fatal(err)
	}
}
