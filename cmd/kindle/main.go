// Package main provides the kindle CLI.
//
//	kindle version
//	kindle train -config run.yaml [-v=2]
//
// train fits a grouped MLP on a synthetic dataset described by the run
// file. Ctrl-C stops training gracefully: end-of-training callbacks such as
// history export and uploads still run.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/kindle/internal/config"
)

const version = "v0.1.0"

func main() {
	err := run(os.Args[1:])
	klog.Flush()
	if err != nil {
		klog.ErrorS(err, "kindle failed")
		klog.Flush()
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage(os.Stdout)
		return nil
	}
	switch args[0] {
	case "version":
		fmt.Printf("kindle %s\n", version)
		return nil
	case "train":
		return trainCmd(args[1:])
	case "help", "-h", "--help":
		usage(os.Stdout)
		return nil
	default:
		usage(os.Stderr)
		return errors.Errorf("unknown command %q", args[0])
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "kindle %s - callback-driven training loops\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version    Show version")
	fmt.Fprintln(w, "  train      Train on a synthetic dataset (-config run.yaml)")
}

func trainCmd(args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	configPath := fs.String("config", "", "run configuration file (YAML); defaults apply when empty")
	klog.InitFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exp, err := newExperiment(cfg, os.Stderr)
	if err != nil {
		return err
	}
	klog.V(1).InfoS("Experiment ready", "trainer", exp.trainer.String())

	if err := exp.trainer.Fit(ctx, exp.run); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	val, err := exp.trainer.Validate(ctx, nil)
	if err != nil {
		return err
	}
	kv := []any{"out_dir", cfg.OutDir}
	for _, k := range val.Keys() {
		v, _ := val.Value(k)
		kv = append(kv, k, v)
	}
	klog.InfoS("Final validation", kv...)
	return nil
}
