// Package main is the reluplex CLI driver: parse a network file, encode it
// into a tableau, and run the decision procedure, mirroring the structure
// of gnark's own cmd package wiring around cobra.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/crillab/reluplex/logger"
	"github.com/crillab/reluplex/nnet"
	"github.com/crillab/reluplex/reluplex"
	"github.com/crillab/reluplex/stats"
	"github.com/spf13/cobra"
)

var (
	fVerbose bool
	fTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "reluplex",
	Short: "decides satisfiability of linear-arithmetic plus ReLU constraints over a feed-forward network",
}

var solveCmd = &cobra.Command{
	Use:   "solve <network-path> [<output-csv>]",
	Short: "runs the Reluplex decision procedure on a .nnet network",
	Run:   cmdSolve,
}

func init() {
	solveCmd.PersistentFlags().BoolVar(&fVerbose, "verbose", false, "enable debug logging")
	solveCmd.PersistentFlags().DurationVar(&fTimeout, "timeout", 0, "abort after this duration (0 disables)")
	rootCmd.AddCommand(solveCmd)
}

func cmdSolve(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		fmt.Println("missing network path -- reluplex solve -h for help")
		os.Exit(1)
	}
	if fVerbose {
		logger.Set(logger.Logger().Level(-1))
	} else {
		logger.Disable()
	}

	networkPath := filepath.Clean(args[0])
	var outputCSV string
	if len(args) >= 2 {
		outputCSV = args[1]
	}

	network, err := nnet.Parse(networkPath)
	if err != nil {
		fmt.Println("error parsing network:", err)
		os.Exit(1)
	}

	cfg := reluplex.DefaultConfig()
	enc, err := encodeNetwork(network, cfg)
	if err != nil {
		fmt.Println("error encoding network:", err)
		os.Exit(1)
	}
	s := enc.solver

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGQUIT)
	defer signal.Stop(sig)
	go func() {
		if _, ok := <-sig; ok {
			s.Quit()
		}
	}()

	if fTimeout > 0 {
		timer := time.AfterFunc(fTimeout, s.Quit)
		defer timer.Stop()
	}

	if err := s.Initialize(); err != nil {
		fmt.Println("error initializing solver:", err)
		os.Exit(1)
	}

	result := s.Solve()
	fmt.Printf("status: %s, elapsed: %s, oracle calls: %d, pivots: %d\n",
		result.Status, result.Elapsed, result.Stats.OracleCalls, result.Stats.Pivots)
	if fVerbose {
		fmt.Printf("splits: %d, merges: %d, eliminated auxiliaries: %d, max stack depth: %d, visited states: %d\n",
			result.Stats.Splits, result.Stats.Merges, result.Stats.EliminatedAuxiliaries,
			result.Stats.MaxStackDepth, result.Stats.VisitedStates)
	}

	if result.Status == reluplex.Sat {
		for i, v := range enc.input {
			fmt.Printf("input[%d] = %v\n", i, s.GetAssignment(v))
		}
		for i, v := range enc.output {
			fmt.Printf("output[%d] = %v\n", i, s.GetAssignment(v))
		}
	}

	if outputCSV != "" {
		row := stats.Row{
			Name:          filepath.Base(networkPath),
			Status:        result.Status.String(),
			TotalMillis:   result.Stats.TotalMillis,
			MaxStackDepth: result.Stats.MaxStackDepth,
			VisitedStates: result.Stats.VisitedStates,
		}
		if err := stats.AppendCSV(outputCSV, row); err != nil {
			fmt.Println("error writing stats csv:", err)
			os.Exit(1)
		}
	}

	if result.Status == reluplex.Err {
		os.Exit(1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
