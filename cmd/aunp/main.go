// Command aunp trains and evaluates the nanoparticle classifiers of an
// experiment file and writes their report tables, figures and side outputs.
//
// Usage: aunp <command> [-config experiment.yaml] [flags]
//
// Commands:
//
//	train        train and score one multi-class model per concentration
//	evaluate     score saved models again without training
//	dichotomies  one-vs-others model per organism with AUROC/AUPR
//	ordersplit   species models of the composite orders
//	twostep      chain the order model with the species models
//	importance   forest feature importances and split sums
//	inspect      print the header of a saved model
//	version      print build information
package main

import (
	"fmt"
	"os"

	"github.com/gonuts/commander"
)

func root() *commander.Command {
	return &commander.Command{
		UsageLine: "aunp <command> [flags]",
		Short:     "gold nanoparticle bacteria classifier",
		Subcommands: []*commander.Command{
			trainCmd(),
			evaluateCmd(),
			dichotomiesCmd(),
			orderSplitCmd(),
			twoStepCmd(),
			importanceCmd(),
			inspectCmd(),
			versionCmd(),
		},
	}
}

func main() {
	if err := root().Dispatch(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
