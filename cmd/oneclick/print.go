package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	oneclick "github.com/branched-services/go-oneclick"
)

// printBatch decodes the batch calldata back into its calls and writes one
// row per call. contracts are used to name the selectors; the first one must
// be the aggregator.
func printBatch(w io.Writer, batch *oneclick.Batch, aggregator *oneclick.Contract, contracts ...*oneclick.Contract) error {
	calls, err := oneclick.DecodeBatch(aggregator.ABI(), batch.Calldata())
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "batch %s: %d calls to %s carrying %s wei\n",
		batch.ID(), len(calls), batch.Aggregator().Hex(), batch.Value())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\ttarget\tmethod\tvalue\tallow failure\tcalldata bytes")
	for i, call := range calls {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%d\n",
			i, call.Target().Hex(), methodName(call, contracts), call.Value(), call.AllowFailure(), len(call.CallData()))
	}
	return tw.Flush()
}

// methodName resolves the call selector against the contract at its target.
func methodName(call *oneclick.Call, contracts []*oneclick.Contract) string {
	sel := call.Selector()
	for _, c := range contracts {
		if c.Address() != call.Target() {
			continue
		}
		parsed := c.ABI()
		if m, err := parsed.MethodById(sel[:]); err == nil {
			return c.Name() + "." + m.Name
		}
	}
	return fmt.Sprintf("0x%x", sel)
}
