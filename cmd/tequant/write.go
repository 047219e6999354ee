package main

import (
	"io"

	"github.com/tetools/tequant/internal/output"
	"github.com/tetools/tequant/internal/quant"
)

func writeExpressionTSV(w io.Writer, results []*quant.Result) error {
	return output.NewExpressionWriter(w).WriteAll(results)
}

func writeGeneTSV(w io.Writer, genes []*quant.GeneResult) error {
	return output.NewGeneWriter(w).WriteAll(genes)
}
