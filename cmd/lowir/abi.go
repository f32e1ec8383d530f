package main

import (
	"strings"

	"github.com/spf13/cobra"

	"lowir/internal/abi"
	"lowir/internal/layout"
	"lowir/internal/types"
)

var abiCmd = &cobra.Command{
	Use:   "abi <unit.mir>",
	Short: "Print how each function passes its arguments and result",
	Args:  cobra.ExactArgs(1),
	RunE:  runAbi,
}

func init() {
	addTargetFlags(abiCmd)
}

func runAbi(cmd *cobra.Command, args []string) error {
	unit, tgt, err := loadInspected(cmd, args[0])
	if err != nil {
		return err
	}
	cls := abi.New(layout.New(tgt, unit.Types))
	t := &table{header: []string{"FUNCTION", "KIND", "CONV", "RETURN", "ARGS"}}
	row := func(name, kind string, sig types.TypeID) {
		fa, err := cls.FnAbi(sig)
		if err != nil {
			t.add(name, kind, "-", "error", err.Error())
			return
		}
		parts := make([]string, len(fa.Args))
		for i, a := range fa.Args {
			parts[i] = a.String()
		}
		if fa.Variadic {
			parts = append(parts, "...")
		}
		conv := "-"
		if fa.Conv != nil {
			conv = fa.Conv.Name
		}
		t.add(name, kind, conv, fa.Ret.String(), strings.Join(parts, ", "))
	}
	for _, f := range unit.Funcs {
		row(f.Name, "def", f.Sig)
	}
	for _, d := range unit.Decls {
		row(d.Name, "decl", d.Sig)
	}
	return t.write(cmd.OutOrStdout())
}
