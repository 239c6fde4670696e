package main

import (
	"fmt"
	"os"

	"github.com/penwyp/ivt-split/commands"
	apperrors "github.com/penwyp/ivt-split/internal/errors"
	"github.com/penwyp/ivt-split/internal/util"
)

func main() {
	err := commands.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	util.SetLogger(nil)
	os.Exit(apperrors.ExitCode(err))
}
