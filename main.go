package main

import (
	"os"

	"github.com/llehouerou/pocketwaves/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
