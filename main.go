package main

import (
	"os"

	"github.com/Xazziri/Trivy-dashboard/cmd"
)

func main() {
	cmd.Execute(os.Args[1:])
}
